package core

// GameState is the authoritative snapshot produced by the simulation. The
// boundary never interprets it; dispatchers receive it exactly as published.
type GameState struct {
	RoomID          string   `json:"room_id,omitempty"`
	RoomDescription string   `json:"room_description,omitempty"`
	Inventory       []string `json:"inventory,omitempty"`
	Turn            int      `json:"turn"`
}

// Clone returns a copy whose Inventory slice is not shared with s.
func (s GameState) Clone() GameState {
	c := s
	if s.Inventory != nil {
		c.Inventory = append([]string(nil), s.Inventory...)
	}
	return c
}
