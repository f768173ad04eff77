package conversation

import (
	"errors"
	"sync"
)

// ErrBudgetExhausted is returned by Prompt once a session has used all of
// its provider calls.
var ErrBudgetExhausted = errors.New("prompt budget exhausted")

// Budget caps the number of provider calls a session may make.
type Budget struct {
	max  int
	used int
	mu   sync.Mutex
}

// NewBudget creates a budget of max calls. A max of zero or less means
// unlimited.
func NewBudget(max int) *Budget {
	return &Budget{max: max}
}

// Take reserves one call. It fails without reserving when the budget is
// spent.
func (b *Budget) Take() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && b.used >= b.max {
		return ErrBudgetExhausted
	}
	b.used++
	return nil
}

// Used returns the number of calls taken so far.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.used
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max <= 0 {
		return -1
	}
	return b.max - b.used
}
