package core

// Walk visits every leaf reachable from msgs in depth-first, left-to-right
// order. A batch's members are all visited before the sibling that follows
// the batch. Nesting depth is bounded only by memory: the traversal keeps an
// explicit stack instead of recursing.
func Walk(msgs []Message, fn func(Leaf)) {
	// Stack of pending messages, top at the end. Pushed in reverse so the
	// first member pops first.
	stack := make([]Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		stack = append(stack, msgs[i])
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch m := top.(type) {
		case Batch:
			for i := len(m.Messages) - 1; i >= 0; i-- {
				stack = append(stack, m.Messages[i])
			}
		case *Batch:
			if m == nil {
				continue
			}
			for i := len(m.Messages) - 1; i >= 0; i-- {
				stack = append(stack, m.Messages[i])
			}
		case Leaf:
			fn(m)
		}
	}
}

// Flatten returns the leaves of msgs in dispatch order.
func Flatten(msgs ...Message) []Leaf {
	var out []Leaf
	Walk(msgs, func(l Leaf) { out = append(out, l) })
	return out
}

// Dispatch flattens msg and routes every leaf to its handler method.
func Dispatch(msg Message, h Handler) {
	Walk([]Message{msg}, func(l Leaf) { l.Dispatch(h) })
}
