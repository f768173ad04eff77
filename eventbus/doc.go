// Package eventbus implements the engine's output stream: a push broadcaster
// of core.Message values to zero or more observers.
//
// Contract:
//   - Observers added with Subscribe receive every message published after
//     registration, in publish order, on the publishing goroutine.
//   - Unsubscribe is idempotent; no delivery to the observer starts after it
//     returns. Calling it from inside the observer's own callback is allowed.
//   - Complete is terminal. Each active observer's OnComplete runs once, later
//     Subscribe calls complete immediately, and Publish panics.
package eventbus
