// Package qu provides empty struct channels for signalling, with helpers
// that make the mechanical usage patterns (momentary trigger, breaker
// switch) read cleanly at the call site.
package qu

// C is your basic empty struct signalling channel.
type C chan struct{}

// T creates an unbuffered chan struct{} for trigger and quit signalling.
func T() C {
	return make(C)
}

// Ts creates a buffered chan struct{} for signals that can queue up to n
// deep before the sender blocks.
func Ts(n int) C {
	return make(C, n)
}

// Signal sends a momentary signal, if anyone is listening right now.
func (c C) Signal() {
	select {
	case c <- struct{}{}:
	default:
	}
}

// Q closes the channel, which is a broadcast to all waiters.
func (c C) Q() {
	close(c)
}

// Wait returns the receive side of the channel for use in select blocks.
func (c C) Wait() <-chan struct{} {
	return c
}
