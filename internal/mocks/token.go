package mocks

import "time"

// ControlledToken is an mqtt.Token the test completes by hand.
type ControlledToken struct {
	done chan struct{}
	err  error
}

// NewControlledToken returns a token that is still in flight.
func NewControlledToken() *ControlledToken {
	return &ControlledToken{done: make(chan struct{})}
}

// NewCompletedToken returns a token that has already finished with err.
func NewCompletedToken(err error) *ControlledToken {
	t := NewControlledToken()
	t.Complete(err)
	return t
}

// Complete finishes the token with err.
func (t *ControlledToken) Complete(err error) {
	t.err = err
	close(t.done)
}

func (t *ControlledToken) Wait() bool {
	<-t.done
	return true
}

func (t *ControlledToken) WaitTimeout(timeout time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (t *ControlledToken) Done() <-chan struct{} { return t.done }

func (t *ControlledToken) Error() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}
