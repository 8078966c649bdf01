package explorer

import "sync"

// Value is an observable state holder. Observers always get the latest
// value; intermediate values may be skipped.
type Value[T any] struct {
	mu     sync.Mutex
	v      T
	subs   map[chan T]struct{}
	closed bool
}

func newValue[T any](initial T) *Value[T] {
	return &Value[T]{v: initial, subs: make(map[chan T]struct{})}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.v
}

// Subscribe returns a channel that receives the current value and every
// later one, and a cancel func that closes it. The channel is also
// closed when the owning engine is disposed.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- v.v
	v.subs[ch] = struct{}{}

	return ch, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if _, ok := v.subs[ch]; ok {
			delete(v.subs, ch)
			close(ch)
		}
	}
}

func (v *Value[T]) set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.v = x
	for ch := range v.subs {
		select {
		case <-ch:
		default:
		}
		ch <- x
	}
}

func (v *Value[T]) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	for ch := range v.subs {
		close(ch)
	}
	v.subs = nil
}
