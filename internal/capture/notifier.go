package capture

import "sync"

// frameSignal numbers published frames and wakes everyone waiting for the
// next one by closing a shared channel.
type frameSignal struct {
	mu     sync.Mutex
	waitCh chan struct{}
	count  uint64
}

func newFrameSignal() *frameSignal {
	return &frameSignal{waitCh: make(chan struct{})}
}

// publish advances the sequence, wakes waiters and returns the new number.
func (f *frameSignal) publish() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	close(f.waitCh)
	f.waitCh = make(chan struct{})
	return f.count
}

func (f *frameSignal) seq() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// after returns a channel that is closed once the sequence passes since.
func (f *frameSignal) after(since uint64) <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if since < f.count {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return f.waitCh
}
