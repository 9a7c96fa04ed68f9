package trainer

import (
	"sync"
	"sync/atomic"
)

// CancelToken is a cooperative stop flag. Setting it stops new files from
// starting; files already running are left alone.
type CancelToken struct {
	flag atomic.Bool
	once sync.Once
	done chan struct{}
}

func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

func (c *CancelToken) Cancel() {
	if c != nil && c.flag.CompareAndSwap(false, true) {
		close(c.doneChan())
	}
}

func (c *CancelToken) Cancelled() bool {
	return c != nil && c.flag.Load()
}

// Done is closed once Cancel was called. A nil token never fires.
func (c *CancelToken) Done() <-chan struct{} {
	if c == nil {
		return nil
	}
	return c.doneChan()
}

func (c *CancelToken) doneChan() chan struct{} {
	c.once.Do(func() {
		c.done = make(chan struct{})
	})
	return c.done
}
