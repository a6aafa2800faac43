package oauth

import (
	"context"
	"sync"
)

// Callback bridges the external consent flow back into the authorize
// call. The completion may arrive from any goroutine (a URL-scheme
// handler, a stdin reader, a UI event loop); the flow resumes exactly
// once, and any later resolution attempt is a no-op.
type Callback struct {
	once sync.Once
	done chan callbackResult
}

type callbackResult struct {
	redirectURL string
	err         error
}

// NewCallback creates an unresolved callback.
func NewCallback() *Callback {
	return &Callback{done: make(chan callbackResult, 1)}
}

// Resolve completes the flow with the redirect URL the browser was sent
// to.
func (c *Callback) Resolve(redirectURL string) {
	c.once.Do(func() {
		c.done <- callbackResult{redirectURL: redirectURL}
	})
}

// Fail completes the flow with an error.
func (c *Callback) Fail(err error) {
	c.once.Do(func() {
		c.done <- callbackResult{err: err}
	})
}

// Cancel completes the flow as a user cancellation.
func (c *Callback) Cancel() {
	c.Fail(ErrCancelled)
}

// Wait blocks until the flow is resolved or ctx is done.
func (c *Callback) Wait(ctx context.Context) (string, error) {
	select {
	case res := <-c.done:
		return res.redirectURL, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
