package harvest

import (
	"context"
	"time"
)

// Session is one live browser page, created at the start of an orchestrator
// run and shared by every component that touches the target origin. Image
// fetches must go through the session because the origin only serves them
// with the session's cookies.
type Session interface {
	// Navigate loads the given URL in the session's page.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the selector matches a visible element or the
	// timeout elapses, and reports whether the marker appeared.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool
	// OuterHTML returns the rendered markup of the current document.
	OuterHTML(ctx context.Context) (string, error)
	// FetchBase64 fetches a same-origin resource inside the page's execution
	// context and returns its payload base64-encoded.
	FetchBase64(ctx context.Context, url string) (string, error)
	// Close releases the browser. Safe to call on every exit path.
	Close(ctx context.Context) error
}

// Analyzer produces face attributes for a local image file.
type Analyzer interface {
	Analyze(ctx context.Context, imagePath string, actions []Action) ([]Face, error)
}
