package feed

import (
	"sync"

	"github.com/photofolio/internal/db"
	"github.com/photofolio/internal/taxonomy"
)

// View is the consumer side of a subscription: the last good snapshot plus the last error.
// A failed refresh keeps the previous list visible.
type View struct {
	mu      sync.RWMutex
	photos  []db.Photo
	err     error
	loaded  bool
	changed chan struct{}
}

// NewView returns an empty view.
func NewView() *View {
	return &View{changed: make(chan struct{})}
}

// Apply replaces the list and clears any error.
func (v *View) Apply(photos []db.Photo) {
	v.mu.Lock()
	v.photos = photos
	v.err = nil
	v.loaded = true
	v.signal()
	v.mu.Unlock()
}

// Fail records err and leaves the list untouched.
func (v *View) Fail(err error) {
	v.mu.Lock()
	v.err = err
	v.signal()
	v.mu.Unlock()
}

// Handler wires the view to a subscription.
func (v *View) Handler() Handler {
	return Handler{OnSnapshot: v.Apply, OnError: v.Fail}
}

// Photos returns the last good snapshot.
func (v *View) Photos() []db.Photo {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.photos
}

// Err returns the error from the latest refresh, or nil if it succeeded.
func (v *View) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}

// Loaded reports whether any snapshot has been applied.
func (v *View) Loaded() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loaded
}

// Visible is the snapshot narrowed to category in snapshot order.
func (v *View) Visible(category string) []db.Photo {
	return taxonomy.Filter(v.Photos(), category, func(p db.Photo) string { return p.Category })
}

// Changed returns a channel closed at the next Apply or Fail.
func (v *View) Changed() <-chan struct{} {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.changed
}

func (v *View) signal() {
	close(v.changed)
	v.changed = make(chan struct{})
}
