// Package shell is the interactive terminal front end of the portal: a route
// history standing in for the browser and a line-oriented command loop.
package shell

import (
	"strings"
	"sync"

	"github.com/festa-portal/portal-client/internal/ports"
)

var _ ports.Navigator = (*Router)(nil)

// Router keeps the current route and its history. Watchers receive the newest
// path after every change; a slow watcher only sees the latest value.
type Router struct {
	mu       sync.Mutex
	history  []string
	watchers map[int]chan string
	nextID   int
}

// NewRouter creates a router positioned at start ("/" when empty).
func NewRouter(start string) *Router {
	return &Router{
		history:  []string{normalizeRoute(start)},
		watchers: make(map[int]chan string),
	}
}

// CurrentPath returns the current route.
func (r *Router) CurrentPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history[len(r.history)-1]
}

// Navigate pushes path onto the history. Navigating to the current route is a no-op.
func (r *Router) Navigate(path string) {
	path = normalizeRoute(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.history[len(r.history)-1] == path {
		return
	}
	r.history = append(r.history, path)
	r.notifyLocked(path)
}

// Back pops the current route. It reports false when there is nowhere to go.
func (r *Router) Back() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) < 2 {
		return r.history[0], false
	}
	r.history = r.history[:len(r.history)-1]
	path := r.history[len(r.history)-1]
	r.notifyLocked(path)
	return path, true
}

// History returns the visited routes, oldest first.
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// Watch subscribes to route changes. The returned func ends the subscription
// and closes the channel.
func (r *Router) Watch() (<-chan string, func()) {
	ch := make(chan string, 1)
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.watchers[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if c, ok := r.watchers[id]; ok {
				delete(r.watchers, id)
				close(c)
			}
		})
	}
}

func (r *Router) notifyLocked(path string) {
	for _, ch := range r.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- path
	}
}

func normalizeRoute(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
