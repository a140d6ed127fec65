package mainloop

import "sync"

// Coalescer merges bursts of same-key loop tasks: only the latest task
// posted for a key before the loop gets to it runs.
// The config watcher uses it to collapse fsnotify event storms into one reload.
type Coalescer struct {
	mu        sync.Mutex
	pending   map[string]func()
	post      func(func())
	destroyed bool
}

// NewCoalescer creates a coalescer scheduling through post (usually Loop.Poster()).
func NewCoalescer(post func(func())) *Coalescer {
	if post == nil {
		panic("mainloop.NewCoalescer: post function cannot be nil")
	}

	return &Coalescer{
		pending: make(map[string]func()),
		post:    post,
	}
}

// Post schedules fn under key, replacing a not-yet-run task for the same key.
func (c *Coalescer) Post(key string, fn func()) {
	if fn == nil || key == "" {
		return
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	_, scheduled := c.pending[key]
	c.pending[key] = fn
	post := c.post
	c.mu.Unlock()

	if scheduled {
		return
	}

	post(func() {
		c.mu.Lock()
		fn, ok := c.pending[key]
		delete(c.pending, key)
		destroyed := c.destroyed
		c.mu.Unlock()

		if ok && !destroyed {
			fn()
		}
	})
}

// Pending reports whether a task for key is waiting to run.
func (c *Coalescer) Pending(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[key]
	return ok
}

// Destroy drops queued work; later Posts are ignored.
func (c *Coalescer) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	c.pending = map[string]func(){}
	c.mu.Unlock()
}
