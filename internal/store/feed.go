package store

import "sync"

// Feed fans change notifications out to local watchers. Signals coalesce:
// a watcher that has not consumed its previous signal is not signalled again,
// so slow readers observe the latest state rather than every intermediate one.
type Feed struct {
	mu       sync.RWMutex
	nextID   int
	watchers map[int]*watcher
}

type watcher struct {
	key    string // empty watches every key
	signal chan struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{watchers: make(map[int]*watcher)}
}

// Notify signals every watcher of key and every collection-wide watcher.
func (f *Feed) Notify(key string) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, w := range f.watchers {
		if w.key != "" && w.key != key {
			continue
		}
		select {
		case w.signal <- struct{}{}:
		default:
		}
	}
}

// Watch registers a watcher. An empty key watches the whole collection.
// The returned stop func is safe to call more than once.
func (f *Feed) Watch(key string) (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	w := &watcher{key: key, signal: make(chan struct{}, 1)}
	f.watchers[id] = w

	var once sync.Once
	stop := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.watchers, id)
			f.mu.Unlock()
		})
	}
	return w.signal, stop
}

// Len returns the number of registered watchers.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.watchers)
}
