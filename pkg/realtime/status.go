package realtime

import "sync"

// statusFeed broadcasts the connected flag. Every watcher first receives the
// current value, then each transition. A slow watcher only misses
// intermediate values, never the latest one.
type statusFeed struct {
	mu       sync.Mutex
	value    bool
	nextID   int
	watchers map[int]chan bool
}

func newStatusFeed() *statusFeed {
	return &statusFeed{watchers: make(map[int]chan bool)}
}

func (f *statusFeed) get() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

func (f *statusFeed) publish(value bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.value == value {
		return
	}
	f.value = value
	for _, ch := range f.watchers {
		push(ch, value)
	}
}

func (f *statusFeed) watch() (<-chan bool, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan bool, 1)
	ch <- f.value
	f.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.watchers, id)
		})
	}
}

// push replaces any undelivered value of ch with value. Only called with the
// feed lock held, so there is always room after draining.
func push(ch chan bool, value bool) {
	select {
	case <-ch:
	default:
	}
	ch <- value
}
