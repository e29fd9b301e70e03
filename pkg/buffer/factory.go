package buffer

import "sync"

// Factory owns the histories of all tracks, keyed by track id.
type Factory struct {
	sync.RWMutex
	size      int
	histories map[string]*History
}

// NewFactory creates a factory whose histories hold size packets each.
func NewFactory(size int) *Factory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &Factory{
		size:      size,
		histories: make(map[string]*History),
	}
}

// GetOrNew returns the history of trackID, creating it on first use.
func (f *Factory) GetOrNew(trackID string) *History {
	f.RLock()
	h, ok := f.histories[trackID]
	f.RUnlock()
	if ok {
		return h
	}

	f.Lock()
	defer f.Unlock()
	if h, ok = f.histories[trackID]; ok {
		return h
	}
	h = NewHistory(f.size)
	f.histories[trackID] = h
	return h
}

// GetHistory returns the history of trackID, or nil if nothing was buffered.
func (f *Factory) GetHistory(trackID string) *History {
	f.RLock()
	defer f.RUnlock()
	return f.histories[trackID]
}

// Remove drops the history of trackID.
func (f *Factory) Remove(trackID string) {
	f.Lock()
	delete(f.histories, trackID)
	f.Unlock()
}

// Len returns the number of tracks with a history.
func (f *Factory) Len() int {
	f.RLock()
	defer f.RUnlock()
	return len(f.histories)
}
