package history

import (
	"sync"
	"time"

	"motorisk/internal/risk"
	"motorisk/internal/utils"
)

// Record is one stored assessment of a listing.
type Record struct {
	Time       time.Time       `json:"time"`
	Assessment risk.Assessment `json:"assessment"`
}

// Repository is a thread-safe store of recent assessments per listing, with
// automatic removal of listings that were not assessed for longer than the TTL.
// Each listing keeps a ring buffer of fixed length.
//
//	repo := history.NewRepository(10, time.Hour)
//	go repo.Serve() // background cleanup
//	repo.Append("listing-123", assessment)
type Repository struct {
	length int
	ttl    time.Duration

	records map[string]*utils.RingBuffer[Record]
	updated map[string]time.Time
	mu      sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once
}

// Append stores an assessment for the listing id, creating its buffer when needed.
func (r *Repository) Append(id string, a risk.Assessment) {
	now := time.Now()

	r.mu.Lock()
	buffer, found := r.records[id]
	if !found {
		buffer = utils.NewRingBuffer[Record](r.length)
		r.records[id] = buffer
	}
	r.updated[id] = now
	buffer.Push(Record{Time: now, Assessment: a})
	r.mu.Unlock()
}

// Get returns a copy of the records for id, oldest first.
// It returns (nil, false) when the listing is unknown.
func (r *Repository) Get(id string) ([]Record, bool) {
	r.mu.RLock()
	buffer, found := r.records[id]
	r.mu.RUnlock()
	if !found {
		return nil, false
	}
	return buffer.ToSlice(), true
}

// Serve removes outdated listings once a minute until Stop is called.
// It blocks and should be run in its own goroutine.
func (r *Repository) Serve() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case now := <-ticker.C:
			r.purge(now)
		}
	}
}

// Stop ends Serve. It is safe to call more than once, and before Serve.
func (r *Repository) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

// purge deletes listings whose last update is older than the TTL relative to now.
func (r *Repository) purge(now time.Time) int {
	var outdated []string

	r.mu.RLock()
	for id, ts := range r.updated {
		if now.Sub(ts) > r.ttl {
			outdated = append(outdated, id)
		}
	}
	r.mu.RUnlock()

	if len(outdated) == 0 {
		return 0
	}

	r.mu.Lock()
	removed := 0
	for _, id := range outdated {
		// re-check: the listing may have been assessed again in between
		if ts, found := r.updated[id]; found && now.Sub(ts) > r.ttl {
			delete(r.records, id)
			delete(r.updated, id)
			removed++
		}
	}
	r.mu.Unlock()

	return removed
}

// NewRepository creates a repository keeping up to length assessments per listing.
// A length below 1 is raised to 1. Call Serve in a goroutine to enable cleanup.
func NewRepository(length int, ttl time.Duration) *Repository {
	if length < 1 {
		length = 1
	}
	return &Repository{
		length:  length,
		ttl:     ttl,
		records: make(map[string]*utils.RingBuffer[Record]),
		updated: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
}
