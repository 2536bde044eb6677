package pipeline

import (
	"sync"
	"time"
)

// RunStatus is the progress of the current or last batch. It is shared
// between the batch goroutine and whoever reports on it, and guards itself.
type RunStatus struct {
	mu sync.RWMutex

	running bool
	lastRun time.Time
	current int
	total   int
	scraped int
	failed  int
	errors  []string
	exports map[string]string
}

// StatusSnapshot is a point-in-time copy of RunStatus.
type StatusSnapshot struct {
	Running         bool     `json:"running"`
	LastRun         *string  `json:"last_run"`
	CurrentProfile  int      `json:"current_profile"`
	TotalProfiles   int      `json:"total_profiles"`
	ProfilesScraped int      `json:"profiles_scraped"`
	Failed          int      `json:"failed"`
	Errors          []string `json:"errors"`
}

func NewRunStatus() *RunStatus {
	return &RunStatus{exports: make(map[string]string)}
}

// TryStart marks a batch of total targets as running. It returns false when
// one is already running. Counters and errors from the previous batch are
// reset; exports are kept until replaced.
func (s *RunStatus) TryStart(total int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	s.running = true
	s.lastRun = time.Now()
	s.current = 0
	s.total = total
	s.scraped = 0
	s.failed = 0
	s.errors = nil
	return true
}

func (s *RunStatus) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *RunStatus) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *RunStatus) setCurrent(index int) {
	s.mu.Lock()
	s.current = index
	s.mu.Unlock()
}

func (s *RunStatus) addScraped() {
	s.mu.Lock()
	s.scraped++
	s.mu.Unlock()
}

func (s *RunStatus) addFailed(err error) {
	s.mu.Lock()
	s.failed++
	s.errors = append(s.errors, err.Error())
	s.mu.Unlock()
}

// AddError records a batch-level error that is not tied to a target.
func (s *RunStatus) AddError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.errors = append(s.errors, err.Error())
	s.mu.Unlock()
}

// SetExport remembers the latest export of kind ("csv", "json", ...).
func (s *RunStatus) SetExport(kind, path string) {
	s.mu.Lock()
	s.exports[kind] = path
	s.mu.Unlock()
}

func (s *RunStatus) Export(kind string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.exports[kind]
	return p, ok
}

func (s *RunStatus) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatusSnapshot{
		Running:         s.running,
		CurrentProfile:  s.current,
		TotalProfiles:   s.total,
		ProfilesScraped: s.scraped,
		Failed:          s.failed,
		Errors:          append([]string{}, s.errors...),
	}
	if !s.lastRun.IsZero() {
		ts := s.lastRun.Format(time.RFC3339)
		snap.LastRun = &ts
	}
	return snap
}
