package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"storefront-service/internal/domain"
)

var (
	// ErrLoadInFlight is returned when a load for the current filter is
	// already running. The caller should wait for it; nothing failed.
	ErrLoadInFlight = errors.New("catalog: load already in flight")
	// ErrSuperseded is returned to a load whose filter or mode changed while
	// it ran. Its rows were discarded.
	ErrSuperseded = errors.New("catalog: load superseded by a newer request")
	// ErrNotInfinite is returned by LoadMore in paged mode.
	ErrNotInfinite = errors.New("catalog: load more is only available in infinite mode")
)

// FetchError is a failed product fetch. It is always retryable.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string   { return "catalog: could not load products: " + e.Err.Error() }
func (e *FetchError) Unwrap() error   { return e.Err }
func (e *FetchError) Retryable() bool { return true }

// Status is the loading state of a Session.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// View is a consistent snapshot of a Session.
type View struct {
	Status Status `json:"status"`
	Mode   Mode   `json:"mode"`
	Filter Filter `json:"filter"`
	Result Result `json:"result"`
	// Stale is set while Result was produced for an earlier filter or mode.
	Stale bool  `json:"stale"`
	Err   error `json:"-"`
}

// Session is the browsing state of one client: a filter, a mode, and the
// results shown for them. Each filter or mode change starts a new generation;
// fetches issued for an older generation are discarded when they complete.
type Session struct {
	mu      sync.Mutex
	fetcher Fetcher
	log     logrus.FieldLogger

	filter    Filter
	mode      Mode
	providers map[Mode]ResultProvider

	generation uint64
	inflight   uint64 // generation of the running fetch, 0 when none

	status    Status
	err       error
	shown     Result
	hasResult bool
	stale     bool
}

// NewSession starts idle with filter f in mode m.
func NewSession(fetcher Fetcher, f Filter, m Mode, log logrus.FieldLogger) *Session {
	return &Session{
		fetcher: fetcher,
		log:     log.WithField("component", "catalog-session"),
		filter:  f,
		mode:    m,
		providers: map[Mode]ResultProvider{
			ModePaged:    NewOffsetProvider(),
			ModeInfinite: NewInfiniteProvider(),
		},
		generation: 1,
		status:     StatusIdle,
		shown:      Result{Items: []domain.ProductSummary{}},
	}
}

// invalidate must be called with mu held.
func (s *Session) invalidate(resetProviders bool) {
	s.generation++
	if resetProviders {
		for _, p := range s.providers {
			p.Reset()
		}
	}
	s.stale = s.hasResult
	s.status = StatusIdle
	s.err = nil
}

// SetMode switches the loading strategy. Switching drops the pages and
// cursors of both strategies.
func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m == s.mode {
		return
	}
	s.mode = m
	s.invalidate(true)
}

// SetFilter replaces the filter. When anything other than the page changes,
// the page is forced to 1 and all fetched pages are dropped. A page change
// matters in paged mode only.
func (s *Session) SetFilter(f Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !f.SameQuery(s.filter) {
		f.Page = 1
	}
	if err := f.Validate(); err != nil {
		return err
	}
	switch {
	case f.Equal(s.filter):
		return nil
	case !f.SameQuery(s.filter):
		s.filter = f
		s.invalidate(true)
	default:
		s.filter = f
		if s.mode == ModePaged {
			s.invalidate(false)
		}
	}
	return nil
}

// Load fetches what the current mode shows first, unless it is already loaded.
func (s *Session) Load(ctx context.Context) (View, error) {
	s.mu.Lock()
	if !s.stale && s.hasResult {
		if s.status == StatusReady {
			v := s.viewLocked()
			s.mu.Unlock()
			return v, nil
		}
		if inf, ok := s.providers[s.mode].(*InfiniteProvider); ok && inf.Started() {
			v := s.viewLocked()
			s.mu.Unlock()
			return v, nil
		}
	}
	return s.fetchLocked(ctx)
}

// LoadMore fetches the next window in infinite mode. It does nothing once
// the end of the list was reached.
func (s *Session) LoadMore(ctx context.Context) (View, error) {
	s.mu.Lock()
	if s.mode != ModeInfinite {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, ErrNotInfinite
	}
	return s.fetchLocked(ctx)
}

// fetchLocked is entered with mu held and releases it for the remote call.
func (s *Session) fetchLocked(ctx context.Context) (View, error) {
	p := s.providers[s.mode]
	req, ok := p.Next(s.filter)
	if !ok {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, nil
	}
	if s.inflight == s.generation {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, ErrLoadInFlight
	}
	gen, f := s.generation, s.filter
	s.inflight = gen
	s.status = StatusLoading
	s.mu.Unlock()

	page, err := s.fetcher.Fetch(ctx, f, req.Offset, req.Limit, req.WithCount)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == gen {
		s.inflight = 0
	}
	if gen != s.generation {
		return s.viewLocked(), ErrSuperseded
	}
	if err != nil {
		s.status = StatusError
		s.err = &FetchError{Err: err}
		s.log.WithError(err).WithFields(logrus.Fields{
			"mode":   s.mode,
			"offset": req.Offset,
		}).Warn("product fetch failed")
		return s.viewLocked(), s.err
	}

	p.Apply(f, req, page)
	s.shown = p.Current()
	s.hasResult = true
	s.stale = false
	s.status = StatusReady
	s.err = nil
	return s.viewLocked(), nil
}

func (s *Session) viewLocked() View {
	r := s.shown
	r.Items = append([]domain.ProductSummary{}, r.Items...)
	return View{
		Status: s.status,
		Mode:   s.mode,
		Filter: s.filter,
		Result: r,
		Stale:  s.stale,
		Err:    s.err,
	}
}

// View returns the current state without fetching.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) Filter() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}
