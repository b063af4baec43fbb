package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"envscope/internal/modules/analysis/completion"
)

const DefaultIdleTTL = 2 * time.Hour

type Options struct {
	Policy  Policy
	IdleTTL time.Duration
	Sinks   []RecordSink
	// SinkWorkers and SinkQueue bound the background delivery to Sinks.
	SinkWorkers int
	SinkQueue   int
	Logger      *slog.Logger
	Now         func() time.Time
}

// Store keeps sessions in memory keyed by a random UUID. Nothing survives a restart.
type Store struct {
	completer completion.Completer
	opts      Options
	dispatch  *dispatcher

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore(c completion.Completer, opts Options) *Store {
	if opts.Policy == "" {
		opts.Policy = PolicyReject
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SinkWorkers <= 0 {
		opts.SinkWorkers = DefaultSinkWorkers
	}
	if opts.SinkQueue <= 0 {
		opts.SinkQueue = DefaultSinkQueue
	}
	return &Store{
		completer: c,
		opts:      opts,
		dispatch:  newDispatcher(opts.Sinks, opts.SinkWorkers, opts.SinkQueue, opts.Logger),
		sessions:  make(map[string]*Session),
	}
}

// Close stops record delivery and waits until queued records have reached
// the sinks or ctx is done. Sessions keep answering; their records are dropped.
func (s *Store) Close(ctx context.Context) error {
	return s.dispatch.close(ctx)
}

func (s *Store) Create() *Session {
	sess := newSession(uuid.NewString(), s.completer, s.dispatch, s.opts)
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.opts.Logger.Debug("session created", "session_id", sess.id, "policy", s.opts.Policy)
	return sess
}

func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		sess.touch()
	}
	return sess, ok
}

// GetOrCreate returns the session for id, or a new session when id is unknown
// or has been evicted. created reports which.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	if id != "" {
		if sess, ok := s.Get(id); ok {
			return sess, false
		}
	}
	return s.Create(), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle for longer than the configured TTL and returns
// how many were removed. Sessions with a request in flight are kept.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		idle, ok := sess.idleSince(now)
		if !ok || idle <= s.opts.IdleTTL {
			continue
		}
		sess.shutdown()
		delete(s.sessions, id)
		evicted++
	}
	return evicted
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.opts.Now()); n > 0 {
				s.opts.Logger.Info("idle sessions evicted", "count", n, "remaining", s.Len())
			}
		}
	}
}
