package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"envscope/internal/modules/analysis/completion"
	"envscope/internal/modules/analysis/extractor"
	"envscope/internal/modules/analysis/types"
)

// Apology is appended as the assistant turn when the completion call fails.
const Apology = "Sorry, there was an error processing your request."

type Policy string

const (
	// PolicyReject refuses a second request while one is in flight.
	PolicyReject Policy = "reject"
	// PolicyReplace cancels the in-flight request; only the newest may append a reply.
	PolicyReplace Policy = "replace"
)

var (
	ErrEmptyInput = errors.New("session: empty input")
	ErrBusy       = errors.New("session: a request is already in flight")
	ErrSuperseded = errors.New("session: request superseded by a newer one")
)

// RecordSink receives every record that replaced a session's current record.
type RecordSink interface {
	RecordExtracted(ctx context.Context, sessionID string, rec *types.EnvironmentalRecord) error
}

// Exchange is the outcome of one Send.
type Exchange struct {
	User          types.ConversationTurn     `json:"user"`
	Reply         types.ConversationTurn     `json:"reply"`
	Failed        bool                       `json:"failed"`
	RecordUpdated bool                       `json:"recordUpdated"`
	Record        *types.EnvironmentalRecord `json:"record"`
}

// Snapshot is a copy of a session's state; mutating it does not affect the session.
type Snapshot struct {
	ID         string                     `json:"id"`
	Turns      []types.ConversationTurn   `json:"turns"`
	Record     *types.EnvironmentalRecord `json:"record"`
	LastActive time.Time                  `json:"lastActive"`
}

// Session owns one conversation and the record extracted from it.
type Session struct {
	id        string
	completer completion.Completer
	dispatch  *dispatcher
	policy    Policy
	logger    *slog.Logger
	now       func() time.Time
	sem       *semaphore.Weighted

	mu         sync.Mutex
	turns      []types.ConversationTurn
	record     *types.EnvironmentalRecord
	lastActive time.Time
	inFlight   int
	gen        uint64
	cancel     context.CancelFunc
}

func newSession(id string, c completion.Completer, d *dispatcher, opts Options) *Session {
	s := &Session{
		id:        id,
		completer: c,
		dispatch:  d,
		policy:    opts.Policy,
		logger:    opts.Logger.With("session_id", id),
		now:       opts.Now,
		sem:       semaphore.NewWeighted(1),
	}
	s.lastActive = s.now()
	return s
}

func (s *Session) ID() string { return s.id }

// Send appends text as a user turn, asks the completer for a reply, appends
// the reply and, when the reply carries a valid record, replaces the current
// record. A failed completion appends Apology instead; that is not an error
// for the caller. Errors are returned only when nothing was answered:
// ErrEmptyInput, ErrBusy or ErrSuperseded.
func (s *Session) Send(ctx context.Context, text string) (Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return Exchange{}, ErrEmptyInput
	}

	if s.policy != PolicyReplace {
		if !s.sem.TryAcquire(1) {
			return Exchange{}, ErrBusy
		}
		defer s.sem.Release(1)
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.gen++
	gen := s.gen
	s.cancel = cancel
	history := append([]types.ConversationTurn(nil), s.turns...)
	user := types.ConversationTurn{Role: types.RoleUser, Content: text, Time: s.now()}
	s.turns = append(s.turns, user)
	s.inFlight++
	s.lastActive = user.Time
	s.mu.Unlock()

	start := time.Now()
	reply, err := s.completer.Complete(ctx, history, text)

	s.mu.Lock()
	s.inFlight--
	s.lastActive = s.now()
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Info("completion superseded", "duration_ms", time.Since(start).Milliseconds())
		return Exchange{}, ErrSuperseded
	}
	s.cancel = nil

	ex := Exchange{User: user}
	if err != nil {
		s.logger.Error("completion failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		ex.Failed = true
		ex.Reply = types.ConversationTurn{Role: types.RoleAssistant, Content: Apology, Time: s.now()}
		s.turns = append(s.turns, ex.Reply)
		ex.Record = s.record
		s.mu.Unlock()
		return ex, nil
	}

	ex.Reply = types.ConversationTurn{Role: types.RoleAssistant, Content: reply, Time: s.now()}
	s.turns = append(s.turns, ex.Reply)
	rec, xerr := extractor.Extract(reply)
	if xerr == nil {
		s.record = rec
		ex.RecordUpdated = true
	}
	ex.Record = s.record
	s.mu.Unlock()

	s.logger.Info("completion received",
		"duration_ms", time.Since(start).Milliseconds(),
		"reply_len", len(reply),
		"record_updated", ex.RecordUpdated,
	)
	if xerr != nil {
		s.logger.Warn("no record extracted", "error", xerr)
		return ex, nil
	}

	s.dispatch.enqueue(context.WithoutCancel(ctx), s.id, rec)
	return ex, nil
}

// Snapshot copies the conversation and returns the current record, which is
// never mutated in place.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:         s.id,
		Turns:      append([]types.ConversationTurn(nil), s.turns...),
		Record:     s.record,
		LastActive: s.lastActive,
	}
}

// Record returns the current record, nil until one has been extracted.
func (s *Session) Record() *types.EnvironmentalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

func (s *Session) idleSince(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight > 0 {
		return 0, false
	}
	return now.Sub(s.lastActive), true
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()
}

// shutdown cancels any in-flight completion.
func (s *Session) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func sinkName(sink RecordSink) string {
	if n, ok := sink.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "sink"
}
