package controller

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"envscope/internal/modules/analysis/session"
	"envscope/internal/modules/analysis/types"
	"envscope/internal/modules/analysis/views"
)

const (
	defaultAnalysesLimit = 50
	maxAnalysesLimit     = 500
)

type analysesQuery struct {
	SessionID string
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// ranged reports whether the caller asked for a time window.
func (q analysesQuery) ranged() bool {
	return !q.From.IsZero() || !q.To.IsZero()
}

// parseAnalysesQuery reads session_id, from, to, limit and offset. An empty
// session_id, or "current", means the caller's own session; the log is never
// listed across sessions.
func parseAnalysesQuery(r *http.Request, currentID string) (q analysesQuery, err error) {
	v := r.URL.Query()

	q.SessionID = strings.TrimSpace(v.Get("session_id"))
	if q.SessionID == "" || q.SessionID == "current" {
		q.SessionID = currentID
	}

	if s := v.Get("from"); s != "" {
		q.From, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return analysesQuery{}, errors.New("invalid 'from' (expected RFC3339)")
		}
	}
	if s := v.Get("to"); s != "" {
		q.To, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return analysesQuery{}, errors.New("invalid 'to' (expected RFC3339)")
		}
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return analysesQuery{}, errors.New("'from' must be <= 'to'")
	}

	q.Limit = defaultAnalysesLimit
	if s := v.Get("limit"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return analysesQuery{}, errors.New("invalid 'limit' (expected integer)")
		}
		if n <= 0 {
			return analysesQuery{}, errors.New("'limit' must be > 0")
		}
		if n > maxAnalysesLimit {
			return analysesQuery{}, errors.New("'limit' must be <= 500")
		}
		q.Limit = n
	}

	if s := v.Get("offset"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil || n < 0 {
			return analysesQuery{}, errors.New("invalid 'offset' (expected integer >= 0)")
		}
		q.Offset = n
	}
	return q, nil
}

func turnView(t types.ConversationTurn) views.TurnView {
	return views.TurnView{
		Role:    t.Role,
		Content: t.Content,
		Time:    t.Time,
		Failed:  t.Role == types.RoleAssistant && t.Content == session.Apology,
	}
}

func turnViews(turns []types.ConversationTurn) []views.TurnView {
	out := make([]views.TurnView, 0, len(turns))
	for _, t := range turns {
		out = append(out, turnView(t))
	}
	return out
}
