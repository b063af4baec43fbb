package controller

import (
	"net/http"

	"envscope/internal/modules/analysis/repository"
	"envscope/internal/modules/analysis/session"
)

// SessionCookie identifies the browser's session.
const SessionCookie = "envscope_session"

type AnalysisController interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Sessions resolves a cookie value to a session, creating one when needed.
type Sessions interface {
	GetOrCreate(id string) (*session.Session, bool)
}

type analysisControllerImpl struct {
	sessions   Sessions
	repository repository.AnalysisRepository
}

func NewAnalysisController(sessions Sessions, repository repository.AnalysisRepository) AnalysisController {
	return &analysisControllerImpl{sessions: sessions, repository: repository}
}

func (c *analysisControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleIndex)
	mux.HandleFunc("POST /chat", c.handleChatForm)
	mux.HandleFunc("GET /partials/cards", c.handleCardsPartial)

	mux.HandleFunc("POST /api/v1/chat", c.handleChat)
	mux.HandleFunc("GET /api/v1/session", c.handleSession)
	mux.HandleFunc("GET /api/v1/scene", c.handleScene)
	mux.HandleFunc("GET /api/v1/session/export", c.handleExport)
	mux.HandleFunc("GET /api/v1/analyses", c.handleAnalyses)
}

// sessionFor returns the caller's session, setting the cookie when a new
// session had to be created.
func (c *analysisControllerImpl) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if ck, err := r.Cookie(SessionCookie); err == nil {
		id = ck.Value
	}
	sess, created := c.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID(),
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}
