package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"envscope/internal/config"
)

// NewServer wraps mux with request logging. There is no write timeout since
// chat requests wait on the completion service.
func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(slog.Default().With("component", "http"), mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
