package httpapi

import (
	"database/sql"
	"net/http"
)

// NewMux registers the healthcheck and static assets. Feature routes are
// added by the analysis module.
func NewMux(db *sql.DB, staticDir string, broker BrokerStatus) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, broker)
	registerStatic(mux, staticDir)
	return mux
}

func registerStatic(mux *http.ServeMux, staticDir string) {
	if staticDir == "" {
		return
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
}
