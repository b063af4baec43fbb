package analysis

import (
	"database/sql"
	"net/http"

	"envscope/internal/modules/analysis/controller"
	"envscope/internal/modules/analysis/repository"
)

func RegisterFeature(mux *http.ServeMux, db *sql.DB, sessions controller.Sessions) {
	analysisRepository := repository.NewRepository(db)
	analysisController := controller.NewAnalysisController(sessions, analysisRepository)
	analysisController.RegisterRoutes(mux)
}
