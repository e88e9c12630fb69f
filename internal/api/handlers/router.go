package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/rent-ledger/internal/api/middleware"
)

// NewRouter registers every endpoint and wraps the mux with the middleware chain.
func NewRouter(rentsH *RentsHandler, importH *ImportHandler, jobsH *JobsHandler, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Rents endpoints
	mux.HandleFunc("GET /api/rents/{year}/{month}", rentsH.RentsByMonth)
	mux.HandleFunc("PATCH /api/rents/payment/{term}", rentsH.UpdateByTerm)
	mux.HandleFunc("GET /api/rents/tenant/{id}", rentsH.RentsOfOccupant)
	mux.HandleFunc("GET /api/rents/tenant/{id}/{term}", rentsH.RentOfOccupantByTerm)
	mux.HandleFunc("POST /api/rents/import", importH.ImportPayments)
	mux.HandleFunc("GET /api/dashboard", rentsH.Dashboard)

	// Jobs endpoints
	mux.HandleFunc("GET /api/jobs", jobsH.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", jobsH.GetJob)

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)
}
