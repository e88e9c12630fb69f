package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/rent-ledger/internal/api/middleware"
	"github.com/dvloznov/rent-ledger/internal/jobs"
	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/rents"
	"github.com/dvloznov/rent-ledger/internal/store"
)

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	// A missing term wraps the contract error that explains it.
	switch {
	case errors.Is(err, ledger.ErrTermNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidContract),
		errors.Is(err, ledger.ErrInvalidSettlement),
		errors.Is(err, ledger.ErrDuplicatePayment),
		errors.Is(err, rents.ErrFuturePeriod),
		errors.Is(err, rents.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError writes err with its mapped status. Internal errors are
// logged and their message hidden.
func WriteServiceError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, status, msg)
		return
	}
	log.Debug().Err(err).Int("status", status).Msg(msg)
	middleware.WriteError(w, status, err.Error())
}
