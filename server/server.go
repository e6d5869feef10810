// Package server exposes the custody engine over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/liquidityos/custody-engine-go/custody"
	"github.com/liquidityos/custody-engine-go/domain"
)

// Server routes HTTP requests into the custody engine. Amounts cross the wire
// as human-denominated decimal strings in the configured value unit; all
// internal movement stays in integer base units.
type Server struct {
	engine *custody.Engine
	unit   domain.ValueUnit
	log    *slog.Logger
}

// New builds a server; log may be nil to use the default logger.
func New(engine *custody.Engine, unit domain.ValueUnit, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: engine, unit: unit, log: log}
}

// Router assembles the chi routing tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1/escrows", func(api chi.Router) {
		api.Post("/", s.handleCreateEscrow)
		api.Get("/{address}", s.handleGetEscrow)
		api.Post("/{address}/execute", s.handleExecuteEscrow)
		api.Post("/{address}/cancel", s.handleCancelEscrow)
		api.Post("/{address}/close", s.handleCloseEscrow)
	})

	r.Route("/v1/vestings", func(api chi.Router) {
		api.Post("/", s.handleCreateVesting)
		api.Get("/{address}", s.handleGetVesting)
		api.Post("/{address}/withdraw", s.handleWithdraw)
		api.Post("/{address}/cancel", s.handleCancelVesting)
		api.Post("/{address}/close", s.handleCloseVesting)
	})

	return r
}

// requestID tags every request with an id for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		s.log.Debug("http request", "id", id, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response failed", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the domain error taxonomy onto HTTP statuses: validation
// 400, timing 422, authorization 403, state conflicts 409, missing records
// 404, arithmetic 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCondition),
		errors.Is(err, domain.ErrInvalidSchedule),
		errors.Is(err, domain.ErrDescriptionTooLong):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConditionNotMet),
		errors.Is(err, domain.ErrCliffNotReached),
		errors.Is(err, domain.ErrInsufficientVested),
		errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrSelfDeal):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotActive),
		errors.Is(err, domain.ErrStillActive),
		errors.Is(err, domain.ErrFundsRemaining),
		errors.Is(err, domain.ErrDuplicateAddress):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrAddressMismatch):
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) parseAmount(raw string) (uint64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	return s.unit.ToBaseUnits(d)
}

func pathAddress(w http.ResponseWriter, r *http.Request, s *Server) (domain.Address, bool) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return domain.Address{}, false
	}
	return addr, true
}
