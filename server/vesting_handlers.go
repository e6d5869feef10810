package server

import (
	"net/http"

	"github.com/liquidityos/custody-engine-go/custody"
	"github.com/liquidityos/custody-engine-go/domain"
)

type createVestingRequest struct {
	Admin                string `json:"admin"`
	Beneficiary          string `json:"beneficiary"`
	Total                string `json:"total"`
	VestingPeriodSeconds int64  `json:"vesting_period_seconds"`
	CliffPeriodSeconds   int64  `json:"cliff_period_seconds"`
	Seed                 uint64 `json:"seed"`
}

type vestingResponse struct {
	Address     string `json:"address"`
	Admin       string `json:"admin"`
	Beneficiary string `json:"beneficiary"`
	Total       string `json:"total"`
	Released    string `json:"released"`
	Unlocked    string `json:"unlocked"`
	StartTime   int64  `json:"start_time"`
	CliffTime   int64  `json:"cliff_time"`
	EndTime     int64  `json:"end_time"`
	State       string `json:"state"`
	Seed        uint64 `json:"seed"`
	Bump        uint8  `json:"bump"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

func (s *Server) vestingResponse(rec domain.VestingRecord, unlocked uint64) vestingResponse {
	return vestingResponse{
		Address:     rec.Address.String(),
		Admin:       rec.Admin.String(),
		Beneficiary: rec.Beneficiary.String(),
		Total:       s.unit.FromBaseUnits(rec.Total).String(),
		Released:    s.unit.FromBaseUnits(rec.Released).String(),
		Unlocked:    s.unit.FromBaseUnits(unlocked).String(),
		StartTime:   rec.StartTime,
		CliffTime:   rec.CliffTime,
		EndTime:     rec.EndTime,
		State:       rec.State.String(),
		Seed:        rec.Seed,
		Bump:        rec.Bump,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func (s *Server) handleCreateVesting(w http.ResponseWriter, r *http.Request) {
	var req createVestingRequest
	if !s.decode(w, r, &req) {
		return
	}
	admin, err := domain.ParseAddress(req.Admin)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	beneficiary, err := domain.ParseAddress(req.Beneficiary)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	total, err := s.parseAmount(req.Total)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	rec, err := s.engine.CreateVesting(r.Context(), custody.VestingCreateRequest{
		Admin:         admin,
		Beneficiary:   beneficiary,
		Total:         total,
		VestingPeriod: req.VestingPeriodSeconds,
		CliffPeriod:   req.CliffPeriodSeconds,
		Seed:          req.Seed,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.vestingResponse(rec, 0))
}

func (s *Server) handleGetVesting(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, s)
	if !ok {
		return
	}
	rec, err := s.engine.GetVesting(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// Unlocked is advisory in the read path; a calculation error renders as 0.
	unlocked, _ := s.engine.UnlockedNow(rec)
	s.writeJSON(w, http.StatusOK, s.vestingResponse(rec, unlocked))
}

type vestingOpRequest struct {
	Caller      string `json:"caller"`
	Admin       string `json:"admin"`
	Beneficiary string `json:"beneficiary"`
	Seed        uint64 `json:"seed"`
	Amount      string `json:"amount,omitempty"` // withdraw only
}

func (s *Server) parseVestingOp(w http.ResponseWriter, r *http.Request) (vestingOpRequest, domain.Address, domain.Address, domain.Address, domain.Address, bool) {
	var zero domain.Address
	var req vestingOpRequest
	if !s.decode(w, r, &req) {
		return req, zero, zero, zero, zero, false
	}
	addr, ok := pathAddress(w, r, s)
	if !ok {
		return req, zero, zero, zero, zero, false
	}
	caller, err := domain.ParseAddress(req.Caller)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return req, zero, zero, zero, zero, false
	}
	admin, err := domain.ParseAddress(req.Admin)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return req, zero, zero, zero, zero, false
	}
	beneficiary, err := domain.ParseAddress(req.Beneficiary)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return req, zero, zero, zero, zero, false
	}
	return req, addr, caller, admin, beneficiary, true
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	req, addr, caller, admin, beneficiary, ok := s.parseVestingOp(w, r)
	if !ok {
		return
	}
	amount, err := s.parseAmount(req.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	rec, err := s.engine.Withdraw(r.Context(), custody.WithdrawRequest{
		Caller:      caller,
		Address:     addr,
		Admin:       admin,
		Beneficiary: beneficiary,
		Seed:        req.Seed,
		Amount:      amount,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	unlocked, _ := s.engine.UnlockedNow(rec)
	s.writeJSON(w, http.StatusOK, s.vestingResponse(rec, unlocked))
}

func (s *Server) handleCancelVesting(w http.ResponseWriter, r *http.Request) {
	req, addr, caller, admin, beneficiary, ok := s.parseVestingOp(w, r)
	if !ok {
		return
	}
	rec, err := s.engine.CancelVesting(r.Context(), custody.VestingCancelRequest{
		Caller:      caller,
		Address:     addr,
		Admin:       admin,
		Beneficiary: beneficiary,
		Seed:        req.Seed,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.vestingResponse(rec, 0))
}

func (s *Server) handleCloseVesting(w http.ResponseWriter, r *http.Request) {
	req, addr, caller, admin, beneficiary, ok := s.parseVestingOp(w, r)
	if !ok {
		return
	}
	err := s.engine.CloseVesting(r.Context(), custody.VestingCloseRequest{
		Caller:      caller,
		Address:     addr,
		Admin:       admin,
		Beneficiary: beneficiary,
		Seed:        req.Seed,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"closed": true})
}
