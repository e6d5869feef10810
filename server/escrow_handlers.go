package server

import (
	"net/http"

	"github.com/liquidityos/custody-engine-go/custody"
	"github.com/liquidityos/custody-engine-go/domain"
)

type createEscrowRequest struct {
	Owner        string `json:"owner"`
	Counterparty string `json:"counterparty,omitempty"`
	Amount       string `json:"amount"`
	Seed         uint64 `json:"seed"`

	Condition struct {
		Type      string `json:"type"` // "unconditional" | "timestamp" | "percentage"
		Timestamp int64  `json:"timestamp,omitempty"`
		Percent   uint32 `json:"percent,omitempty"`
	} `json:"condition"`
}

type escrowResponse struct {
	Address      string `json:"address"`
	Owner        string `json:"owner"`
	Counterparty string `json:"counterparty,omitempty"`
	Amount       string `json:"amount"`
	Condition    string `json:"condition"`
	State        string `json:"state"`
	Seed         uint64 `json:"seed"`
	Bump         uint8  `json:"bump"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

func (s *Server) escrowResponse(rec domain.CustodyRecord) escrowResponse {
	resp := escrowResponse{
		Address:   rec.Address.String(),
		Owner:     rec.Owner.String(),
		Amount:    s.unit.FromBaseUnits(rec.Amount).String(),
		Condition: rec.Condition.String(),
		State:     rec.State.String(),
		Seed:      rec.Seed,
		Bump:      rec.Bump,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if !rec.Counterparty.IsZero() {
		resp.Counterparty = rec.Counterparty.String()
	}
	return resp
}

func (s *Server) handleCreateEscrow(w http.ResponseWriter, r *http.Request) {
	var req createEscrowRequest
	if !s.decode(w, r, &req) {
		return
	}

	owner, err := domain.ParseAddress(req.Owner)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	var counterparty domain.Address
	if req.Counterparty != "" {
		if counterparty, err = domain.ParseAddress(req.Counterparty); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	amount, err := s.parseAmount(req.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var condition domain.ReleaseCondition
	switch req.Condition.Type {
	case "", "unconditional":
		condition = domain.Unconditional()
	case "timestamp":
		condition = domain.AfterTimestamp(req.Condition.Timestamp)
	case "percentage":
		condition = domain.PercentageThreshold(req.Condition.Percent)
	default:
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown condition type " + req.Condition.Type})
		return
	}

	rec, err := s.engine.Create(r.Context(), custody.CreateRequest{
		Owner:        owner,
		Counterparty: counterparty,
		Amount:       amount,
		Condition:    condition,
		Seed:         req.Seed,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.escrowResponse(rec))
}

func (s *Server) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, s)
	if !ok {
		return
	}
	rec, err := s.engine.GetCustody(r.Context(), addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.escrowResponse(rec))
}

type escrowOpRequest struct {
	Caller string `json:"caller"`
	Owner  string `json:"owner"`
	Seed   uint64 `json:"seed"`
	Amount string `json:"amount,omitempty"` // execute only; empty requests the full amount
}

func (s *Server) parseEscrowOp(w http.ResponseWriter, r *http.Request) (escrowOpRequest, domain.Address, domain.Address, domain.Address, bool) {
	var req escrowOpRequest
	if !s.decode(w, r, &req) {
		return req, domain.Address{}, domain.Address{}, domain.Address{}, false
	}
	addr, ok := pathAddress(w, r, s)
	if !ok {
		return req, domain.Address{}, domain.Address{}, domain.Address{}, false
	}
	caller, err := domain.ParseAddress(req.Caller)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return req, domain.Address{}, domain.Address{}, domain.Address{}, false
	}
	owner, err := domain.ParseAddress(req.Owner)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return req, domain.Address{}, domain.Address{}, domain.Address{}, false
	}
	return req, addr, caller, owner, true
}

func (s *Server) handleExecuteEscrow(w http.ResponseWriter, r *http.Request) {
	req, addr, caller, owner, ok := s.parseEscrowOp(w, r)
	if !ok {
		return
	}
	var amount uint64
	if req.Amount != "" {
		var err error
		if amount, err = s.parseAmount(req.Amount); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	rec, err := s.engine.Execute(r.Context(), custody.ExecuteRequest{
		Caller:  caller,
		Address: addr,
		Owner:   owner,
		Seed:    req.Seed,
		Amount:  amount,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.escrowResponse(rec))
}

func (s *Server) handleCancelEscrow(w http.ResponseWriter, r *http.Request) {
	req, addr, caller, owner, ok := s.parseEscrowOp(w, r)
	if !ok {
		return
	}
	rec, err := s.engine.Cancel(r.Context(), custody.CancelRequest{
		Caller:  caller,
		Address: addr,
		Owner:   owner,
		Seed:    req.Seed,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.escrowResponse(rec))
}

func (s *Server) handleCloseEscrow(w http.ResponseWriter, r *http.Request) {
	req, addr, caller, owner, ok := s.parseEscrowOp(w, r)
	if !ok {
		return
	}
	err := s.engine.Close(r.Context(), custody.CloseRequest{
		Caller:  caller,
		Address: addr,
		Owner:   owner,
		Seed:    req.Seed,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"closed": true})
}
