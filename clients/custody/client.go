// Package custody provides an HTTP client for the custodyd service.
package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks JSON-over-HTTP to a custodyd instance. Amounts are
// human-denominated decimal strings in the service's configured value unit.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the given base URL (e.g. "http://localhost:8090").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Condition mirrors the create-escrow condition payload.
type Condition struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Percent   uint32 `json:"percent,omitempty"`
}

// CreateEscrowRequest parameterizes escrow creation.
type CreateEscrowRequest struct {
	Owner        string    `json:"owner"`
	Counterparty string    `json:"counterparty,omitempty"`
	Amount       string    `json:"amount"`
	Seed         uint64    `json:"seed"`
	Condition    Condition `json:"condition"`
}

// Escrow is the service's view of a custody record.
type Escrow struct {
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

// EscrowOp identifies an escrow operation: the caller plus the inputs the
// service re-derives the address from.
type EscrowOp struct {
	Caller string `json:"caller"`
	Owner  string `json:"owner"`
	Seed   uint64 `json:"seed"`
	Amount string `json:"amount,omitempty"`
}

// Vesting is the service's view of a vesting schedule.
type Vesting struct {
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

// CreateVestingRequest parameterizes vesting initialization.
type CreateVestingRequest struct {
	Admin                string `json:"admin"`
	Beneficiary          string `json:"beneficiary"`
	Total                string `json:"total"`
	VestingPeriodSeconds int64  `json:"vesting_period_seconds"`
	CliffPeriodSeconds   int64  `json:"cliff_period_seconds"`
	Seed                 uint64 `json:"seed"`
}

// VestingOp identifies a vesting operation by its re-derivable inputs.
type VestingOp struct {
	Caller      string `json:"caller"`
	Admin       string `json:"admin"`
	Beneficiary string `json:"beneficiary"`
	Seed        uint64 `json:"seed"`
	Amount      string `json:"amount,omitempty"`
}

// Health checks service liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) CreateEscrow(ctx context.Context, req CreateEscrowRequest) (Escrow, error) {
	var out Escrow
	err := c.do(ctx, http.MethodPost, "/v1/escrows", req, &out)
	return out, err
}

func (c *Client) GetEscrow(ctx context.Context, address string) (Escrow, error) {
	var out Escrow
	err := c.do(ctx, http.MethodGet, "/v1/escrows/"+address, nil, &out)
	return out, err
}

func (c *Client) ExecuteEscrow(ctx context.Context, address string, op EscrowOp) (Escrow, error) {
	var out Escrow
	err := c.do(ctx, http.MethodPost, "/v1/escrows/"+address+"/execute", op, &out)
	return out, err
}

func (c *Client) CancelEscrow(ctx context.Context, address string, op EscrowOp) (Escrow, error) {
	var out Escrow
	err := c.do(ctx, http.MethodPost, "/v1/escrows/"+address+"/cancel", op, &out)
	return out, err
}

func (c *Client) CloseEscrow(ctx context.Context, address string, op EscrowOp) error {
	return c.do(ctx, http.MethodPost, "/v1/escrows/"+address+"/close", op, nil)
}

func (c *Client) CreateVesting(ctx context.Context, req CreateVestingRequest) (Vesting, error) {
	var out Vesting
	err := c.do(ctx, http.MethodPost, "/v1/vestings", req, &out)
	return out, err
}

func (c *Client) GetVesting(ctx context.Context, address string) (Vesting, error) {
	var out Vesting
	err := c.do(ctx, http.MethodGet, "/v1/vestings/"+address, nil, &out)
	return out, err
}

func (c *Client) Withdraw(ctx context.Context, address string, op VestingOp) (Vesting, error) {
	var out Vesting
	err := c.do(ctx, http.MethodPost, "/v1/vestings/"+address+"/withdraw", op, &out)
	return out, err
}

func (c *Client) CancelVesting(ctx context.Context, address string, op VestingOp) (Vesting, error) {
	var out Vesting
	err := c.do(ctx, http.MethodPost, "/v1/vestings/"+address+"/cancel", op, &out)
	return out, err
}

func (c *Client) CloseVesting(ctx context.Context, address string, op VestingOp) error {
	return c.do(ctx, http.MethodPost, "/v1/vestings/"+address+"/close", op, nil)
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return fmt.Errorf("%s %s: encode request: %w", method, path, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}
