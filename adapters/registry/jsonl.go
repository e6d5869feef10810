package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/liquidityos/custody-engine-go/custody"
	"github.com/liquidityos/custody-engine-go/domain"
)

// JSONLStore appends registry events to a JSONL file and answers queries by
// linear scan. Append-only: committed audit lines are never rewritten.
type JSONLStore struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// NewJSONLStore creates or opens the JSONL file at path, creating parent
// directories as needed.
func NewJSONLStore(path string) (*JSONLStore, error) {
	if path == "" {
		return nil, os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLStore{path: path, f: f}, nil
}

func validateEvent(ev custody.RegistryEvent) error {
	if len(ev.Description) > custody.MaxEventDescriptionLen {
		return fmt.Errorf("description %d chars, max %d: %w",
			len(ev.Description), custody.MaxEventDescriptionLen, domain.ErrDescriptionTooLong)
	}
	return nil
}

type eventLine struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Amount      uint64 `json:"amount"`
	Initiator   string `json:"initiator"`
	Target      string `json:"target"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp"`
}

// Record appends one event as a JSON line.
func (s *JSONLStore) Record(ctx context.Context, ev custody.RegistryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateEvent(ev); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(eventLine{
		ID:          ev.ID,
		Kind:        ev.Kind,
		Amount:      ev.Amount,
		Initiator:   ev.Initiator.String(),
		Target:      ev.Target.String(),
		Description: ev.Description,
		Timestamp:   ev.Timestamp,
	})
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = s.f.Write(data)
	return err
}

// QueryByTarget reads the whole file and returns every event whose target is
// the given account, in append order. Linear scan.
func (s *JSONLStore) QueryByTarget(ctx context.Context, target domain.Address) ([]custody.RegistryEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	_ = s.f.Sync()
	s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []custody.RegistryEvent
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		var el eventLine
		if err := json.Unmarshal(line, &el); err != nil {
			continue
		}
		if el.Target != target.String() {
			continue
		}
		initiator, err := domain.ParseAddress(el.Initiator)
		if err != nil {
			continue
		}
		out = append(out, custody.RegistryEvent{
			ID:          el.ID,
			Kind:        el.Kind,
			Amount:      el.Amount,
			Initiator:   initiator,
			Target:      target,
			Description: el.Description,
			Timestamp:   el.Timestamp,
		})
	}
	return out, nil
}

// VerifyAmount checks that a recorded event of the given kind for the target
// carries exactly the expected amount.
func (s *JSONLStore) VerifyAmount(ctx context.Context, target domain.Address, kind string, expected uint64) error {
	events, err := s.QueryByTarget(ctx, target)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Kind == kind && ev.Amount == expected {
			return nil
		}
	}
	return fmt.Errorf("no %s event for %s with amount %d: %w", kind, target, expected, domain.ErrNotFound)
}

// Close closes the underlying file.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
