package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/liquidityos/custody-engine-go/domain"
)

// RecordStore implements custody.RecordStore with in-process maps.
type RecordStore struct {
	mu       sync.RWMutex
	custody  map[domain.Address]domain.CustodyRecord
	vestings map[domain.Address]domain.VestingRecord
}

// NewRecordStore creates an empty record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		custody:  make(map[domain.Address]domain.CustodyRecord),
		vestings: make(map[domain.Address]domain.VestingRecord),
	}
}

func (s *RecordStore) GetCustody(ctx context.Context, addr domain.Address) (domain.CustodyRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.CustodyRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.custody[addr]
	if !ok {
		return domain.CustodyRecord{}, fmt.Errorf("custody %s: %w", addr, domain.ErrNotFound)
	}
	return rec, nil
}

func (s *RecordStore) PutCustody(ctx context.Context, rec domain.CustodyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.custody[rec.Address] = rec
	return nil
}

func (s *RecordStore) DeleteCustody(ctx context.Context, addr domain.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.custody[addr]; !ok {
		return fmt.Errorf("custody %s: %w", addr, domain.ErrNotFound)
	}
	delete(s.custody, addr)
	return nil
}

func (s *RecordStore) GetVesting(ctx context.Context, addr domain.Address) (domain.VestingRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.VestingRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.vestings[addr]
	if !ok {
		return domain.VestingRecord{}, fmt.Errorf("vesting %s: %w", addr, domain.ErrNotFound)
	}
	return rec, nil
}

func (s *RecordStore) PutVesting(ctx context.Context, rec domain.VestingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vestings[rec.Address] = rec
	return nil
}

func (s *RecordStore) DeleteVesting(ctx context.Context, addr domain.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vestings[addr]; !ok {
		return fmt.Errorf("vesting %s: %w", addr, domain.ErrNotFound)
	}
	delete(s.vestings, addr)
	return nil
}
