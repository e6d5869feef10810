// Package sqlite provides a SQLite-backed custody.RecordStore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/liquidityos/custody-engine-go/domain"
	_ "modernc.org/sqlite"
)

// Store persists custody and vesting records in SQLite. Amounts and seeds are
// stored as decimal strings because SQLite INTEGER is signed 64-bit and the
// engine's amounts span the full uint64 range.
type Store struct {
	sqlDB *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS custody_records (
  address        TEXT PRIMARY KEY,
  owner          TEXT NOT NULL,
  counterparty   TEXT NOT NULL,
  amount         TEXT NOT NULL,
  cond_kind      INTEGER NOT NULL,
  cond_timestamp INTEGER NOT NULL,
  cond_bps       INTEGER NOT NULL,
  state          INTEGER NOT NULL,
  seed           TEXT NOT NULL,
  bump           INTEGER NOT NULL,
  created_at     INTEGER NOT NULL,
  updated_at     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS vesting_records (
  address     TEXT PRIMARY KEY,
  admin       TEXT NOT NULL,
  beneficiary TEXT NOT NULL,
  total       TEXT NOT NULL,
  released    TEXT NOT NULL,
  start_time  INTEGER NOT NULL,
  cliff_time  INTEGER NOT NULL,
  end_time    INTEGER NOT NULL,
  state       INTEGER NOT NULL,
  seed        TEXT NOT NULL,
  bump        INTEGER NOT NULL,
  created_at  INTEGER NOT NULL,
  updated_at  INTEGER NOT NULL
);
`

// Open opens (or creates) the store at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) GetCustody(ctx context.Context, addr domain.Address) (domain.CustodyRecord, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT owner, counterparty, amount, cond_kind, cond_timestamp, cond_bps,
		       state, seed, bump, created_at, updated_at
		FROM custody_records WHERE address = ?`, addr.String())

	var (
		ownerHex, cptyHex, amountStr, seedStr string
		condKind, state, bump                 int64
		rec                                   domain.CustodyRecord
	)
	err := row.Scan(&ownerHex, &cptyHex, &amountStr, &condKind, &rec.Condition.Timestamp,
		&rec.Condition.ThresholdBps, &state, &seedStr, &bump, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CustodyRecord{}, fmt.Errorf("custody %s: %w", addr, domain.ErrNotFound)
	}
	if err != nil {
		return domain.CustodyRecord{}, fmt.Errorf("get custody record: %w", err)
	}

	rec.Address = addr
	if rec.Owner, err = domain.ParseAddress(ownerHex); err != nil {
		return domain.CustodyRecord{}, fmt.Errorf("get custody record: %w", err)
	}
	if rec.Counterparty, err = domain.ParseAddress(cptyHex); err != nil {
		return domain.CustodyRecord{}, fmt.Errorf("get custody record: %w", err)
	}
	if rec.Amount, err = strconv.ParseUint(amountStr, 10, 64); err != nil {
		return domain.CustodyRecord{}, fmt.Errorf("get custody record: %w", err)
	}
	if rec.Seed, err = strconv.ParseUint(seedStr, 10, 64); err != nil {
		return domain.CustodyRecord{}, fmt.Errorf("get custody record: %w", err)
	}
	rec.Condition.Kind = domain.ConditionKind(condKind)
	rec.State = domain.State(state)
	rec.Bump = uint8(bump)
	return rec, nil
}

func (s *Store) PutCustody(ctx context.Context, rec domain.CustodyRecord) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO custody_records (
		  address, owner, counterparty, amount, cond_kind, cond_timestamp,
		  cond_bps, state, seed, bump, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
		  state = excluded.state,
		  counterparty = excluded.counterparty,
		  updated_at = excluded.updated_at`,
		rec.Address.String(),
		rec.Owner.String(),
		rec.Counterparty.String(),
		strconv.FormatUint(rec.Amount, 10),
		int64(rec.Condition.Kind),
		rec.Condition.Timestamp,
		rec.Condition.ThresholdBps,
		int64(rec.State),
		strconv.FormatUint(rec.Seed, 10),
		int64(rec.Bump),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put custody record: %w", err)
	}
	return nil
}

func (s *Store) DeleteCustody(ctx context.Context, addr domain.Address) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM custody_records WHERE address = ?`, addr.String())
	if err != nil {
		return fmt.Errorf("delete custody record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete custody record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("custody %s: %w", addr, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) GetVesting(ctx context.Context, addr domain.Address) (domain.VestingRecord, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT admin, beneficiary, total, released, start_time, cliff_time,
		       end_time, state, seed, bump, created_at, updated_at
		FROM vesting_records WHERE address = ?`, addr.String())

	var (
		adminHex, benHex, totalStr, releasedStr, seedStr string
		state, bump                                      int64
		rec                                              domain.VestingRecord
	)
	err := row.Scan(&adminHex, &benHex, &totalStr, &releasedStr, &rec.StartTime,
		&rec.CliffTime, &rec.EndTime, &state, &seedStr, &bump, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.VestingRecord{}, fmt.Errorf("vesting %s: %w", addr, domain.ErrNotFound)
	}
	if err != nil {
		return domain.VestingRecord{}, fmt.Errorf("get vesting record: %w", err)
	}

	rec.Address = addr
	if rec.Admin, err = domain.ParseAddress(adminHex); err != nil {
		return domain.VestingRecord{}, fmt.Errorf("get vesting record: %w", err)
	}
	if rec.Beneficiary, err = domain.ParseAddress(benHex); err != nil {
		return domain.VestingRecord{}, fmt.Errorf("get vesting record: %w", err)
	}
	if rec.Total, err = strconv.ParseUint(totalStr, 10, 64); err != nil {
		return domain.VestingRecord{}, fmt.Errorf("get vesting record: %w", err)
	}
	if rec.Released, err = strconv.ParseUint(releasedStr, 10, 64); err != nil {
		return domain.VestingRecord{}, fmt.Errorf("get vesting record: %w", err)
	}
	if rec.Seed, err = strconv.ParseUint(seedStr, 10, 64); err != nil {
		return domain.VestingRecord{}, fmt.Errorf("get vesting record: %w", err)
	}
	rec.State = domain.State(state)
	rec.Bump = uint8(bump)
	return rec, nil
}

func (s *Store) PutVesting(ctx context.Context, rec domain.VestingRecord) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO vesting_records (
		  address, admin, beneficiary, total, released, start_time, cliff_time,
		  end_time, state, seed, bump, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
		  released = excluded.released,
		  state = excluded.state,
		  updated_at = excluded.updated_at`,
		rec.Address.String(),
		rec.Admin.String(),
		rec.Beneficiary.String(),
		strconv.FormatUint(rec.Total, 10),
		strconv.FormatUint(rec.Released, 10),
		rec.StartTime,
		rec.CliffTime,
		rec.EndTime,
		int64(rec.State),
		strconv.FormatUint(rec.Seed, 10),
		int64(rec.Bump),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put vesting record: %w", err)
	}
	return nil
}

func (s *Store) DeleteVesting(ctx context.Context, addr domain.Address) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM vesting_records WHERE address = ?`, addr.String())
	if err != nil {
		return fmt.Errorf("delete vesting record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete vesting record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("vesting %s: %w", addr, domain.ErrNotFound)
	}
	return nil
}
