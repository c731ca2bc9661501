// Package statestore persists the crash-recovery state of the bot: the open
// position snapshot and the last known capital. Both live as small JSON files
// replaced atomically on every save, so a crash mid-write never leaves a
// half-written file behind.
package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"swingTraderBot/internal/domain"
	"swingTraderBot/internal/ports"
)

const (
	positionFile = "position_state.json"
	capitalFile  = "capital.json"
)

// positionSnapshot is the on-disk schema for an open position. It is kept
// separate from domain.PositionState so the file format stays stable even if
// the in-memory record grows fields that have no business being persisted.
type positionSnapshot struct {
	Symbol                string             `json:"symbol"`
	Size                  float64            `json:"size"`
	EntryPrice            float64            `json:"entry_price"`
	EntryValue            float64            `json:"entry_value"`
	EntryTime             time.Time          `json:"entry_time"`
	Bracket               *domain.BracketRef `json:"bracket,omitempty"`
	StopOrderID           int64              `json:"stop_order_id,omitempty"`
	CurrentStopPrice      float64            `json:"current_stop_price"`
	TrailingStopActivated bool               `json:"trailing_stop_activated"`
	HighestPriceSeen      float64            `json:"highest_price_seen"`
	SavedAt               time.Time          `json:"saved_at"`
}

type capitalRecord struct {
	LastKnownCapital float64   `json:"last_known_capital"`
	Timestamp        time.Time `json:"timestamp"`
}

// Store reads and writes the recovery files under a single directory.
type Store struct {
	dir    string
	logger ports.Logger
}

// New creates the store and its directory if missing.
func New(dir string, logger ports.Logger) (*Store, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	if dir == "" {
		return nil, fmt.Errorf("%w: state directory is required", ports.ErrConfigurationError)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating state directory %q: %v", ports.ErrConfigurationError, dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// SavePosition writes the position snapshot to disk. A flat or nil position
// clears the file instead, so the file's presence always means "open".
func (s *Store) SavePosition(ctx context.Context, pos *domain.PositionState) error {
	if pos == nil || !pos.IsOpen() {
		return s.ClearPosition(ctx)
	}

	snap := positionSnapshot{
		Symbol:                pos.Symbol,
		Size:                  pos.Size,
		EntryPrice:            pos.EntryPrice,
		EntryValue:            pos.EntryValue,
		EntryTime:             pos.EntryTime,
		Bracket:               pos.Bracket,
		StopOrderID:           pos.StopOrderID,
		CurrentStopPrice:      pos.CurrentStopPrice,
		TrailingStopActivated: pos.TrailingStopActivated,
		HighestPriceSeen:      pos.HighestPriceSeen,
		SavedAt:               time.Now().UTC(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling position snapshot: %w", err)
	}
	if err := s.writeAtomic(positionFile, data); err != nil {
		return fmt.Errorf("saving position snapshot: %w", err)
	}
	s.logger.Debug(ctx, "Position snapshot saved", map[string]interface{}{
		"symbol": pos.Symbol,
		"size":   pos.Size,
	})
	return nil
}

// LoadPosition reads the position snapshot, or nil if none exists. A corrupt
// file is treated as no snapshot: the error is logged and recovery proceeds
// flat rather than refusing to start.
func (s *Store) LoadPosition(ctx context.Context) (*domain.PositionState, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, positionFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading position snapshot: %w", err)
	}

	var snap positionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Error(ctx, err, "Position snapshot file is corrupt; starting flat", map[string]interface{}{
			"file": positionFile,
		})
		return nil, nil
	}
	if snap.Size <= 0 || snap.Symbol == "" {
		s.logger.Error(ctx, nil, "Position snapshot file holds no open position; starting flat", map[string]interface{}{
			"file": positionFile,
		})
		return nil, nil
	}

	// Older snapshots may predate high-water tracking.
	if snap.HighestPriceSeen < snap.EntryPrice {
		snap.HighestPriceSeen = snap.EntryPrice
	}

	s.logger.Info(ctx, "Position snapshot loaded", map[string]interface{}{
		"symbol":  snap.Symbol,
		"size":    snap.Size,
		"savedAt": snap.SavedAt,
	})
	return &domain.PositionState{
		Symbol:                snap.Symbol,
		Size:                  snap.Size,
		EntryPrice:            snap.EntryPrice,
		EntryValue:            snap.EntryValue,
		EntryTime:             snap.EntryTime,
		Bracket:               snap.Bracket,
		StopOrderID:           snap.StopOrderID,
		CurrentStopPrice:      snap.CurrentStopPrice,
		TrailingStopActivated: snap.TrailingStopActivated,
		HighestPriceSeen:      snap.HighestPriceSeen,
	}, nil
}

// ClearPosition removes the snapshot file. Clearing when no file exists is a
// normal occurrence and not an error.
func (s *Store) ClearPosition(ctx context.Context) error {
	err := os.Remove(filepath.Join(s.dir, positionFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing position snapshot: %w", err)
	}
	return nil
}

// SaveCapital persists the running capital figure.
func (s *Store) SaveCapital(ctx context.Context, capital float64) error {
	data, err := json.MarshalIndent(capitalRecord{
		LastKnownCapital: capital,
		Timestamp:        time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling capital record: %w", err)
	}
	if err := s.writeAtomic(capitalFile, data); err != nil {
		return fmt.Errorf("saving capital record: %w", err)
	}
	return nil
}

// LoadCapital reads the persisted capital, falling back to defaultCapital when
// no file exists or the file cannot be parsed.
func (s *Store) LoadCapital(ctx context.Context, defaultCapital float64) float64 {
	data, err := os.ReadFile(filepath.Join(s.dir, capitalFile))
	if os.IsNotExist(err) {
		return defaultCapital
	}
	if err != nil {
		s.logger.Error(ctx, err, "Failed to read capital file; using starting capital", map[string]interface{}{
			"file":    capitalFile,
			"default": defaultCapital,
		})
		return defaultCapital
	}

	var rec capitalRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.LastKnownCapital <= 0 {
		s.logger.Error(ctx, err, "Capital file is corrupt; using starting capital", map[string]interface{}{
			"file":    capitalFile,
			"default": defaultCapital,
		})
		return defaultCapital
	}
	return rec.LastKnownCapital
}

// writeAtomic writes data to a temp file in the state directory and renames it
// over the target, so readers only ever see a complete file.
func (s *Store) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
