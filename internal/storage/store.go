package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	opterrors "github.com/ducminhle1904/crypto-sl-optimizer/internal/errors"
)

// ErrRunNotFound is returned when a run id is unknown
var ErrRunNotFound = errors.New("run not found")

const tradeBatchSize = 500

// Config configures the results database
type Config struct {
	Path     string // SQLite file; ":memory:" for a private in-memory database
	LogLevel string // silent, error, warn, info
}

// Store persists runs, ranked candidates and replayed trades in SQLite
type Store struct {
	db *gorm.DB
}

// Open opens the database and migrates the schema
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, opterrors.NewConfigurationError("storage", "open", "database path is empty")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, opterrors.NewStorageError("storage", "open", err)
		}
	}

	logLevel := logger.Silent
	switch cfg.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, opterrors.NewStorageError("storage", "open", fmt.Errorf("failed to open database: %w", err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, opterrors.NewStorageError("storage", "open", err)
	}
	// single connection: SQLite allows one writer and :memory: is per connection
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&RunRecord{}, &CandidateRecord{}, &TradeRecord{}); err != nil {
		return nil, opterrors.NewStorageError("storage", "migrate", fmt.Errorf("failed to auto migrate: %w", err))
	}
	log.Debug().Str("path", cfg.Path).Msg("results database ready")
	return &Store{db: db}, nil
}

// SaveRun stores a run with its candidates and trades in one transaction
func (s *Store) SaveRun(ctx context.Context, run *RunRecord) error {
	candidates, trades := run.Candidates, run.Trades
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Candidates", "Trades").Create(run).Error; err != nil {
			return err
		}
		for i := range candidates {
			candidates[i].RunID = run.ID
		}
		for i := range trades {
			trades[i].RunID = run.ID
		}
		if len(candidates) > 0 {
			if err := tx.CreateInBatches(candidates, tradeBatchSize).Error; err != nil {
				return err
			}
		}
		if len(trades) > 0 {
			if err := tx.CreateInBatches(trades, tradeBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return opterrors.NewStorageError("storage", "save_run", err).WithContext("run", run.ID)
	}
	log.Info().Str("run", run.ID).Int("candidates", len(candidates)).Int("trades", len(trades)).
		Msg("💾 run saved")
	return nil
}

// ListRuns returns the most recent runs first, without candidates
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := s.db.WithContext(ctx).Model(&RunRecord{}).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var runs []RunRecord
	if err := query.Find(&runs).Error; err != nil {
		return nil, opterrors.NewStorageError("storage", "list_runs", err)
	}
	return runs, nil
}

// GetRun loads a run and its top candidates ordered by rank. topN <= 0
// loads every candidate.
func (s *Store) GetRun(ctx context.Context, id string, topN int) (*RunRecord, error) {
	var run RunRecord
	err := s.db.WithContext(ctx).
		Preload("Candidates", func(db *gorm.DB) *gorm.DB {
			db = db.Order("rank_no ASC")
			if topN > 0 {
				db = db.Where("rank_no <= ?", topN)
			}
			return db
		}).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, opterrors.NewStorageError("storage", "get_run", ErrRunNotFound).WithContext("run", id)
	}
	if err != nil {
		return nil, opterrors.NewStorageError("storage", "get_run", err).WithContext("run", id)
	}
	return &run, nil
}

// GetTrades returns the replayed trades of one candidate rank of a run
func (s *Store) GetTrades(ctx context.Context, runID string, rank int) ([]TradeRecord, error) {
	var trades []TradeRecord
	err := s.db.WithContext(ctx).
		Where("run_id = ? AND rank_no = ?", runID, rank).
		Order("entry_time ASC, num ASC").
		Find(&trades).Error
	if err != nil {
		return nil, opterrors.NewStorageError("storage", "get_trades", err)
	}
	return trades, nil
}

// DeleteRun removes a run and everything attached to it
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&TradeRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", id).Delete(&CandidateRecord{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&RunRecord{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRunNotFound
		}
		return nil
	})
	if err != nil {
		return opterrors.NewStorageError("storage", "delete_run", err).WithContext("run", id)
	}
	return nil
}

// Close closes the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
