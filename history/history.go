// Package history archives finished transfers so operators can audit what
// happened to a call after the fact. Archiving is best effort: the transfer
// itself never fails because the archive is down.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/warmline/warmline/types"
)

// Record is one archived transfer in its terminal state.
type Record struct {
	ID              string `gorm:"primaryKey;size:64"`
	SourceRoom      string `gorm:"size:256;index"`
	DestinationRoom string `gorm:"size:256"`
	AgentAIdentity  string `gorm:"size:128"`
	AgentBIdentity  string `gorm:"size:128"`
	Summary         string `gorm:"type:text"`
	FinalState      string `gorm:"size:32;index"`
	Warning         string `gorm:"size:256"`
	Reason          string `gorm:"size:512"`
	StartedAt       time.Time
	ArchivedAt      time.Time `gorm:"index"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (Record) TableName() string { return "transfer_history" }

// Store persists terminal transfer records.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open opens (and migrates) a SQLite-backed store at path. Use ":memory:"
// for an ephemeral store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to open history store").WithCause(err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to migrate history store").WithCause(err)
	}
	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "history")),
	}, nil
}

// NewStore wraps an already open gorm handle. The caller owns migration.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.With(zap.String("component", "history"))}
}

// Ping verifies the underlying database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Archive stores the terminal snapshot of a transfer. Non-terminal snapshots
// are rejected; archiving the same transfer twice overwrites the record.
func (s *Store) Archive(ctx context.Context, snap types.TransferSnapshot) error {
	if !snap.State.Terminal() {
		return types.NewError(types.ErrInvalidRequest, "only finished transfers can be archived")
	}

	rec := Record{
		ID:              snap.ID,
		SourceRoom:      snap.SourceRoom,
		DestinationRoom: snap.DestinationRoom,
		AgentAIdentity:  snap.AgentAIdentity,
		AgentBIdentity:  snap.AgentBIdentity,
		Summary:         snap.SummaryText,
		FinalState:      string(snap.State),
		Warning:         snap.Warning,
		Reason:          snap.Reason,
		StartedAt:       snap.CreatedAt,
		ArchivedAt:      time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return types.NewError(types.ErrInternalError, "failed to archive transfer").WithCause(err)
	}

	s.logger.Debug("transfer archived",
		zap.String("transfer_id", snap.ID), zap.String("final_state", rec.FinalState))
	return nil
}

// Get returns the archived record for a transfer id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, types.NewError(types.ErrTransferNotFound, "no archived transfer with that id")
	}
	if err != nil {
		return Record{}, types.NewError(types.ErrInternalError, "failed to read history").WithCause(err)
	}
	return rec, nil
}

// List returns the most recently archived records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var recs []Record
	err := s.db.WithContext(ctx).Order("archived_at DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list history").WithCause(err)
	}
	return recs, nil
}

// BySourceRoom returns archived transfers that started in room, newest first.
func (s *Store) BySourceRoom(ctx context.Context, room string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var recs []Record
	err := s.db.WithContext(ctx).
		Where("source_room = ?", room).
		Order("archived_at DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list history").WithCause(err)
	}
	return recs, nil
}
