// Package store provides the gorm-backed badge store.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/veribadge/veribadge-core/pkg/badge"
)

// GormStore implements badge.Store on a gorm database. SQLite is the
// default backend; its single-writer model serializes the
// check-then-insert transaction in CreateActive.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// Open opens (creating if needed) the sqlite database at path and runs
// migrations.
func Open(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm database, running migrations.
func New(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&badge.Badge{}); err != nil {
		return nil, fmt.Errorf("failed to migrate badge schema: %w", err)
	}
	return &GormStore{db: db, now: time.Now}, nil
}

// SetNow overrides the store clock (for testing).
func (s *GormStore) SetNow(now func() time.Time) {
	s.now = now
}

// CreateActive inserts b unless an active badge already exists for its
// contract address. The check and insert run in one transaction so
// concurrent creates for the same contract resolve to a single winner.
// Under sqlite the loser of a true write race fails with a busy error
// and surfaces as STORE_UNAVAILABLE rather than the conflict code; a
// retry then observes the winner's row and gets the conflict.
func (s *GormStore) CreateActive(ctx context.Context, b *badge.Badge) error {
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing badge.Badge
		err := tx.
			Where("contract_address = ?", b.ContractAddress).
			Where("revoked_at IS NULL").
			Where("expires_at IS NULL OR expires_at > ?", now).
			Order("created_at DESC").
			First(&existing).Error
		if err == nil {
			return badge.NewError(badge.ErrCodeConflict,
				fmt.Sprintf("contract %s already has an active badge (id %s)", b.ContractAddress, existing.ID)).
				WithDetails(map[string]any{
					"verified_at": existing.VerifiedAt,
					"expires_at":  existing.ExpiresAt,
				})
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return wrapStoreError("active badge lookup failed", err)
		}
		if err := tx.Create(b).Error; err != nil {
			return wrapStoreError("badge insert failed", err)
		}
		return nil
	})
	return err
}

// FindActiveByContract returns the active badge for a contract.
func (s *GormStore) FindActiveByContract(ctx context.Context, contractAddress string) (*badge.Badge, error) {
	var b badge.Badge
	err := s.db.WithContext(ctx).
		Where("contract_address = ?", contractAddress).
		Where("revoked_at IS NULL").
		Where("expires_at IS NULL OR expires_at > ?", s.now()).
		Order("created_at DESC").
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, badge.ErrNotFound
		}
		return nil, wrapStoreError("active badge lookup failed", err)
	}
	return &b, nil
}

// FindByTokenHash returns the badge issued for the presented token,
// regardless of state.
func (s *GormStore) FindByTokenHash(ctx context.Context, tokenHash string) (*badge.Badge, error) {
	var b badge.Badge
	err := s.db.WithContext(ctx).
		Where("token_hash = ?", tokenHash).
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, badge.ErrNotFound
		}
		return nil, wrapStoreError("badge lookup failed", err)
	}
	return &b, nil
}

// Revoke marks the caller-owned badge for a contract as revoked. The
// revocation is a soft delete: the record keeps its history and the
// revoked_at timestamp makes it permanently fail verification.
func (s *GormStore) Revoke(ctx context.Context, contractAddress, userID, reason string, at time.Time) (*badge.Badge, error) {
	var revoked *badge.Badge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b badge.Badge
		err := tx.
			Where("contract_address = ?", contractAddress).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			First(&b).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return badge.ErrNotFound
			}
			return wrapStoreError("badge lookup failed", err)
		}
		if b.IsRevoked() {
			return badge.ErrAlreadyRevoked
		}

		b.RevokedAt = &at
		b.RevocationReason = reason
		if err := tx.Model(&badge.Badge{}).
			Where("id = ?", b.ID).
			Updates(map[string]any{
				"revoked_at":        at,
				"revocation_reason": reason,
			}).Error; err != nil {
			return wrapStoreError("badge revocation failed", err)
		}
		revoked = &b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revoked, nil
}

// Stats returns issuance counts since the given time.
func (s *GormStore) Stats(ctx context.Context, since time.Time) (*badge.Stats, error) {
	now := s.now()
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&badge.Badge{}).Where("created_at >= ?", since)
	}

	var stats badge.Stats
	if err := base().Count(&stats.TotalBadges).Error; err != nil {
		return nil, wrapStoreError("badge count failed", err)
	}
	if err := base().
		Where("revoked_at IS NULL").
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&stats.ActiveBadges).Error; err != nil {
		return nil, wrapStoreError("active badge count failed", err)
	}
	if err := base().
		Where("revoked_at IS NOT NULL").
		Count(&stats.RevokedBadges).Error; err != nil {
		return nil, wrapStoreError("revoked badge count failed", err)
	}
	if err := base().
		Where("revoked_at IS NULL").
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Count(&stats.ExpiredBadges).Error; err != nil {
		return nil, wrapStoreError("expired badge count failed", err)
	}
	return &stats, nil
}

func wrapStoreError(msg string, err error) error {
	return badge.WrapError(badge.ErrCodeStoreUnavailable, msg, err)
}
