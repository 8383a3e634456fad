package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/food-delivery/metrics"
	"github.com/yeremiapane/food-delivery/models"
)

// SQLCredentialStore keeps sessions in the main database. Validation is as consistent
// as the database itself; revocation broadcasts only reach this process, other
// instances notice through live-channel revalidation.
type SQLCredentialStore struct {
	DB  *gorm.DB
	now func() time.Time

	mu        sync.Mutex
	nextID    int
	listeners map[int]func(Revocation)
}

func NewSQLCredentialStore(db *gorm.DB) *SQLCredentialStore {
	return &SQLCredentialStore{
		DB:        db,
		now:       time.Now,
		listeners: make(map[int]func(Revocation)),
	}
}

func (s *SQLCredentialStore) Activate(ctx context.Context, userID uint, tokenID string, issuedAt, expiresAt time.Time) error {
	var superseded string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.ActiveSession
		err := tx.Where("user_id = ?", userID).First(&current).Error
		switch {
		case err == nil && current.TokenID != tokenID:
			superseded = current.TokenID
			if err := revokeRow(tx, current.TokenID, userID, s.now(), current.ExpiresAt); err != nil {
				return err
			}
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token_id", "issued_at", "expires_at"}),
		}).Create(&models.ActiveSession{
			UserID:    userID,
			TokenID:   tokenID,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("%w: activate session: %v", ErrStoreUnavailable, err)
	}

	if superseded != "" {
		metrics.SessionsRevoked.WithLabelValues("superseded").Inc()
		s.notify(Revocation{UserID: userID, TokenID: superseded})
	}
	return nil
}

func (s *SQLCredentialStore) Revoke(ctx context.Context, userID uint, tokenID string, expiresAt time.Time) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := revokeRow(tx, tokenID, userID, s.now(), expiresAt); err != nil {
			return err
		}
		return tx.Where("user_id = ? AND token_id = ?", userID, tokenID).Delete(&models.ActiveSession{}).Error
	})
	if err != nil {
		return fmt.Errorf("%w: revoke session: %v", ErrStoreUnavailable, err)
	}
	metrics.SessionsRevoked.WithLabelValues("logout").Inc()
	s.notify(Revocation{UserID: userID, TokenID: tokenID})
	return nil
}

func (s *SQLCredentialStore) RevokeUser(ctx context.Context, userID uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.ActiveSession
		if err := tx.Where("user_id = ?", userID).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := revokeRow(tx, current.TokenID, userID, s.now(), current.ExpiresAt); err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.ActiveSession{}).Error
	})
	if err != nil {
		return fmt.Errorf("%w: revoke user: %v", ErrStoreUnavailable, err)
	}
	metrics.SessionsRevoked.WithLabelValues("admin").Inc()
	s.notify(Revocation{UserID: userID})
	return nil
}

func (s *SQLCredentialStore) Validate(ctx context.Context, userID uint, tokenID string) error {
	var revoked int64
	if err := s.DB.WithContext(ctx).Model(&models.RevokedToken{}).Where("token_id = ?", tokenID).Count(&revoked).Error; err != nil {
		return fmt.Errorf("%w: validate session: %v", ErrStoreUnavailable, err)
	}
	if revoked > 0 {
		return ErrTokenRevoked
	}

	var active int64
	err := s.DB.WithContext(ctx).Model(&models.ActiveSession{}).
		Where("user_id = ? AND token_id = ? AND expires_at > ?", userID, tokenID, s.now()).
		Count(&active).Error
	if err != nil {
		return fmt.Errorf("%w: validate session: %v", ErrStoreUnavailable, err)
	}
	if active == 0 {
		return ErrTokenRevoked
	}
	return nil
}

func (s *SQLCredentialStore) WatchRevocations(ctx context.Context, fn func(Revocation)) error {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	delete(s.listeners, id)
	s.mu.Unlock()
	return nil
}

// PurgeExpired drops session and revocation rows whose tokens can no longer parse anyway.
func (s *SQLCredentialStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var purged int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("expires_at <= ?", now).Delete(&models.RevokedToken{})
		if res.Error != nil {
			return res.Error
		}
		purged += res.RowsAffected

		res = tx.Where("expires_at <= ?", now).Delete(&models.ActiveSession{})
		if res.Error != nil {
			return res.Error
		}
		purged += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: purge sessions: %v", ErrStoreUnavailable, err)
	}
	return purged, nil
}

func (s *SQLCredentialStore) notify(rev Revocation) {
	s.mu.Lock()
	fns := make([]func(Revocation), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(rev)
	}
}

func revokeRow(tx *gorm.DB, tokenID string, userID uint, now, expiresAt time.Time) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.RevokedToken{
		TokenID:   tokenID,
		UserID:    userID,
		RevokedAt: now,
		ExpiresAt: expiresAt,
	}).Error
}
