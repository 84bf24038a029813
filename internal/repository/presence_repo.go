package repository

import (
	"errors"
	"time"

	"nearme/internal/domain"
	"nearme/internal/models"

	"gorm.io/gorm"
)

type PresenceRepository struct {
	db *gorm.DB
}

func NewPresenceRepository(db *gorm.DB) *PresenceRepository {
	return &PresenceRepository{db: db}
}

func (r *PresenceRepository) Upsert(p *models.UserPresence) error {
	return r.db.Save(p).Error
}

func (r *PresenceRepository) GetByUserID(userID uint) (*models.UserPresence, error) {
	var p models.UserPresence
	err := r.db.Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveTransition records an online/offline transition; it creates the row on a
// user's first connection and updates it ever after (rows are never deleted).
// Implements presence.Archiver.
func (r *PresenceRepository) SaveTransition(userID uint, online bool, at time.Time) error {
	p, err := r.GetByUserID(userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		p = &models.UserPresence{UserID: userID}
	}
	p.IsOnline = online
	if online {
		p.Status = domain.PresenceOnline
	} else {
		p.Status = domain.PresenceOffline
	}
	p.LastSeenAt = at
	return r.db.Save(p).Error
}
