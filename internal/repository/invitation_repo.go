package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nearbyhq/chat-api/internal/models"
)

// InvitationRepository persists pending room invitations.
type InvitationRepository interface {
	Create(ctx context.Context, invitation *models.Invitation) error
	Get(ctx context.Context, id uint) (models.Invitation, error)
	ListByRoom(ctx context.Context, roomID uint) ([]models.Invitation, error)
	ListForInvitee(ctx context.Context, userID string) ([]models.Invitation, error)
	Update(ctx context.Context, invitation *models.Invitation) error
	Delete(ctx context.Context, id uint) error
}

type invitationRepository struct {
	db *gorm.DB
}

// NewInvitationRepository constructs an invitation repository backed by GORM.
func NewInvitationRepository(db *gorm.DB) InvitationRepository {
	return &invitationRepository{db: db}
}

func (r *invitationRepository) Create(ctx context.Context, invitation *models.Invitation) error {
	return r.db.WithContext(ctx).Create(invitation).Error
}

func (r *invitationRepository) Get(ctx context.Context, id uint) (models.Invitation, error) {
	var invitation models.Invitation
	if err := r.db.WithContext(ctx).First(&invitation, id).Error; err != nil {
		return models.Invitation{}, err
	}
	return invitation, nil
}

func (r *invitationRepository) ListByRoom(ctx context.Context, roomID uint) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *invitationRepository) ListForInvitee(ctx context.Context, userID string) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := r.db.WithContext(ctx).
		Where(datatypes.JSONQuery("invitees").HasKey(userID)).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *invitationRepository) Update(ctx context.Context, invitation *models.Invitation) error {
	return r.db.WithContext(ctx).Save(invitation).Error
}

func (r *invitationRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Invitation{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
