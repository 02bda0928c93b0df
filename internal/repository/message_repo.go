package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nearbyhq/chat-api/internal/models"
)

// MessageRepository persists chat messages and drives their status transitions.
type MessageRepository interface {
	Save(ctx context.Context, message *models.ChatMessage) error
	Get(ctx context.Context, id uint) (models.ChatMessage, error)
	ListByRoom(ctx context.Context, roomID uint, before time.Time, limit int) ([]models.ChatMessage, error)
	AdvanceStatus(ctx context.Context, id uint, status string) (models.ChatMessage, error)
	DeleteOwned(ctx context.Context, id uint, senderID string, roomID uint) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Save(ctx context.Context, message *models.ChatMessage) error {
	if message.Status == "" {
		message.Status = models.MessageStatusSent
	}
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) Get(ctx context.Context, id uint) (models.ChatMessage, error) {
	var message models.ChatMessage
	if err := r.db.WithContext(ctx).First(&message, id).Error; err != nil {
		return models.ChatMessage{}, err
	}
	return message, nil
}

func (r *messageRepository) ListByRoom(ctx context.Context, roomID uint, before time.Time, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if !before.IsZero() {
		query = query.Where("created_at < ?", before)
	}

	var messages []models.ChatMessage
	if err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	// Reverse so clients receive the window in ascending chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// AdvanceStatus moves a message to the given status only when that is a
// forward transition; a repeated or backward transition is a no-op and the
// current row is returned unchanged.
func (r *messageRepository) AdvanceStatus(ctx context.Context, id uint, status string) (models.ChatMessage, error) {
	var message models.ChatMessage

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&message, id).Error; err != nil {
			return err
		}

		if models.MessageStatusRank(status) <= models.MessageStatusRank(message.Status) {
			return nil
		}

		if err := tx.Model(&message).Update("status", status).Error; err != nil {
			return err
		}
		message.Status = status
		return nil
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	return message, nil
}

// DeleteOwned removes a message only when the (id, sender, room) triple
// matches; a mismatch is indistinguishable from a missing row.
func (r *messageRepository) DeleteOwned(ctx context.Context, id uint, senderID string, roomID uint) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND sender_id = ? AND room_id = ?", id, senderID, roomID).
		Delete(&models.ChatMessage{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
