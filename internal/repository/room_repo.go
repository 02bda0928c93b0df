package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/nearbyhq/chat-api/internal/models"
)

// ErrDuplicateMember indicates a (room, user) membership fact already exists.
var ErrDuplicateMember = errors.New("membership already exists")

// RoomRepository persists rooms and their membership facts. Member mutations
// pair the row change with the denormalized total_members counter inside one
// transaction so the two can never drift.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room, memberIDs []string) error
	Get(ctx context.Context, id uint) (models.Room, error)
	GetWithMembers(ctx context.Context, id uint) (models.Room, error)
	ListByUser(ctx context.Context, userID string) ([]models.Room, error)
	Update(ctx context.Context, room *models.Room) error
	SetBroadcast(ctx context.Context, id uint, enabled bool) (models.Room, error)
	Delete(ctx context.Context, id uint) error
	AddMember(ctx context.Context, roomID uint, userID string, isAdmin bool) (models.RoomMember, error)
	RemoveMember(ctx context.Context, roomID uint, userID string) error
	GetMember(ctx context.Context, roomID uint, userID string) (models.RoomMember, error)
	ListMembers(ctx context.Context, roomID uint) ([]models.RoomMember, error)
	MemberIDs(ctx context.Context, roomID uint) ([]string, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository constructs a room repository backed by GORM.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(ctx context.Context, room *models.Room, memberIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seen := make(map[string]struct{}, len(memberIDs)+1)
		members := make([]models.RoomMember, 0, len(memberIDs)+1)

		// Creator is always the first admin member.
		seen[room.CreatorID] = struct{}{}
		members = append(members, models.RoomMember{UserID: room.CreatorID, IsAdmin: true})

		for _, userID := range memberIDs {
			if _, dup := seen[userID]; dup {
				continue
			}
			seen[userID] = struct{}{}
			members = append(members, models.RoomMember{UserID: userID})
		}

		room.TotalMembers = len(members)
		if err := tx.Create(room).Error; err != nil {
			return err
		}

		for i := range members {
			members[i].RoomID = room.ID
		}
		if err := tx.Create(&members).Error; err != nil {
			return err
		}

		room.Members = members
		return nil
	})
}

func (r *roomRepository) Get(ctx context.Context, id uint) (models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return models.Room{}, err
	}
	return room, nil
}

func (r *roomRepository) GetWithMembers(ctx context.Context, id uint) (models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).Preload("Members").First(&room, id).Error; err != nil {
		return models.Room{}, err
	}
	return room, nil
}

func (r *roomRepository) ListByUser(ctx context.Context, userID string) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.WithContext(ctx).
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userID).
		Order("rooms.updated_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *roomRepository) Update(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Save(room).Error
}

func (r *roomRepository) SetBroadcast(ctx context.Context, id uint, enabled bool) (models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&room, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&room).Update("broadcast_enabled", enabled).Error; err != nil {
			return err
		}
		room.BroadcastEnabled = enabled
		return nil
	})
	if err != nil {
		return models.Room{}, err
	}
	return room, nil
}

func (r *roomRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Explicit cascade keeps sqlite test databases honest about FK cleanup.
		if err := tx.Where("room_id = ?", id).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&models.RoomMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&models.Invitation{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Room{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *roomRepository) AddMember(ctx context.Context, roomID uint, userID string, isAdmin bool) (models.RoomMember, error) {
	member := models.RoomMember{RoomID: roomID, UserID: userID, IsAdmin: isAdmin}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.First(&room, roomID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.RoomMember{}).
			Where("room_id = ? AND user_id = ?", roomID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateMember
		}

		if err := tx.Create(&member).Error; err != nil {
			// The unique index catches adds racing past the count check.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateMember
			}
			return err
		}

		return tx.Model(&models.Room{}).
			Where("id = ?", roomID).
			UpdateColumn("total_members", gorm.Expr("total_members + ?", 1)).
			Error
	})
	if err != nil {
		return models.RoomMember{}, err
	}
	return member, nil
}

func (r *roomRepository) RemoveMember(ctx context.Context, roomID uint, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("room_id = ? AND user_id = ?", roomID, userID).Delete(&models.RoomMember{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Model(&models.Room{}).
			Where("id = ? AND total_members > 0", roomID).
			UpdateColumn("total_members", gorm.Expr("total_members - ?", 1)).
			Error
	})
}

func (r *roomRepository) GetMember(ctx context.Context, roomID uint, userID string) (models.RoomMember, error) {
	var member models.RoomMember
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&member).Error
	if err != nil {
		return models.RoomMember{}, err
	}
	return member, nil
}

func (r *roomRepository) ListMembers(ctx context.Context, roomID uint) ([]models.RoomMember, error) {
	var members []models.RoomMember
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *roomRepository) MemberIDs(ctx context.Context, roomID uint) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.RoomMember{}).
		Where("room_id = ?", roomID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
