package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nearbyhq/chat-api/internal/models"
)

func TestRoomRepositoryCreateSeedsCreatorAsAdmin(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)

	room := models.Room{Name: "standup", Type: models.RoomTypeGroup, CreatorID: "alice"}
	require.NoError(t, repo.Create(context.Background(), &room, []string{"bob", "carol", "alice", "bob"}))

	require.Equal(t, 3, room.TotalMembers, "creator plus deduplicated members")

	members, err := repo.ListMembers(context.Background(), room.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)

	creator, err := repo.GetMember(context.Background(), room.ID, "alice")
	require.NoError(t, err)
	require.True(t, creator.IsAdmin)
}

func TestRoomRepositoryAddAndRemoveMemberKeepCounterInSync(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)

	room := models.Room{Name: "general", Type: models.RoomTypeGroup, CreatorID: "alice"}
	require.NoError(t, repo.Create(context.Background(), &room, nil))

	_, err := repo.AddMember(context.Background(), room.ID, "bob", false)
	require.NoError(t, err)

	got, err := repo.Get(context.Background(), room.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.TotalMembers)

	_, err = repo.AddMember(context.Background(), room.ID, "bob", false)
	require.ErrorIs(t, err, ErrDuplicateMember)

	got, err = repo.Get(context.Background(), room.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.TotalMembers, "duplicate add must not bump the counter")

	require.NoError(t, repo.RemoveMember(context.Background(), room.ID, "bob"))

	got, err = repo.Get(context.Background(), room.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.TotalMembers)

	err = repo.RemoveMember(context.Background(), room.ID, "bob")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRoomRepositoryCounterSurvivesConcurrentAddRemovePairs(t *testing.T) {
	db := setupTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// sqlite cannot take concurrent writers; a single connection keeps the
	// goroutines contending on the repository's transactions instead.
	sqlDB.SetMaxOpenConns(1)

	repo := NewRoomRepository(db)

	room := models.Room{Name: "busy", Type: models.RoomTypeGroup, CreatorID: "alice"}
	require.NoError(t, repo.Create(context.Background(), &room, nil))

	const workers = 8

	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", n)
			if _, err := repo.AddMember(context.Background(), room.ID, userID, false); err != nil {
				errs <- err
				return
			}
			errs <- repo.RemoveMember(context.Background(), room.ID, userID)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.Get(context.Background(), room.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.TotalMembers, "every add/remove pair must round-trip the counter")

	members, err := repo.ListMembers(context.Background(), room.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
}

func TestRoomRepositoryAddMemberToMissingRoomFails(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)

	_, err := repo.AddMember(context.Background(), 999, "bob", false)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRoomRepositoryListByUserReturnsOnlyJoinedRooms(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)

	joined := models.Room{Name: "joined", Type: models.RoomTypeGroup, CreatorID: "alice"}
	require.NoError(t, repo.Create(context.Background(), &joined, []string{"bob"}))

	other := models.Room{Name: "other", Type: models.RoomTypeGroup, CreatorID: "carol"}
	require.NoError(t, repo.Create(context.Background(), &other, nil))

	rooms, err := repo.ListByUser(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, joined.ID, rooms[0].ID)
}

func TestRoomRepositoryDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)
	messages := NewMessageRepository(db)

	room := models.Room{Name: "doomed", Type: models.RoomTypeGroup, CreatorID: "alice"}
	require.NoError(t, repo.Create(context.Background(), &room, []string{"bob"}))

	message := models.ChatMessage{RoomID: room.ID, SenderID: "alice", Content: "bye"}
	require.NoError(t, messages.Save(context.Background(), &message))

	require.NoError(t, repo.Delete(context.Background(), room.ID))

	_, err := repo.Get(context.Background(), room.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, db.Model(&models.ChatMessage{}).Where("room_id = ?", room.ID).Count(&count).Error)
	require.Zero(t, count)

	require.NoError(t, db.Model(&models.RoomMember{}).Where("room_id = ?", room.ID).Count(&count).Error)
	require.Zero(t, count)

	require.ErrorIs(t, repo.Delete(context.Background(), room.ID), gorm.ErrRecordNotFound)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Room{}, &models.RoomMember{}, &models.ChatMessage{}, &models.Invitation{}))
	return db
}
