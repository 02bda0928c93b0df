package service

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/nearbyhq/chat-api/internal/models"
	"github.com/nearbyhq/chat-api/internal/realtime"
	"github.com/nearbyhq/chat-api/internal/repository"
)

// fakeRoomRepo is an in-memory room repository shared by the service tests.
type fakeRoomRepo struct {
	mu      sync.Mutex
	rooms   map[uint]models.Room
	members map[uint]map[string]models.RoomMember
	nextID  uint
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{
		rooms:   make(map[uint]models.Room),
		members: make(map[uint]map[string]models.RoomMember),
	}
}

func (f *fakeRoomRepo) seedRoom(room models.Room, memberIDs ...string) models.Room {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	room.ID = f.nextID
	f.members[room.ID] = make(map[string]models.RoomMember)

	f.members[room.ID][room.CreatorID] = models.RoomMember{RoomID: room.ID, UserID: room.CreatorID, IsAdmin: true, JoinedAt: time.Now()}
	for _, userID := range memberIDs {
		f.members[room.ID][userID] = models.RoomMember{RoomID: room.ID, UserID: userID, JoinedAt: time.Now()}
	}
	room.TotalMembers = len(f.members[room.ID])
	f.rooms[room.ID] = room
	return room
}

func (f *fakeRoomRepo) Create(_ context.Context, room *models.Room, memberIDs []string) error {
	created := f.seedRoom(*room, memberIDs...)
	*room = created

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, member := range f.members[created.ID] {
		room.Members = append(room.Members, member)
	}
	return nil
}

func (f *fakeRoomRepo) Get(_ context.Context, id uint) (models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return models.Room{}, gorm.ErrRecordNotFound
	}
	return room, nil
}

func (f *fakeRoomRepo) GetWithMembers(ctx context.Context, id uint) (models.Room, error) {
	room, err := f.Get(ctx, id)
	if err != nil {
		return models.Room{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, member := range f.members[id] {
		room.Members = append(room.Members, member)
	}
	return room, nil
}

func (f *fakeRoomRepo) ListByUser(_ context.Context, userID string) ([]models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rooms []models.Room
	for id, members := range f.members {
		if _, ok := members[userID]; ok {
			rooms = append(rooms, f.rooms[id])
		}
	}
	return rooms, nil
}

func (f *fakeRoomRepo) Update(_ context.Context, room *models.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[room.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.rooms[room.ID] = *room
	return nil
}

func (f *fakeRoomRepo) SetBroadcast(_ context.Context, id uint, enabled bool) (models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return models.Room{}, gorm.ErrRecordNotFound
	}
	room.BroadcastEnabled = enabled
	f.rooms[id] = room
	return room, nil
}

func (f *fakeRoomRepo) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.rooms, id)
	delete(f.members, id)
	return nil
}

func (f *fakeRoomRepo) AddMember(_ context.Context, roomID uint, userID string, isAdmin bool) (models.RoomMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	room, ok := f.rooms[roomID]
	if !ok {
		return models.RoomMember{}, gorm.ErrRecordNotFound
	}
	if _, dup := f.members[roomID][userID]; dup {
		return models.RoomMember{}, repository.ErrDuplicateMember
	}

	member := models.RoomMember{RoomID: roomID, UserID: userID, IsAdmin: isAdmin, JoinedAt: time.Now()}
	f.members[roomID][userID] = member
	room.TotalMembers++
	f.rooms[roomID] = room
	return member, nil
}

func (f *fakeRoomRepo) RemoveMember(_ context.Context, roomID uint, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	room, ok := f.rooms[roomID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if _, member := f.members[roomID][userID]; !member {
		return gorm.ErrRecordNotFound
	}
	delete(f.members[roomID], userID)
	room.TotalMembers--
	f.rooms[roomID] = room
	return nil
}

func (f *fakeRoomRepo) GetMember(_ context.Context, roomID uint, userID string) (models.RoomMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	member, ok := f.members[roomID][userID]
	if !ok {
		return models.RoomMember{}, gorm.ErrRecordNotFound
	}
	return member, nil
}

func (f *fakeRoomRepo) ListMembers(_ context.Context, roomID uint) ([]models.RoomMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var members []models.RoomMember
	for _, member := range f.members[roomID] {
		members = append(members, member)
	}
	return members, nil
}

func (f *fakeRoomRepo) MemberIDs(_ context.Context, roomID uint) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for userID := range f.members[roomID] {
		ids = append(ids, userID)
	}
	return ids, nil
}

// fakeMessageRepo is an in-memory message repository.
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[uint]models.ChatMessage
	nextID   uint
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[uint]models.ChatMessage)}
}

func (f *fakeMessageRepo) Save(_ context.Context, message *models.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	message.ID = f.nextID
	if message.Status == "" {
		message.Status = models.MessageStatusSent
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	f.messages[message.ID] = *message
	return nil
}

func (f *fakeMessageRepo) Get(_ context.Context, id uint) (models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[id]
	if !ok {
		return models.ChatMessage{}, gorm.ErrRecordNotFound
	}
	return message, nil
}

func (f *fakeMessageRepo) ListByRoom(_ context.Context, roomID uint, before time.Time, limit int) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var messages []models.ChatMessage
	for _, message := range f.messages {
		if message.RoomID != roomID {
			continue
		}
		if !before.IsZero() && !message.CreatedAt.Before(before) {
			continue
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (f *fakeMessageRepo) AdvanceStatus(_ context.Context, id uint, status string) (models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[id]
	if !ok {
		return models.ChatMessage{}, gorm.ErrRecordNotFound
	}
	if models.MessageStatusRank(status) > models.MessageStatusRank(message.Status) {
		message.Status = status
		f.messages[id] = message
	}
	return message, nil
}

func (f *fakeMessageRepo) DeleteOwned(_ context.Context, id uint, senderID string, roomID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[id]
	if !ok || message.SenderID != senderID || message.RoomID != roomID {
		return gorm.ErrRecordNotFound
	}
	delete(f.messages, id)
	return nil
}

// fakeInvitationRepo is an in-memory invitation repository.
type fakeInvitationRepo struct {
	mu          sync.Mutex
	invitations map[uint]models.Invitation
	nextID      uint
}

func newFakeInvitationRepo() *fakeInvitationRepo {
	return &fakeInvitationRepo{invitations: make(map[uint]models.Invitation)}
}

func (f *fakeInvitationRepo) Create(_ context.Context, invitation *models.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	invitation.ID = f.nextID
	f.invitations[invitation.ID] = *invitation
	return nil
}

func (f *fakeInvitationRepo) Get(_ context.Context, id uint) (models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	invitation, ok := f.invitations[id]
	if !ok {
		return models.Invitation{}, gorm.ErrRecordNotFound
	}
	return invitation, nil
}

func (f *fakeInvitationRepo) ListByRoom(_ context.Context, roomID uint) ([]models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var invitations []models.Invitation
	for _, invitation := range f.invitations {
		if invitation.RoomID == roomID {
			invitations = append(invitations, invitation)
		}
	}
	return invitations, nil
}

func (f *fakeInvitationRepo) ListForInvitee(_ context.Context, userID string) ([]models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var invitations []models.Invitation
	for _, invitation := range f.invitations {
		if _, ok := invitation.Invitees[userID]; ok {
			invitations = append(invitations, invitation)
		}
	}
	return invitations, nil
}

func (f *fakeInvitationRepo) Update(_ context.Context, invitation *models.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.invitations[invitation.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.invitations[invitation.ID] = *invitation
	return nil
}

func (f *fakeInvitationRepo) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.invitations[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.invitations, id)
	return nil
}

// publishedEvent records one event the service handed to the publisher.
type publishedEvent struct {
	Scope  string
	RoomID uint
	UserID string
	Event  realtime.Event
}

// recordingPublisher captures published events and answers presence from a
// configurable online set.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	online map[string]bool
}

func newRecordingPublisher(online ...string) *recordingPublisher {
	set := make(map[string]bool, len(online))
	for _, userID := range online {
		set[userID] = true
	}
	return &recordingPublisher{online: set}
}

func (p *recordingPublisher) RoomBroadcast(_ context.Context, roomID uint, event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Scope: scopeRoom, RoomID: roomID, Event: event})
}

func (p *recordingPublisher) UserSend(_ context.Context, userID string, event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Scope: scopeUser, UserID: userID, Event: event})
}

func (p *recordingPublisher) IsOnline(userID string) bool {
	return p.online[userID]
}

func (p *recordingPublisher) byType(eventType realtime.EventType) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []publishedEvent
	for _, event := range p.events {
		if event.Event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

// recordedPush captures one offline push attempt.
type recordedPush struct {
	UserID string
	Kind   string
}

// recordingNotifier captures push attempts; Err, when set, is returned from
// every push.
type recordingNotifier struct {
	mu     sync.Mutex
	pushes []recordedPush
	Err    error
}

func (n *recordingNotifier) Push(_ context.Context, userID, kind string, _ interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, recordedPush{UserID: userID, Kind: kind})
	return n.Err
}

func (n *recordingNotifier) pushed() []recordedPush {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedPush(nil), n.pushes...)
}
