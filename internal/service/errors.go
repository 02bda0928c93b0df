package service

import "errors"

// Error kinds surfaced by the chat core. NotFound is used uniformly for
// entities that are absent or access-scoped absent, so existence is never
// revealed to callers who do not own the entity.
var (
	ErrNotFound            = errors.New("entity not found")
	ErrNotAMember          = errors.New("sender is not a member of the room")
	ErrBroadcastRestricted = errors.New("room is in broadcast mode; only admins may post")
	ErrForbidden           = errors.New("operation not permitted")
	ErrAlreadyMember       = errors.New("user is already a member of the room")
	ErrEmptyMessage        = errors.New("message requires content or media")
)
