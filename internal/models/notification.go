package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationKind tags the concrete notification variant.
type NotificationKind string

const (
	KindEventStatusChange NotificationKind = "status"
	KindFriendRequest     NotificationKind = "friend"
)

// MaxNotificationMessage is the stored message length limit.
const MaxNotificationMessage = 150

// ParseNotificationKind validates a kind taken from a URL.
func ParseNotificationKind(v string) (NotificationKind, error) {
	switch NotificationKind(v) {
	case KindEventStatusChange, KindFriendRequest:
		return NotificationKind(v), nil
	}
	return "", fmt.Errorf("unknown notification kind %q", v)
}

// Notification is the shared shape of both variants. Exactly one of
// SourceEventID (status change) or OriginatorID (friend request) is set,
// matching Kind.
type Notification struct {
	ID          uuid.UUID        `json:"id"`
	Kind        NotificationKind `json:"kind"`
	Message     string           `json:"message"`
	RecipientID uuid.UUID        `json:"recipient_id"`
	CreatedOn   time.Time        `json:"created_on"`
	Read        bool             `json:"read"`

	SourceEventID *uuid.UUID `json:"source_event_id,omitempty"`
	OriginatorID  *uuid.UUID `json:"originator_id,omitempty"`
	// OriginatorUsername is filled on listing for friend requests.
	OriginatorUsername string `json:"originator_username,omitempty"`
}

// NewEventStatusChange builds a status-change notification for one recipient.
func NewEventStatusChange(recipient uuid.UUID, event *Event, to Status) Notification {
	src := event.ID
	return Notification{
		Kind:          KindEventStatusChange,
		Message:       truncate(fmt.Sprintf("%s is now %s", event.Name, to.Label()), MaxNotificationMessage),
		RecipientID:   recipient,
		SourceEventID: &src,
	}
}

// NewFriendRequest builds a friend request from originator to recipient.
func NewFriendRequest(originator *User, recipient uuid.UUID) Notification {
	from := originator.ID
	return Notification{
		Kind:               KindFriendRequest,
		Message:            truncate(fmt.Sprintf("%s sent you a friend request", originator.Username), MaxNotificationMessage),
		RecipientID:        recipient,
		OriginatorID:       &from,
		OriginatorUsername: originator.Username,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
