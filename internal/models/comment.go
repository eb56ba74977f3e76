package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a remark left on an event.
type Comment struct {
	ID             uuid.UUID  `json:"id"`
	EventID        uuid.UUID  `json:"event_id"`
	AuthorID       *uuid.UUID `json:"author_id,omitempty"`
	AuthorUsername string     `json:"author_username,omitempty"`
	Text           string     `json:"comment"`
	CreatedOn      time.Time  `json:"created_on"`
}
