package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan holds scheduling metadata for an event promoted out of the proposal stage.
type Plan struct {
	ID         uuid.UUID    `json:"id"`
	EventID    uuid.UUID    `json:"event_id"`
	Volunteers []UserPublic `json:"volunteers"`
	CreatedOn  time.Time    `json:"created_on"`
	UpdatedOn  time.Time    `json:"updated_on"`
}

// HasVolunteer reports whether userID is in the volunteer set.
func (p *Plan) HasVolunteer(userID uuid.UUID) bool {
	for _, v := range p.Volunteers {
		if v.ID == userID {
			return true
		}
	}
	return false
}

// ProposedDate is a candidate date for a plan; members vote for the best one.
type ProposedDate struct {
	ID            uuid.UUID  `json:"id"`
	PlanID        uuid.UUID  `json:"plan_id"`
	CreatedBy     *uuid.UUID `json:"created_by,omitempty"`
	Date          time.Time  `json:"date"`
	NumberOfVotes int        `json:"number_of_votes"`
}

// ToggleResult is the outcome of flipping membership in a vote or volunteer set.
type ToggleResult struct {
	Added bool
	Count int
}
