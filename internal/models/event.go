package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the two-letter lifecycle code stored on an event row.
type Status string

const (
	StatusProposal  Status = "PR"
	StatusPlanning  Status = "PL"
	StatusScheduled Status = "SC"
	StatusCompleted Status = "CO"
	StatusArchived  Status = "AR"
	StatusDenied    Status = "DN"
	StatusRemoved   Status = "RM"
)

// DefaultRequiredUpvotes is the promotion threshold for new proposals.
const DefaultRequiredUpvotes = 3

// ErrInvalidTransition is returned when a manual status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

var statusLabels = map[Status]string{
	StatusProposal:  "Proposal",
	StatusPlanning:  "Planning",
	StatusScheduled: "Scheduled",
	StatusCompleted: "Completed",
	StatusArchived:  "Archived",
	StatusDenied:    "Denied",
	StatusRemoved:   "Removed",
}

// Allowed manual moves. Proposal -> Planning is also applied automatically by votes.
var transitions = map[Status][]Status{
	StatusProposal:  {StatusPlanning, StatusDenied, StatusRemoved},
	StatusPlanning:  {StatusScheduled, StatusDenied, StatusRemoved},
	StatusScheduled: {StatusCompleted, StatusRemoved},
	StatusCompleted: {StatusArchived, StatusRemoved},
	StatusArchived:  {StatusRemoved},
	StatusDenied:    {StatusRemoved},
}

// Label returns the human readable status name.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Valid reports whether s is a known status code.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// ParseStatus accepts either the stored code ("PL") or the label ("Planning"), case-insensitively.
func ParseStatus(v string) (Status, error) {
	v = strings.TrimSpace(v)
	for _, code := range AllStatuses() {
		if strings.EqualFold(v, string(code)) || strings.EqualFold(v, code.Label()) {
			return code, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", v)
}

// CanTransition reports whether a manual move from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Next returns the statuses a manual move from s may target.
func (s Status) Next() []Status {
	return append([]Status(nil), transitions[s]...)
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusProposal, StatusPlanning, StatusScheduled, StatusCompleted, StatusArchived, StatusDenied, StatusRemoved}
}

// Event is a community event proposal.
type Event struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	Location           string     `json:"location"`
	CreatedBy          *uuid.UUID `json:"created_by,omitempty"`
	CreatorUsername    string     `json:"creator_username,omitempty"`
	Status             Status     `json:"status"`
	RequiredNumUpvotes int        `json:"required_num_upvotes"`
	NumberOfUpvotes    int        `json:"number_of_upvotes"`
	CreatedOn          time.Time  `json:"created_on"`
	UpdatedOn          time.Time  `json:"updated_on"`
}

// EventFields holds the user-editable proposal fields.
type EventFields struct {
	Name        string
	Description string
	Location    string
}

// SetRequiredNumUpvotes updates the promotion threshold. Non-positive values are rejected.
func (e *Event) SetRequiredNumUpvotes(n int) bool {
	if n > 0 {
		e.RequiredNumUpvotes = n
		return true
	}
	return false
}

// IsCreator reports whether userID created the event.
func (e *Event) IsCreator(userID uuid.UUID) bool {
	return e.CreatedBy != nil && *e.CreatedBy == userID
}

// ApplyUpvoteCount records a freshly counted upvote total and promotes a
// proposal to planning once the count exceeds the threshold. It returns true
// only on the call that performed the promotion.
func (e *Event) ApplyUpvoteCount(count int) bool {
	e.NumberOfUpvotes = count
	if e.Status == StatusProposal && count > e.RequiredNumUpvotes {
		e.Status = StatusPlanning
		return true
	}
	return false
}

// UpvoteResult is the outcome of a toggle.
type UpvoteResult struct {
	EventID  uuid.UUID
	Upvoted  bool
	Count    int
	Status   Status
	Promoted bool
}

// Label returns "1 Up Vote" or "N Up Votes".
func (r UpvoteResult) Label() string {
	return CountLabel(r.Count, "Up Vote", "Up Votes")
}

// CountLabel formats n with the singular or plural noun.
func CountLabel(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
