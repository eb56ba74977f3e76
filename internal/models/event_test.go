package models

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyUpvoteCountPromotesOnceAboveThreshold(t *testing.T) {
	e := &Event{Status: StatusProposal, RequiredNumUpvotes: 3}

	promotions := 0
	for count := 1; count <= 6; count++ {
		if e.ApplyUpvoteCount(count) {
			promotions++
			assert.Equal(t, 4, count, "promotion must happen on the vote that exceeds the threshold")
		}
		assert.Equal(t, count, e.NumberOfUpvotes)
	}

	assert.Equal(t, 1, promotions)
	assert.Equal(t, StatusPlanning, e.Status)
}

func TestApplyUpvoteCountAtThresholdStaysProposal(t *testing.T) {
	e := &Event{Status: StatusProposal, RequiredNumUpvotes: 3}

	assert.False(t, e.ApplyUpvoteCount(3))
	assert.Equal(t, StatusProposal, e.Status)
}

func TestApplyUpvoteCountOnlyFromProposal(t *testing.T) {
	for _, s := range AllStatuses() {
		if s == StatusProposal {
			continue
		}
		e := &Event{Status: s, RequiredNumUpvotes: 1}
		assert.False(t, e.ApplyUpvoteCount(10), s.Label())
		assert.Equal(t, s, e.Status)
	}
}

func TestApplyUpvoteCountDropBelowThresholdDoesNotDemote(t *testing.T) {
	e := &Event{Status: StatusProposal, RequiredNumUpvotes: 1}
	require.True(t, e.ApplyUpvoteCount(2))

	assert.False(t, e.ApplyUpvoteCount(0))
	assert.Equal(t, StatusPlanning, e.Status)
}

func TestSetRequiredNumUpvotes(t *testing.T) {
	e := &Event{RequiredNumUpvotes: DefaultRequiredUpvotes}

	assert.False(t, e.SetRequiredNumUpvotes(0))
	assert.False(t, e.SetRequiredNumUpvotes(-2))
	assert.Equal(t, DefaultRequiredUpvotes, e.RequiredNumUpvotes)

	assert.True(t, e.SetRequiredNumUpvotes(7))
	assert.Equal(t, 7, e.RequiredNumUpvotes)
}

func TestUpvoteLabel(t *testing.T) {
	cases := map[int]string{0: "0 Up Votes", 1: "1 Up Vote", 2: "2 Up Votes", 4: "4 Up Votes"}
	for n, want := range cases {
		assert.Equal(t, want, UpvoteResult{Count: n}.Label())
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range AllStatuses() {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)

		got, err = ParseStatus(strings.ToLower(s.Label()))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("cancelled")
	assert.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, StatusProposal.CanTransition(StatusPlanning))
	assert.True(t, StatusPlanning.CanTransition(StatusScheduled))
	assert.True(t, StatusScheduled.CanTransition(StatusCompleted))
	assert.True(t, StatusCompleted.CanTransition(StatusArchived))
	assert.True(t, StatusDenied.CanTransition(StatusRemoved))

	assert.False(t, StatusProposal.CanTransition(StatusProposal))
	assert.False(t, StatusProposal.CanTransition(StatusCompleted))
	assert.False(t, StatusRemoved.CanTransition(StatusProposal))
	assert.False(t, StatusArchived.CanTransition(StatusPlanning))
}

func TestNextStatuses(t *testing.T) {
	assert.Equal(t, []Status{StatusCompleted, StatusRemoved}, StatusScheduled.Next())
	assert.Empty(t, StatusRemoved.Next())

	next := StatusProposal.Next()
	next[0] = StatusRemoved
	assert.Equal(t, StatusPlanning, StatusProposal.Next()[0])
}

func TestIsCreator(t *testing.T) {
	owner := uuid.New()
	e := &Event{CreatedBy: &owner}

	assert.True(t, e.IsCreator(owner))
	assert.False(t, e.IsCreator(uuid.New()))

	orphan := &Event{}
	assert.False(t, orphan.IsCreator(owner))
}
