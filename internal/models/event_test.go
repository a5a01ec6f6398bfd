package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	t1 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 5, 1, 17, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		stored EventStatus
		now    time.Time
		want   EventStatus
	}{
		{"before start", StatusUpcoming, t1.Add(-time.Minute), StatusUpcoming},
		{"at start", StatusUpcoming, t1, StatusOngoing},
		{"during", StatusUpcoming, t1.Add(time.Hour), StatusOngoing},
		{"at end", StatusUpcoming, t2, StatusOngoing},
		{"after end", StatusUpcoming, t2.Add(time.Second), StatusCompleted},
		{"stale stored completed before start", StatusCompleted, t1.Add(-time.Hour), StatusUpcoming},
		{"canceled before start", StatusCanceled, t1.Add(-time.Hour), StatusCanceled},
		{"canceled during", StatusCanceled, t1.Add(time.Hour), StatusCanceled},
		{"canceled after end", StatusCanceled, t2.Add(time.Hour), StatusCanceled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveStatus(tc.stored, t1, t2, tc.now))
		})
	}
}

func TestResolve(t *testing.T) {
	now := time.Now()
	e := Event{
		StartDate:       now.Add(time.Hour),
		EndDate:         now.Add(2 * time.Hour),
		MaxParticipants: 2,
		StoredStatus:    StatusUpcoming,
		Participants:    []UserSummary{{ID: uuid.New()}},
	}
	e.Resolve(now)
	assert.Equal(t, StatusUpcoming, e.Status)
	assert.Equal(t, 1, e.ParticipantCount)
	assert.Equal(t, 1, e.RemainingSpots)
	assert.False(t, e.IsFull)

	e.Participants = append(e.Participants, UserSummary{ID: uuid.New()})
	e.Resolve(now)
	assert.True(t, e.IsFull)
	assert.Zero(t, e.RemainingSpots)
}

func TestResolveEmptyParticipants(t *testing.T) {
	e := Event{MaxParticipants: 1}
	e.Resolve(time.Now())
	assert.NotNil(t, e.Participants)
	assert.Equal(t, 1, e.RemainingSpots)
}

func TestCanManage(t *testing.T) {
	owner := uuid.New()
	e := Event{OrganizerID: owner}

	assert.True(t, e.CanManage(Actor{ID: owner, Role: RoleOrganizer}))
	assert.True(t, e.CanManage(Actor{ID: uuid.New(), Role: RoleAdmin}))
	assert.False(t, e.CanManage(Actor{ID: uuid.New(), Role: RoleOrganizer}))
}
