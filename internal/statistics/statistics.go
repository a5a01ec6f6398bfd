// Package statistics aggregates platform-wide numbers for the admin dashboard.
package statistics

import (
	"math"
	"time"

	"github.com/eblago/backend/internal/models"
)

// EventFacts is the per-event input of Compute.
type EventFacts struct {
	Category        models.Category
	StoredStatus    models.EventStatus
	StartDate       time.Time
	EndDate         time.Time
	MaxParticipants int
	Participants    int
}

// UserCounts summarizes the user table.
type UserCounts struct {
	Total   int
	Blocked int
	ByRole  map[models.Role]int
}

// Stats is the admin dashboard payload.
type Stats struct {
	TotalUsers           int                        `json:"total_users"`
	UsersByRole          map[models.Role]int        `json:"users_by_role"`
	BlockedUsers         int                        `json:"blocked_users"`
	OrganizersCount      int                        `json:"organizers_count"`
	TotalEvents          int                        `json:"total_events"`
	ActiveEvents         int                        `json:"active_events"`
	CompletedEvents      int                        `json:"completed_events"`
	EventsByStatus       map[models.EventStatus]int `json:"events_by_status"`
	CategoryStats        map[models.Category]int    `json:"category_stats"`
	TotalParticipants    int                        `json:"total_participants"`
	EventDurations       []int                      `json:"event_durations"`
	ParticipantsPerEvent []int                      `json:"participants_per_event"`
	FillRates            []float64                  `json:"fill_rates"`
	EventsByMonth        map[string]int             `json:"events_by_month"`
	AvgDuration          float64                    `json:"avg_duration"`
	AvgParticipants      float64                    `json:"avg_participants"`
	AvgFillRate          float64                    `json:"avg_fill_rate"`
	AvgEventsPerUser     float64                    `json:"avg_events_per_user"`
}

// DurationDays is the length of an event in whole days, rounded up, at least 1.
func DurationDays(start, end time.Time) int {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// FillRate is participants over capacity, 0 for an event without capacity.
func FillRate(participants, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return float64(participants) / float64(capacity)
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Compute derives the dashboard numbers from per-event facts and user counts as of now.
// Event statuses are derived, so a stale stored status never skews the counts.
func Compute(events []EventFacts, users UserCounts, now time.Time) Stats {
	s := Stats{
		TotalUsers:           users.Total,
		UsersByRole:          map[models.Role]int{models.RoleUser: 0, models.RoleOrganizer: 0, models.RoleAdmin: 0},
		BlockedUsers:         users.Blocked,
		TotalEvents:          len(events),
		EventsByStatus:       map[models.EventStatus]int{},
		CategoryStats:        map[models.Category]int{},
		EventDurations:       make([]int, 0, len(events)),
		ParticipantsPerEvent: make([]int, 0, len(events)),
		FillRates:            make([]float64, 0, len(events)),
		EventsByMonth:        map[string]int{},
	}
	for role, n := range users.ByRole {
		s.UsersByRole[role] = n
	}
	s.OrganizersCount = s.UsersByRole[models.RoleOrganizer]
	for _, c := range models.Categories {
		s.CategoryStats[c] = 0
	}

	var durations, fill float64
	for _, e := range events {
		status := models.DeriveStatus(e.StoredStatus, e.StartDate, e.EndDate, now)
		s.EventsByStatus[status]++
		s.CategoryStats[e.Category]++
		s.TotalParticipants += e.Participants

		d := DurationDays(e.StartDate, e.EndDate)
		r := FillRate(e.Participants, e.MaxParticipants)
		s.EventDurations = append(s.EventDurations, d)
		s.ParticipantsPerEvent = append(s.ParticipantsPerEvent, e.Participants)
		s.FillRates = append(s.FillRates, r)
		durations += float64(d)
		fill += r

		s.EventsByMonth[e.StartDate.UTC().Format("2006-01")]++
	}
	s.ActiveEvents = s.EventsByStatus[models.StatusOngoing]
	s.CompletedEvents = s.EventsByStatus[models.StatusCompleted]

	s.AvgDuration = mean(durations, len(events))
	s.AvgParticipants = mean(float64(s.TotalParticipants), len(events))
	s.AvgFillRate = mean(fill, len(events))
	s.AvgEventsPerUser = mean(float64(s.TotalParticipants), users.Total)
	return s
}
