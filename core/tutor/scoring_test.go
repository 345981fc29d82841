package tutor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMatchScore(t *testing.T) {
	tests := []struct {
		name     string
		tutor    Tutor
		budget   float64
		hasSlots bool
		want     float64
	}{
		// 0.4 + 0.3*1 + 0.2*(1-0.25) + 0.1*1
		{name: "top rated, cheap, available", tutor: Tutor{Rating: 5, HourlyRate: 250}, budget: 500, hasSlots: true, want: 0.95},
		// 0.4 + 0.3*0.8 + 0.2*0.5 + 0.1*0.3
		{name: "rate equals budget, no slots", tutor: Tutor{Rating: 4, HourlyRate: 500}, budget: 500, want: 0.77},
		// 0.4 + 0 + 0 + 0.1
		{name: "over budget", tutor: Tutor{Rating: 0, HourlyRate: 600}, budget: 500, hasSlots: true, want: 0.5},
		// rating capped at 1: 0.4 + 0.3 + 0.2*0.5 + 0.03
		{name: "rating capped", tutor: Tutor{Rating: 7, HourlyRate: 100}, budget: 100, want: 0.83},
		// 0.4 + 0.3*0.9 + 0.2*0.75 + 0.1
		{name: "half budget", tutor: Tutor{Rating: 4.5, HourlyRate: 300}, budget: 600, hasSlots: true, want: 0.92},
		// 0.4 + 0.3*0.86 + 0.2*(1-0.4) + 0.03 = 0.808
		{name: "rounded", tutor: Tutor{Rating: 4.3, HourlyRate: 400}, budget: 500, want: 0.81},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MatchScore(tt.tutor, tt.budget, tt.hasSlots), 1e-9)
		})
	}
}

func TestTutor_Badge(t *testing.T) {
	str := func(s string) *string { return &s }
	tests := []struct {
		name    string
		rating  float64
		reviews int
		want    *string
	}{
		{name: "gold", rating: 4.8, reviews: 50, want: str(BadgeGold)},
		{name: "gold rating, silver reviews", rating: 4.9, reviews: 49, want: str(BadgeSilver)},
		{name: "silver", rating: 4.5, reviews: 20, want: str(BadgeSilver)},
		{name: "bronze", rating: 4.0, reviews: 5, want: str(BadgeBronze)},
		{name: "not enough reviews", rating: 5, reviews: 4, want: nil},
		{name: "low rating", rating: 3.9, reviews: 100, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tutor{Rating: tt.rating, ReviewsCount: tt.reviews}.Badge())
		})
	}
}

func TestTutor_OpenSlots(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tut := Tutor{Availability: []Slot{
		{ID: "past", TimeSlot: now.Add(-2 * time.Hour)},
		{ID: "recent", TimeSlot: now.Add(-30 * time.Minute)},
		{ID: "booked", TimeSlot: now.Add(time.Hour), IsBooked: true},
		{ID: "future", TimeSlot: now.Add(24 * time.Hour)},
	}}

	assert.Equal(t, []OpenSlot{
		{ID: "recent", Slot: now.Add(-30 * time.Minute)},
		{ID: "future", Slot: now.Add(24 * time.Hour)},
	}, tut.OpenSlots(now))
}

func Test_rankMatches(t *testing.T) {
	matches := []Match{
		{ID: "a", MatchScore: 0.5}, {ID: "b", MatchScore: 0.9}, {ID: "c", MatchScore: 0.7},
		{ID: "d", MatchScore: 0.6}, {ID: "e", MatchScore: 0.8}, {ID: "f", MatchScore: 0.55},
	}
	ranked := rankMatches(matches)

	ids := make([]string, 0, len(ranked))
	for _, m := range ranked {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"b", "e", "c", "d", "f"}, ids)
}
