package student

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextStreak(t *testing.T) {
	now := time.Date(2024, 5, 15, 9, 30, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	tests := []struct {
		name       string
		streak     int
		last       *time.Time
		wantStreak int
		wantMsg    string
	}{
		{name: "no previous action", streak: 0, last: nil, wantStreak: 1, wantMsg: StreakIncreased},
		{name: "same day", streak: 3, last: at(-9 * time.Hour), wantStreak: 3, wantMsg: StreakMaintained},
		{name: "yesterday evening", streak: 3, last: at(-11 * time.Hour), wantStreak: 4, wantMsg: StreakIncreased},
		{name: "yesterday morning", streak: 3, last: at(-24 * time.Hour), wantStreak: 4, wantMsg: StreakIncreased},
		{name: "two days ago", streak: 7, last: at(-34 * time.Hour), wantStreak: 1, wantMsg: StreakReset},
		{name: "long ago", streak: 7, last: at(-30 * 24 * time.Hour), wantStreak: 1, wantMsg: StreakReset},
		{name: "first action on signup day", streak: 0, last: at(-time.Hour), wantStreak: 0, wantMsg: StreakMaintained},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			streak, msg := NextStreak(tt.streak, tt.last, now)
			assert.Equal(t, tt.wantStreak, streak)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestNextStreak_usesNowLocation(t *testing.T) {
	loc := time.FixedZone("EAT", 3*60*60)
	now := time.Date(2024, 5, 15, 1, 0, 0, 0, loc) // 2024-05-14 22:00 UTC
	last := time.Date(2024, 5, 14, 20, 0, 0, 0, time.UTC)

	streak, msg := NextStreak(2, &last, now)
	assert.Equal(t, 3, streak)
	assert.Equal(t, StreakIncreased, msg)
}
