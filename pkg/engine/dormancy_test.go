package engine

import (
	"testing"
	"time"

	"github.com/meetpulse/backend/pkg/common"
)

func TestDormancyLabel(t *testing.T) {
	tests := []struct {
		days int
		want common.DormancyLabel
	}{
		{days: 0, want: common.DormancyActive},
		{days: 30, want: common.DormancyActive},
		{days: 31, want: common.DormancyCooling},
		{days: 60, want: common.DormancyCooling},
		{days: 61, want: common.DormancyDormant},
		{days: 90, want: common.DormancyDormant},
		{days: 91, want: common.DormancyHighRisk},
		{days: 365, want: common.DormancyHighRisk},
	}

	for _, tt := range tests {
		got := dormancyLabel(tt.days)
		if got != tt.want {
			t.Errorf("dormancyLabel(%d): got %q, want %q", tt.days, got, tt.want)
		}
	}
}

func TestDaysSince(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last time.Time
		want int
	}{
		{name: "zero time", last: time.Time{}, want: 0},
		{name: "future", last: now.AddDate(0, 0, 3), want: 0},
		{name: "same instant", last: now, want: 0},
		{name: "36 hours ago rounds down", last: now.Add(-36 * time.Hour), want: 1},
		{name: "ten days", last: now.AddDate(0, 0, -10), want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := daysSince(tt.last, now)
			if got != tt.want {
				t.Fatalf("unexpected days: got %d, want %d", got, tt.want)
			}
		})
	}
}
