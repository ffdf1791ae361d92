package engine

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/meetpulse/backend/pkg/common"
)

func TestPassesGate(t *testing.T) {
	tests := []struct {
		name string
		pe   func() *personEvidence
		want bool
	}{
		{
			name: "one on one",
			pe: func() *personEvidence {
				pe := newPersonEvidence()
				pe.oneOnOne = 1
				return pe
			},
			want: true,
		},
		{
			name: "mutual organization",
			pe: func() *personEvidence {
				pe := newPersonEvidence()
				pe.organizedBy = 1
				return pe
			},
			want: true,
		},
		{
			name: "small meetings with direct file",
			pe: func() *personEvidence {
				pe := newPersonEvidence()
				pe.small = 2
				pe.fileDirect = 1
				return pe
			},
			want: true,
		},
		{
			name: "small meetings with direct chat",
			pe: func() *personEvidence {
				pe := newPersonEvidence()
				pe.small = 2
				pe.directDays["2026-02-25"] = struct{}{}
				return pe
			},
			want: true,
		},
		{
			name: "small meetings alone",
			pe: func() *personEvidence {
				pe := newPersonEvidence()
				pe.small = 5
				return pe
			},
			want: false,
		},
		{
			name: "chat alone never qualifies",
			pe: func() *personEvidence {
				pe := newPersonEvidence()
				for day := 0; day < 30; day++ {
					pe.directDays[fmt.Sprintf("2026-01-%02d", day+1)] = struct{}{}
				}
				return pe
			},
			want: false,
		},
		{
			name: "broadcasts alone",
			pe: func() *personEvidence {
				pe := newPersonEvidence()
				pe.broadcast = 12
				pe.team = 4
				return pe
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := passesGate(tt.pe())
			if got != tt.want {
				t.Fatalf("unexpected gate result: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreOneWeights(t *testing.T) {
	cfg := mustResolve(t, testConfig())

	pe := newPersonEvidence()
	pe.events = []scoreEvent{
		{kind: evOneOnOne, at: testReportTime, meetingID: "m1", subject: "Sync"},
		{kind: evOneOnOne, at: testReportTime, meetingID: "m2", subject: "Sync"},
		{kind: evSmallMeeting, at: testReportTime, meetingID: "m3", subject: "Standup"},
		{kind: evOrganizedForPeer, at: testReportTime, meetingID: "m1", subject: "Sync"},
		{kind: evDirectFileShare, at: testReportTime},
	}
	pe.directDays["2026-03-02"] = struct{}{}

	score, top := scoreOne(pe, cfg, "gate: one-on-one meetings")

	wantSubtotals := map[string]float64{
		sigOneOnOne:      20,
		sigSmallMeetings: 3,
		sigOrganizedFor:  5,
		sigFilesDirect:   4,
		sigChatDirect:    2,
	}
	for key, want := range wantSubtotals {
		if got := score.Subtotals[key]; math.Abs(got-want) > 1e-9 {
			t.Errorf("unexpected subtotal %s: got %f, want %f", key, got, want)
		}
	}
	if math.Abs(score.Total-34) > 1e-9 {
		t.Errorf("unexpected total: got %f, want 34", score.Total)
	}

	// m1 carries a 1:1 and an organized-for contribution, m2 only a 1:1.
	if len(top) != 3 {
		t.Fatalf("unexpected top meeting count: got %d, want 3", len(top))
	}
	if top[0].MeetingID != "m1" || math.Abs(top[0].Contribution-15) > 1e-9 {
		t.Errorf("unexpected top meeting: got %+v", top[0])
	}
	if top[1].MeetingID != "m2" {
		t.Errorf("unexpected second meeting: got %+v", top[1])
	}
}

func TestScoreDecay(t *testing.T) {
	cfg := mustResolve(t, testConfig())

	pe := newPersonEvidence()
	pe.events = []scoreEvent{
		{kind: evOneOnOne, at: testReportTime.AddDate(0, 0, -120), meetingID: "m1"},
	}

	score, _ := scoreOne(pe, cfg, "gate: one-on-one meetings")

	want := 10 * math.Exp(-1)
	if got := score.Subtotals[sigOneOnOne]; math.Abs(got-want) > 1e-9 {
		t.Fatalf("unexpected decayed subtotal: got %f, want %f", got, want)
	}
}

func TestScoreSizePenalty(t *testing.T) {
	cfg := mustResolve(t, testConfig())

	pe := newPersonEvidence()
	pe.meetingCount = 2
	pe.meetingSizeSum = 60

	score, _ := scoreOne(pe, cfg, "gate: one-on-one meetings")

	if got := score.Subtotals[sigSizePenalty]; math.Abs(got-(-1)) > 1e-9 {
		t.Fatalf("unexpected size penalty: got %f, want -1", got)
	}
	found := false
	for _, rule := range score.AppliedRules {
		if rule == "size penalty: average meeting size 30.0" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing size penalty rule, got %v", score.AppliedRules)
	}
}

func TestScoreDistinctWeekCap(t *testing.T) {
	cfg := mustResolve(t, testConfig())

	pe := newPersonEvidence()
	for i := 0; i < 30; i++ {
		pe.weeks[fmt.Sprintf("2025-W%02d", i+1)] = testReportTime
	}

	score, _ := scoreOne(pe, cfg, "gate: one-on-one meetings")

	if got := score.Subtotals[sigDistinctWeeks]; math.Abs(got-26) > 1e-9 {
		t.Fatalf("unexpected weeks subtotal: got %f, want 26", got)
	}
	found := false
	for _, rule := range score.AppliedRules {
		if rule == "distinct weeks capped at 26" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing cap rule, got %v", score.AppliedRules)
	}
}

func TestScoreTotalStableAcrossRuns(t *testing.T) {
	// The total is a float sum over every subtotal; its bytes must not
	// depend on map iteration order.
	cfg := mustResolve(t, testConfig())

	build := func() *personEvidence {
		pe := newPersonEvidence()
		pe.events = []scoreEvent{
			{kind: evOneOnOne, at: testReportTime.AddDate(0, 0, -3), meetingID: "m1", subject: "Sync"},
			{kind: evSmallMeeting, at: testReportTime.AddDate(0, 0, -11), meetingID: "m2", subject: "Standup"},
			{kind: evTeamMeeting, at: testReportTime.AddDate(0, 0, -23), meetingID: "m3", subject: "Weekly"},
			{kind: evOrganizedForPeer, at: testReportTime.AddDate(0, 0, -31), meetingID: "m4", subject: "Review"},
			{kind: evOrganizedByPeer, at: testReportTime.AddDate(0, 0, -47), meetingID: "m5", subject: "Planning"},
			{kind: evDirectFileShare, at: testReportTime.AddDate(0, 0, -59)},
			{kind: evSmallGroupFileShare, at: testReportTime.AddDate(0, 0, -61)},
		}
		pe.directDays["2026-02-10"] = struct{}{}
		pe.directDays["2026-02-17"] = struct{}{}
		pe.groupDays["2026-02-12"] = 1
		pe.groupDays["2026-02-19"] = 0.25
		pe.weeks["2026-W06"] = testReportTime.AddDate(0, 0, -21)
		pe.weeks["2026-W08"] = testReportTime.AddDate(0, 0, -7)
		pe.meetingCount = 4
		pe.meetingSizeSum = 160
		return pe
	}

	first, _ := scoreOne(build(), cfg, "gate: one-on-one meetings")
	if len(first.Subtotals) != len(signalOrder) {
		t.Fatalf("fixture does not touch every signal: got %d subtotals, want %d", len(first.Subtotals), len(signalOrder))
	}
	for i := 0; i < 100; i++ {
		score, _ := scoreOne(build(), cfg, "gate: one-on-one meetings")
		if math.Float64bits(score.Total) != math.Float64bits(first.Total) {
			t.Fatalf("total changed between runs: got %v, want %v", score.Total, first.Total)
		}
	}
}

func TestScoreMonotonicDecay(t *testing.T) {
	// The same evidence further in the past always scores lower.
	cfg := mustResolve(t, testConfig())

	totals := make([]float64, 0, 4)
	for _, ageDays := range []int{0, 30, 90, 300} {
		at := testReportTime.AddDate(0, 0, -ageDays)
		pe := newPersonEvidence()
		pe.events = []scoreEvent{
			{kind: evOneOnOne, at: at, meetingID: "m1"},
			{kind: evSmallMeeting, at: at, meetingID: "m2"},
		}
		score, _ := scoreOne(pe, cfg, "gate: one-on-one meetings")
		totals = append(totals, score.Total)
	}

	for i := 1; i < len(totals); i++ {
		if totals[i] >= totals[i-1] {
			t.Fatalf("total did not decrease with age: %v", totals)
		}
	}
}

func TestScoreCollaboratorsOrderingAndExclusions(t *testing.T) {
	cfg := mustResolve(t, testConfig())

	table := testTable(
		&common.Person{ID: "p1", Name: "Avery Quinn", IsSelf: true},
		&common.Person{ID: "p2", Name: "Bob Tran"},
		&common.Person{ID: "p3", Name: "Alice Wu"},
		&common.Person{ID: "p4", Name: "Room 7", IsResource: true},
		&common.Person{ID: "p5", Name: "Old Timer", IsFormerEmployee: true},
		&common.Person{ID: "p6", Name: "List", IsNonPerson: true},
	)

	ev := make(evidenceMap)
	for _, id := range []string{"p2", "p3", "p4", "p5", "p6"} {
		pe := ev.get(id)
		pe.oneOnOne = 1
		pe.events = []scoreEvent{{kind: evOneOnOne, at: testReportTime, meetingID: "m-" + id}}
		pe.touch(testReportTime)
	}

	scored := scoreCollaborators(ev, table, cfg)

	if len(scored) != 2 {
		t.Fatalf("unexpected scored count: got %d, want 2", len(scored))
	}
	// Identical scores and last contact fall back to name order.
	if scored[0].person.Name != "Alice Wu" || scored[1].person.Name != "Bob Tran" {
		t.Fatalf("unexpected order: got [%s, %s]", scored[0].person.Name, scored[1].person.Name)
	}
}

func TestDecayFactorBounds(t *testing.T) {
	cfg := mustResolve(t, testConfig())

	tests := []struct {
		name string
		at   time.Time
		want float64
	}{
		{name: "zero time", at: time.Time{}, want: 1},
		{name: "future", at: testReportTime.AddDate(0, 0, 5), want: 1},
		{name: "now", at: testReportTime, want: 1},
		{name: "one half life", at: testReportTime.AddDate(0, 0, -120), want: math.Exp(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decayFactor(tt.at, cfg)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("unexpected decay: got %v, want %v", got, tt.want)
			}
		})
	}
}
