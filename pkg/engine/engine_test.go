package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/meetpulse/backend/pkg/common"
)

// Midnight on a Monday, so ISO week arithmetic stays readable and day-level
// decay in fixtures is exactly 1.
var testReportTime = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		SelfIdentity: common.Identity{Name: "Avery Quinn", Emails: []string{"avery@corp.example"}},
		ReportTime:   testReportTime,
	}
}

func mustResolve(t *testing.T, cfg Config) *resolvedConfig {
	t.Helper()
	rc, err := resolveConfig(cfg)
	if err != nil {
		t.Fatalf("resolveConfig failed: %v", err)
	}
	return rc
}

func stamp(at time.Time) string {
	return at.Format(time.RFC3339)
}

func selfAttendee() AttendeeInput {
	return AttendeeInput{Name: "Avery Quinn", Email: "avery@corp.example"}
}

func runPipeline(t *testing.T, cfg Config, in Input) (*identityTable, evidenceMap) {
	t.Helper()
	rc := mustResolve(t, cfg)
	n := normalizeInput(in, rc.location)
	table := resolveIdentities(n, rc)
	meetings, chats, shares := table.rewrite(n)
	meetings = classifyMeetings(meetings, table, rc)
	ev, err := aggregateEvidence(context.Background(), meetings, chats, shares, table, rc)
	if err != nil {
		t.Fatalf("aggregateEvidence failed: %v", err)
	}
	return table, ev
}

func TestNewEngineConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "missing self email",
			cfg:  Config{SelfIdentity: common.Identity{Name: "Avery Quinn"}},
		},
		{
			name: "invalid broadcast pattern",
			cfg: Config{
				SelfIdentity:             common.Identity{Emails: []string{"avery@corp.example"}},
				BroadcastSubjectPatterns: []string{"("},
			},
		},
		{
			name: "invalid timezone",
			cfg: Config{
				SelfIdentity:    common.Identity{Emails: []string{"avery@corp.example"}},
				DefaultTimezone: "Mars/Olympus",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine(tt.cfg); err == nil {
				t.Fatal("expected config error, got nil")
			}
		})
	}
}

func TestBuildReportRanking(t *testing.T) {
	in := Input{}

	// Maya: weekly 1:1s organized by self, the strongest possible signal.
	for week := 0; week < 8; week++ {
		at := testReportTime.AddDate(0, 0, -7*week)
		in.Meetings = append(in.Meetings, MeetingInput{
			ID:        fmt.Sprintf("maya-%d", week),
			Subject:   "Design sync",
			StartUTC:  stamp(at),
			Organizer: ParticipantInput{Name: "Avery Quinn", Email: "avery@corp.example"},
			Attendees: []AttendeeInput{
				{Name: "Maya Torres", Email: "maya@corp.example"},
				{Name: "Conference Room 4", Kind: "room"},
			},
		})
	}

	// Pete only shares a broadcast with self. Never ranked.
	in.Meetings = append(in.Meetings, MeetingInput{
		ID:        "allhands-1",
		Subject:   "Quarterly All Hands",
		StartUTC:  stamp(testReportTime.AddDate(0, 0, -3)),
		Organizer: ParticipantInput{Name: "Pete Ward", Email: "pete@corp.example"},
		Attendees: []AttendeeInput{selfAttendee(), {Name: "Pete Ward", Email: "pete@corp.example"}},
	})

	// Noah only chats with self. Chat alone never passes the gate.
	noahThread := ChatInput{
		ThreadID: "noah-dm",
		Kind:     "oneOnOne",
		Members: []ChatMemberInput{
			{Name: "Avery Quinn", Email: "avery@corp.example"},
			{Name: "Noah Patel", Email: "noah@corp.example"},
		},
	}
	for day := 0; day < 20; day++ {
		noahThread.Messages = append(noahThread.Messages, ChatMessageInput{
			SenderEmail: "noah@corp.example",
			SentUTC:     stamp(testReportTime.AddDate(0, 0, -day)),
		})
	}
	in.Chats = append(in.Chats, noahThread)

	// Omar was a close collaborator, 250 days ago.
	in.Meetings = append(in.Meetings, MeetingInput{
		ID:        "omar-1",
		Subject:   "Handover",
		StartUTC:  stamp(testReportTime.AddDate(0, 0, -250)),
		Organizer: ParticipantInput{Name: "Avery Quinn", Email: "avery@corp.example"},
		Attendees: []AttendeeInput{{Name: "Omar Haddad", Email: "omar@corp.example"}},
	})

	eng, err := NewEngine(testConfig())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	report, err := eng.BuildReport(context.Background(), in)
	if err != nil {
		t.Fatalf("BuildReport failed: %v", err)
	}

	if len(report.Collaborators) != 1 {
		t.Fatalf("unexpected collaborator count: got %d, want 1", len(report.Collaborators))
	}
	maya := report.Collaborators[0]
	if maya.Name != "Maya Torres" {
		t.Fatalf("unexpected top collaborator: got %q, want %q", maya.Name, "Maya Torres")
	}
	if maya.Evidence.OneOnOneMeetings != 8 {
		t.Errorf("unexpected one-on-one count: got %d, want 8", maya.Evidence.OneOnOneMeetings)
	}
	if maya.Evidence.OrganizedForPeer != 8 {
		t.Errorf("unexpected organized-for count: got %d, want 8", maya.Evidence.OrganizedForPeer)
	}
	if len(maya.Evidence.DistinctWeeks) != 8 {
		t.Errorf("unexpected distinct weeks: got %d, want 8", len(maya.Evidence.DistinctWeeks))
	}
	if maya.Dormancy != common.DormancyActive {
		t.Errorf("unexpected dormancy: got %q, want %q", maya.Dormancy, common.DormancyActive)
	}
	if maya.Score.Total <= 0 {
		t.Errorf("expected positive score, got %f", maya.Score.Total)
	}

	if got := report.Diagnostics.FlaggedFormerEmployees; len(got) != 1 || got[0] != "Omar Haddad" {
		t.Errorf("unexpected former employees: got %v, want [Omar Haddad]", got)
	}
}

func TestBuildReportDeterminism(t *testing.T) {
	in := Input{
		Meetings: []MeetingInput{
			{
				ID:        "m1",
				Subject:   "Planning",
				StartUTC:  stamp(testReportTime.AddDate(0, 0, -10)),
				Organizer: ParticipantInput{Email: "bea@corp.example", Name: "Bea Long"},
				Attendees: []AttendeeInput{selfAttendee(), {Name: "Cal Reyes", Email: "cal@corp.example"}},
			},
			{
				ID:        "m2",
				Subject:   "Follow-up",
				StartUTC:  stamp(testReportTime.AddDate(0, 0, -4)),
				Organizer: ParticipantInput{Name: "Avery Quinn", Email: "avery@corp.example"},
				Attendees: []AttendeeInput{{Name: "Bea Long", Email: "bea@corp.example"}},
			},
		},
		Chats: []ChatInput{
			{
				ThreadID: "dm-1",
				Kind:     "oneOnOne",
				Members: []ChatMemberInput{
					{Email: "avery@corp.example"},
					{Email: "bea@corp.example"},
				},
				Messages: []ChatMessageInput{
					{SenderEmail: "avery@corp.example", SentUTC: stamp(testReportTime.AddDate(0, 0, -2)), AttachmentCount: 1},
				},
			},
		},
		FileShares: []FileShareInput{
			{
				FileID:         "f1",
				OwnerEmail:     "avery@corp.example",
				Grantees:       []string{"bea@corp.example"},
				FirstSharedUTC: stamp(testReportTime.AddDate(0, 0, -1)),
			},
		},
	}

	eng, err := NewEngine(testConfig())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	var outputs [][]byte
	for i := 0; i < 3; i++ {
		report, err := eng.BuildReport(context.Background(), in)
		if err != nil {
			t.Fatalf("BuildReport failed: %v", err)
		}
		raw, err := json.Marshal(report)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		outputs = append(outputs, raw)
	}

	for i := 1; i < len(outputs); i++ {
		if !bytes.Equal(outputs[0], outputs[i]) {
			t.Fatalf("run %d produced different bytes than run 0", i)
		}
	}
}

func TestBuildReportEmptyInput(t *testing.T) {
	eng, err := NewEngine(testConfig())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	report, err := eng.BuildReport(context.Background(), Input{})
	if err != nil {
		t.Fatalf("BuildReport failed: %v", err)
	}
	if len(report.Collaborators) != 0 {
		t.Fatalf("expected no collaborators, got %d", len(report.Collaborators))
	}
	if report.Diagnostics.DroppedRecords != (common.DroppedRecords{}) {
		t.Fatalf("expected no dropped records, got %+v", report.Diagnostics.DroppedRecords)
	}
}

func TestBuildReportTopN(t *testing.T) {
	cfg := testConfig()
	cfg.TopN = 2

	in := Input{}
	for i, name := range []string{"Ana Ruiz", "Ben Cho", "Cleo Park"} {
		for k := 0; k <= i; k++ {
			in.Meetings = append(in.Meetings, MeetingInput{
				ID:        fmt.Sprintf("m-%d-%d", i, k),
				Subject:   "Pairing",
				StartUTC:  stamp(testReportTime.AddDate(0, 0, -k)),
				Organizer: ParticipantInput{Name: "Avery Quinn", Email: "avery@corp.example"},
				Attendees: []AttendeeInput{{Name: name, Email: fmt.Sprintf("peer%d@corp.example", i)}},
			})
		}
	}

	eng, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	report, err := eng.BuildReport(context.Background(), in)
	if err != nil {
		t.Fatalf("BuildReport failed: %v", err)
	}

	if len(report.Collaborators) != 2 {
		t.Fatalf("unexpected collaborator count: got %d, want 2", len(report.Collaborators))
	}
	if got := report.Collaborators[0].Name; got != "Cleo Park" {
		t.Errorf("unexpected top collaborator: got %q, want %q", got, "Cleo Park")
	}
}
