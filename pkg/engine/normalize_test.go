package engine

import (
	"testing"
	"time"

	"github.com/meetpulse/backend/pkg/common"
)

func TestNormalizeMeeting(t *testing.T) {
	organizer := ParticipantInput{Name: "Avery Quinn", Email: "avery@corp.example"}

	tests := []struct {
		name string
		in   MeetingInput
		ok   bool
	}{
		{
			name: "valid",
			in: MeetingInput{
				StartUTC:  "2026-03-02T10:00:00Z",
				Organizer: organizer,
				Attendees: []AttendeeInput{{Name: "Maya Torres", Email: "maya@corp.example"}},
			},
			ok: true,
		},
		{
			name: "missing start",
			in: MeetingInput{
				Organizer: organizer,
				Attendees: []AttendeeInput{{Email: "maya@corp.example"}},
			},
			ok: false,
		},
		{
			name: "unparseable start",
			in: MeetingInput{
				StartUTC:  "not a timestamp",
				Organizer: organizer,
				Attendees: []AttendeeInput{{Email: "maya@corp.example"}},
			},
			ok: false,
		},
		{
			name: "organizer without identity",
			in: MeetingInput{
				StartUTC:  "2026-03-02T10:00:00Z",
				Attendees: []AttendeeInput{{Email: "maya@corp.example"}},
			},
			ok: false,
		},
		{
			name: "no attendees",
			in: MeetingInput{
				StartUTC:  "2026-03-02T10:00:00Z",
				Organizer: organizer,
			},
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := normalizeMeeting(tt.in, 0, time.UTC)
			if ok != tt.ok {
				t.Fatalf("unexpected result: got ok=%v, want ok=%v", ok, tt.ok)
			}
		})
	}
}

func TestNormalizeMeetingDefaults(t *testing.T) {
	nm, ok := normalizeMeeting(MeetingInput{
		StartUTC:  "2026-03-02T10:00:00Z",
		EndUTC:    "2026-03-02T10:30:00Z",
		Organizer: ParticipantInput{Name: "Avery Quinn", Email: "avery@corp.example"},
		Attendees: []AttendeeInput{{Name: "Maya Torres", Email: "maya@corp.example", Optional: true}},
	}, 3, time.UTC)
	if !ok {
		t.Fatal("expected meeting to normalize")
	}

	if nm.id != "meeting-3" {
		t.Errorf("unexpected fallback id: got %q, want %q", nm.id, "meeting-3")
	}
	if nm.duration != 30*time.Minute {
		t.Errorf("unexpected duration: got %v, want 30m", nm.duration)
	}
	// The organizer was not in the attendee list and must be appended.
	if len(nm.attendees) != 2 {
		t.Fatalf("unexpected attendee count: got %d, want 2", len(nm.attendees))
	}
	if nm.attendees[0].role != common.RoleOptional {
		t.Errorf("unexpected role: got %q, want %q", nm.attendees[0].role, common.RoleOptional)
	}
	if nm.attendees[1].email != "avery@corp.example" {
		t.Errorf("expected appended organizer, got %q", nm.attendees[1].email)
	}
}

func TestNormalizeChat(t *testing.T) {
	members := []ChatMemberInput{
		{Email: "avery@corp.example"},
		{Email: "maya@corp.example"},
	}

	tests := []struct {
		name     string
		in       ChatInput
		ok       bool
		wantKind common.ChatKind
	}{
		{
			name:     "explicit one on one",
			in:       ChatInput{Kind: "oneOnOne", Members: members},
			ok:       true,
			wantKind: common.ChatOneOnOne,
		},
		{
			name:     "empty kind defaults to group",
			in:       ChatInput{Members: members},
			ok:       true,
			wantKind: common.ChatGroup,
		},
		{
			name: "invalid kind",
			in:   ChatInput{Kind: "broadcast", Members: members},
			ok:   false,
		},
		{
			name: "no members",
			in:   ChatInput{Kind: "group"},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nc, ok := normalizeChat(tt.in, 0, time.UTC)
			if ok != tt.ok {
				t.Fatalf("unexpected result: got ok=%v, want ok=%v", ok, tt.ok)
			}
			if ok && nc.kind != tt.wantKind {
				t.Errorf("unexpected kind: got %q, want %q", nc.kind, tt.wantKind)
			}
		})
	}
}

func TestNormalizeChatSkipsBadMessages(t *testing.T) {
	nc, ok := normalizeChat(ChatInput{
		Members: []ChatMemberInput{{Email: "avery@corp.example"}, {Email: "maya@corp.example"}},
		Messages: []ChatMessageInput{
			{SenderEmail: "maya@corp.example", SentUTC: "2026-03-01T09:00:00Z"},
			{SenderEmail: "", SentUTC: "2026-03-01T10:00:00Z"},
			{SenderEmail: "maya@corp.example", SentUTC: "garbage"},
		},
	}, 7, time.UTC)
	if !ok {
		t.Fatal("expected chat to normalize")
	}
	if nc.id != "chat-7" {
		t.Errorf("unexpected fallback id: got %q, want %q", nc.id, "chat-7")
	}
	if len(nc.messages) != 1 {
		t.Fatalf("unexpected message count: got %d, want 1", len(nc.messages))
	}
}

func TestNormalizeFileShare(t *testing.T) {
	tests := []struct {
		name      string
		in        FileShareInput
		ok        bool
		wantScope common.ShareScope
	}{
		{
			name: "explicit scope",
			in: FileShareInput{
				OwnerEmail:     "avery@corp.example",
				Grantees:       []string{"a@corp.example", "b@corp.example"},
				FirstSharedUTC: "2026-03-01T09:00:00Z",
				Scope:          "direct",
			},
			ok:        true,
			wantScope: common.ShareDirect,
		},
		{
			name: "single grantee derives direct",
			in: FileShareInput{
				OwnerEmail:     "avery@corp.example",
				Grantees:       []string{"a@corp.example"},
				FirstSharedUTC: "2026-03-01T09:00:00Z",
			},
			ok:        true,
			wantScope: common.ShareDirect,
		},
		{
			name: "few grantees derive small group",
			in: FileShareInput{
				OwnerEmail:     "avery@corp.example",
				Grantees:       []string{"a@corp.example", "b@corp.example", "c@corp.example"},
				FirstSharedUTC: "2026-03-01T09:00:00Z",
			},
			ok:        true,
			wantScope: common.ShareSmallGroup,
		},
		{
			name: "many grantees derive large group",
			in: FileShareInput{
				OwnerEmail: "avery@corp.example",
				Grantees: []string{
					"a@corp.example", "b@corp.example", "c@corp.example",
					"d@corp.example", "e@corp.example", "f@corp.example",
				},
				FirstSharedUTC: "2026-03-01T09:00:00Z",
			},
			ok:        true,
			wantScope: common.ShareLargeGroup,
		},
		{
			name: "missing first shared",
			in: FileShareInput{
				OwnerEmail: "avery@corp.example",
				Grantees:   []string{"a@corp.example"},
			},
			ok: false,
		},
		{
			name: "missing owner",
			in: FileShareInput{
				Grantees:       []string{"a@corp.example"},
				FirstSharedUTC: "2026-03-01T09:00:00Z",
			},
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nf, ok := normalizeFileShare(tt.in, 0, time.UTC)
			if ok != tt.ok {
				t.Fatalf("unexpected result: got ok=%v, want ok=%v", ok, tt.ok)
			}
			if ok && nf.scope != tt.wantScope {
				t.Errorf("unexpected scope: got %q, want %q", nf.scope, tt.wantScope)
			}
		})
	}
}

func TestNormalizeFileShareLastActivityFloor(t *testing.T) {
	nf, ok := normalizeFileShare(FileShareInput{
		OwnerEmail:      "avery@corp.example",
		Grantees:        []string{"a@corp.example"},
		FirstSharedUTC:  "2026-03-01T09:00:00Z",
		LastActivityUTC: "2026-02-01T09:00:00Z",
	}, 0, time.UTC)
	if !ok {
		t.Fatal("expected file share to normalize")
	}
	// Last activity before first shared is clamped to first shared.
	if !nf.lastActivity.Equal(nf.firstShared) {
		t.Fatalf("unexpected last activity: got %v, want %v", nf.lastActivity, nf.firstShared)
	}
}

func TestParseInstantOffsets(t *testing.T) {
	got, ok := parseInstant("2026-03-02T05:00:00-05:00", time.UTC)
	if !ok {
		t.Fatal("expected timestamp to parse")
	}
	want := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected instant: got %v, want %v", got, want)
	}
}

func TestNormalizeInputCountsDropped(t *testing.T) {
	n := normalizeInput(Input{
		Meetings: []MeetingInput{
			{StartUTC: "bad"},
			{
				StartUTC:  "2026-03-02T10:00:00Z",
				Organizer: ParticipantInput{Email: "avery@corp.example"},
				Attendees: []AttendeeInput{{Email: "maya@corp.example"}},
			},
		},
		Chats:      []ChatInput{{Kind: "broadcast"}},
		FileShares: []FileShareInput{{OwnerEmail: "avery@corp.example"}},
	}, time.UTC)

	want := common.DroppedRecords{Meetings: 1, Chats: 1, FileShares: 1}
	if n.dropped != want {
		t.Fatalf("unexpected dropped counts: got %+v, want %+v", n.dropped, want)
	}
	if len(n.meetings) != 1 {
		t.Fatalf("unexpected kept meetings: got %d, want 1", len(n.meetings))
	}
}
