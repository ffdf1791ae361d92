package engine

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"

	"github.com/meetpulse/backend/pkg/common"
)

// The normalizer turns raw source records into typed records with parsed UTC
// instants. Participants stay raw here; the identity resolver replaces them
// with person ids in the next stage. A record missing a required field is
// discarded and counted, never raised.

type normParticipant struct {
	name  string
	email string
	kind  string
}

type normAttendee struct {
	normParticipant
	role common.AttendeeRole
}

type normMeeting struct {
	id        string
	subject   string
	start     time.Time
	duration  time.Duration
	organizer normParticipant
	attendees []normAttendee
	source    string
}

type normMessage struct {
	senderEmail string
	sentAt      time.Time
	attachments int
}

type normChat struct {
	id       string
	kind     common.ChatKind
	members  []normParticipant
	messages []normMessage
}

type normFileShare struct {
	id           string
	ownerEmail   string
	grantees     []string
	scope        common.ShareScope
	firstShared  time.Time
	lastActivity time.Time
}

type normalized struct {
	meetings []normMeeting
	chats    []normChat
	shares   []normFileShare
	dropped  common.DroppedRecords
}

func normalizeInput(in Input, loc *time.Location) *normalized {
	n := &normalized{}

	for i, m := range in.Meetings {
		nm, ok := normalizeMeeting(m, i, loc)
		if !ok {
			n.dropped.Meetings++
			continue
		}
		n.meetings = append(n.meetings, nm)
	}

	for i, c := range in.Chats {
		nc, ok := normalizeChat(c, i, loc)
		if !ok {
			n.dropped.Chats++
			continue
		}
		n.chats = append(n.chats, nc)
	}

	for i, f := range in.FileShares {
		nf, ok := normalizeFileShare(f, i, loc)
		if !ok {
			n.dropped.FileShares++
			continue
		}
		n.shares = append(n.shares, nf)
	}

	return n
}

func normalizeMeeting(m MeetingInput, idx int, loc *time.Location) (normMeeting, bool) {
	start, ok := parseInstant(m.StartUTC, loc)
	if !ok {
		return normMeeting{}, false
	}
	if !hasIdentity(m.Organizer.Name, m.Organizer.Email) {
		return normMeeting{}, false
	}
	if len(m.Attendees) == 0 {
		return normMeeting{}, false
	}

	nm := normMeeting{
		id:      m.ID,
		subject: m.Subject,
		start:   start,
		source:  m.Source,
		organizer: normParticipant{
			name:  m.Organizer.Name,
			email: m.Organizer.Email,
			kind:  m.Organizer.Kind,
		},
	}
	if nm.id == "" {
		nm.id = fmt.Sprintf("meeting-%d", idx)
	}

	if end, ok := parseInstant(m.EndUTC, loc); ok && end.After(start) {
		nm.duration = end.Sub(start)
	}

	organizerSeen := false
	for _, a := range m.Attendees {
		if !hasIdentity(a.Name, a.Email) && a.Kind == "" {
			continue
		}
		role := common.RoleRequired
		switch {
		case a.Kind == "room":
			role = common.RoleResource
		case a.Optional:
			role = common.RoleOptional
		}
		nm.attendees = append(nm.attendees, normAttendee{
			normParticipant: normParticipant{name: a.Name, email: a.Email, kind: a.Kind},
			role:            role,
		})
		if sameParticipant(a.Name, a.Email, m.Organizer.Name, m.Organizer.Email) {
			organizerSeen = true
		}
	}
	if len(nm.attendees) == 0 {
		return normMeeting{}, false
	}

	// The organizer is always part of the attendee set.
	if !organizerSeen {
		nm.attendees = append(nm.attendees, normAttendee{
			normParticipant: nm.organizer,
			role:            common.RoleRequired,
		})
	}

	return nm, true
}

func normalizeChat(c ChatInput, idx int, loc *time.Location) (normChat, bool) {
	if len(c.Members) == 0 {
		return normChat{}, false
	}

	kind := common.ChatKind(c.Kind)
	switch kind {
	case common.ChatOneOnOne, common.ChatGroup, common.ChatMeeting:
	case "":
		kind = common.ChatGroup
	default:
		return normChat{}, false
	}

	nc := normChat{id: c.ThreadID, kind: kind}
	if nc.id == "" {
		nc.id = fmt.Sprintf("chat-%d", idx)
	}

	for _, m := range c.Members {
		if !hasIdentity(m.Name, m.Email) {
			continue
		}
		nc.members = append(nc.members, normParticipant{name: m.Name, email: m.Email, kind: "user"})
	}
	if len(nc.members) == 0 {
		return normChat{}, false
	}

	for _, msg := range c.Messages {
		sent, ok := parseInstant(msg.SentUTC, loc)
		if !ok || msg.SenderEmail == "" {
			continue
		}
		nc.messages = append(nc.messages, normMessage{
			senderEmail: msg.SenderEmail,
			sentAt:      sent,
			attachments: msg.AttachmentCount,
		})
	}

	return nc, true
}

func normalizeFileShare(f FileShareInput, idx int, loc *time.Location) (normFileShare, bool) {
	if f.OwnerEmail == "" || len(f.Grantees) == 0 {
		return normFileShare{}, false
	}
	first, ok := parseInstant(f.FirstSharedUTC, loc)
	if !ok {
		return normFileShare{}, false
	}

	nf := normFileShare{
		id:          f.FileID,
		ownerEmail:  f.OwnerEmail,
		firstShared: first,
	}
	if nf.id == "" {
		nf.id = fmt.Sprintf("file-%d", idx)
	}

	for _, g := range f.Grantees {
		if g == "" {
			continue
		}
		nf.grantees = append(nf.grantees, g)
	}
	if len(nf.grantees) == 0 {
		return normFileShare{}, false
	}

	nf.lastActivity = first
	if last, ok := parseInstant(f.LastActivityUTC, loc); ok && last.After(first) {
		nf.lastActivity = last
	}

	switch common.ShareScope(f.Scope) {
	case common.ShareDirect, common.ShareSmallGroup, common.ShareLargeGroup:
		nf.scope = common.ShareScope(f.Scope)
	default:
		switch {
		case len(nf.grantees) == 1:
			nf.scope = common.ShareDirect
		case len(nf.grantees) <= 5:
			nf.scope = common.ShareSmallGroup
		default:
			nf.scope = common.ShareLargeGroup
		}
	}

	return nf, true
}

// parseInstant reads an ISO 8601 timestamp. Values without an offset are
// interpreted in loc. The result is always UTC.
func parseInstant(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func hasIdentity(name, email string) bool {
	return normalizeName(name) != "" || normalizeEmail(email) != ""
}

func sameParticipant(name1, email1, name2, email2 string) bool {
	e1, e2 := normalizeEmail(email1), normalizeEmail(email2)
	if e1 != "" && e2 != "" {
		return e1 == e2
	}
	n1, n2 := normalizeName(name1), normalizeName(name2)
	return n1 != "" && n1 == n2
}
