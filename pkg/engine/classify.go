package engine

import (
	"github.com/meetpulse/backend/pkg/common"
)

// The noise classifier assigns every meeting a kind and every attendee an
// interaction grade. Downstream scoring only rewards active and neutral
// grades; sharing a broadcast room is not collaboration.

func classifyMeetings(meetings []common.MeetingRecord, t *identityTable, cfg *resolvedConfig) []common.MeetingRecord {
	out := make([]common.MeetingRecord, len(meetings))
	for i, m := range meetings {
		out[i] = classifyMeeting(m, t, cfg)
	}
	return out
}

func classifyMeeting(m common.MeetingRecord, t *identityTable, cfg *resolvedConfig) common.MeetingRecord {
	m.Kind = meetingKind(m, t, cfg)

	attendees := make([]common.Attendee, len(m.Attendees))
	copy(attendees, m.Attendees)
	for i := range attendees {
		attendees[i].Grade = interactionGrade(m, attendees[i], t)
	}
	m.Attendees = attendees

	return m
}

func meetingKind(m common.MeetingRecord, t *identityTable, cfg *resolvedConfig) common.MeetingKind {
	if organizerAutomated(m, t, cfg) {
		return common.MeetingAutomated
	}
	if matchesAny(cfg.broadcastRe, m.Subject) || m.Size > cfg.broadcastSize {
		return common.MeetingBroadcast
	}
	if m.Size == 2 && includesSelf(m, t) {
		return common.MeetingOneOnOne
	}
	switch {
	case m.Size <= 10:
		return common.MeetingSmallCollaboration
	case m.Size <= 30:
		return common.MeetingTeam
	default:
		return common.MeetingLarge
	}
}

func interactionGrade(m common.MeetingRecord, a common.Attendee, t *identityTable) common.InteractionGrade {
	if a.Role == common.RoleResource {
		return common.GradePassive
	}

	p := t.person(a.PersonID)
	isSelf := p != nil && p.IsSelf

	switch m.Kind {
	case common.MeetingOneOnOne:
		return common.GradeActive
	case common.MeetingSmallCollaboration:
		return common.GradeActive
	case common.MeetingLarge, common.MeetingBroadcast, common.MeetingAutomated:
		if isSelf {
			return common.GradeActive
		}
		return common.GradePassive
	default:
		if isSelf {
			return common.GradeActive
		}
		return common.GradeNeutral
	}
}

func organizerAutomated(m common.MeetingRecord, t *identityTable, cfg *resolvedConfig) bool {
	p := t.person(m.OrganizerID)
	if p == nil {
		return false
	}
	for _, email := range p.Emails {
		if matchesAny(cfg.automatedRe, email) {
			return true
		}
	}
	return false
}

func includesSelf(m common.MeetingRecord, t *identityTable) bool {
	for _, a := range m.Attendees {
		if p := t.person(a.PersonID); p != nil && p.IsSelf {
			return true
		}
	}
	return false
}
