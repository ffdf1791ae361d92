package common

import "time"

// Person is the canonical identity for one participant across all record
// streams. The identity resolver builds exactly one Person per distinct real
// identity; every raw participant reference in every record is replaced by the
// Person's ID before any downstream stage runs.
//
// The self Person and Persons flagged as resources are never emitted in the
// final report.
type Person struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Emails           []string `json:"emails"`
	IsSelf           bool     `json:"is_self"`
	IsResource       bool     `json:"is_resource"`
	IsFormerEmployee bool     `json:"is_former_employee"`
	IsUnknownAlias   bool     `json:"is_unknown_alias"`
	IsNonPerson      bool     `json:"is_non_person"`
}

// UnknownPersonID is the reserved identity for participants that carry neither
// a usable name nor an email address. Unknown participants are counted in
// diagnostics and never ranked.
const UnknownPersonID = "unknown"

// AttendeeRole describes how a participant was invited to a meeting.
type AttendeeRole string

const (
	RoleRequired AttendeeRole = "required"
	RoleOptional AttendeeRole = "optional"
	RoleResource AttendeeRole = "resource"
)

// MeetingKind is the noise classifier's verdict for a whole meeting.
type MeetingKind string

const (
	MeetingOneOnOne           MeetingKind = "oneOnOne"
	MeetingSmallCollaboration MeetingKind = "smallCollaboration"
	MeetingTeam               MeetingKind = "teamMeeting"
	MeetingLarge              MeetingKind = "largeMeeting"
	MeetingBroadcast          MeetingKind = "broadcast"
	MeetingAutomated          MeetingKind = "automated"
)

// InteractionGrade describes how a single attendee related to a single
// meeting. Sharing a broadcast room is passive; a 1:1 or a small working
// session is active.
type InteractionGrade string

const (
	GradeActive  InteractionGrade = "active"
	GradePassive InteractionGrade = "passive"
	GradeNeutral InteractionGrade = "neutral"
)

// Attendee is a resolved meeting participant. Grade is filled in by the noise
// classifier, after which the record is immutable.
type Attendee struct {
	PersonID string           `json:"person_id"`
	Role     AttendeeRole     `json:"role"`
	Grade    InteractionGrade `json:"grade,omitempty"`
}

// MeetingRecord is a normalized calendar event. Size counts attendees minus
// resources. The organizer always appears in the attendee list.
type MeetingRecord struct {
	ID          string        `json:"id"`
	Subject     string        `json:"subject"`
	Start       time.Time     `json:"start"`
	Duration    time.Duration `json:"duration"`
	OrganizerID string        `json:"organizer_id"`
	Attendees   []Attendee    `json:"attendees"`
	Size        int           `json:"size"`
	Source      string        `json:"source,omitempty"`
	Kind        MeetingKind   `json:"kind,omitempty"`
}

// ChatKind mirrors the thread types delivered by the chat source.
type ChatKind string

const (
	ChatOneOnOne ChatKind = "oneOnOne"
	ChatGroup    ChatKind = "group"
	ChatMeeting  ChatKind = "meeting"
)

// ChatMessage is a single normalized message inside a thread.
type ChatMessage struct {
	SenderID        string    `json:"sender_id"`
	SentAt          time.Time `json:"sent_at"`
	AttachmentCount int       `json:"attachment_count"`
}

// ChatThread is a normalized chat thread with its resolved members and
// messages. Message-day counting happens in the evidence aggregator.
type ChatThread struct {
	ID        string        `json:"id"`
	Kind      ChatKind      `json:"kind"`
	MemberIDs []string      `json:"member_ids"`
	Messages  []ChatMessage `json:"messages"`
}

// ShareScope buckets a file share by how many people received it.
type ShareScope string

const (
	ShareDirect     ShareScope = "direct"
	ShareSmallGroup ShareScope = "smallGroup"
	ShareLargeGroup ShareScope = "largeGroup"
)

// FileShare is a normalized document-sharing record.
type FileShare struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	GranteeIDs   []string   `json:"grantee_ids"`
	Scope        ShareScope `json:"scope"`
	FirstShared  time.Time  `json:"first_shared"`
	LastActivity time.Time  `json:"last_activity"`
}

// EvidenceBundle is the full set of counters the scoring engine consumes for
// one non-self person. Counters add, contact instants take min/max and the
// distinct-week set unions, so bundles built on shards of the input merge into
// the same bundle the whole input produces.
type EvidenceBundle struct {
	OneOnOneMeetings     int       `json:"one_on_one_meetings"`
	SmallMeetings        int       `json:"small_meetings"`
	TeamMeetings         int       `json:"team_meetings"`
	LargeMeetings        int       `json:"large_meetings"`
	BroadcastMeetings    int       `json:"broadcast_meetings"`
	OrganizedForPeer     int       `json:"organized_for_peer"`
	OrganizedByPeer      int       `json:"organized_by_peer"`
	MeetingCount         int       `json:"meeting_count"`
	MeetingSizeSum       int       `json:"meeting_size_sum"`
	DistinctWeeks        []string  `json:"distinct_weeks"`
	ChatDirectDays       int       `json:"chat_direct_days"`
	ChatGroupDays        float64   `json:"chat_group_days"`
	DirectAttachments    int       `json:"direct_attachments"`
	GroupAttachments     int       `json:"group_attachments"`
	DirectFileShares     int       `json:"direct_file_shares"`
	SmallGroupFileShares int       `json:"small_group_file_shares"`
	LargeGroupFileShares int       `json:"large_group_file_shares"`
	FirstContact         time.Time `json:"first_contact"`
	LastContact          time.Time `json:"last_contact"`
}

// Score is the fused importance score with its per-signal breakdown and the
// audit trail of rules that fired while computing it.
type Score struct {
	Total        float64            `json:"total"`
	Subtotals    map[string]float64 `json:"subtotals"`
	AppliedRules []string           `json:"applied_rules"`
}

// TopMeeting names one of the meetings that contributed most to a person's
// score.
type TopMeeting struct {
	MeetingID    string  `json:"meeting_id"`
	Subject      string  `json:"subject"`
	Contribution float64 `json:"contribution"`
}

// DormancyLabel classifies how long ago the last contact with a person was.
type DormancyLabel string

const (
	DormancyActive   DormancyLabel = "active"
	DormancyCooling  DormancyLabel = "cooling"
	DormancyDormant  DormancyLabel = "dormant"
	DormancyHighRisk DormancyLabel = "highRiskDormant"
)

// RankedCollaborator is one entry of the final report: a person together with
// their evidence, score, dormancy label and human-readable rationale.
type RankedCollaborator struct {
	PersonID             string         `json:"person_id"`
	Name                 string         `json:"name"`
	Emails               []string       `json:"emails"`
	Score                Score          `json:"score"`
	Evidence             EvidenceBundle `json:"evidence"`
	TopMeetings          []TopMeeting   `json:"top_meetings,omitempty"`
	Dormancy             DormancyLabel  `json:"dormancy"`
	DaysSinceLastContact int            `json:"days_since_last_contact"`
	LastContact          time.Time      `json:"last_contact_utc"`
	Rationale            []string       `json:"rationale"`
}

// DroppedRecords counts malformed input records per stream. Dropping is the
// only reaction to bad data; the engine never fails on it.
type DroppedRecords struct {
	Meetings   int `json:"meetings"`
	Chats      int `json:"chats"`
	FileShares int `json:"file_shares"`
}

// Diagnostics carries everything the engine noticed about input quality
// without affecting the ranking itself.
type Diagnostics struct {
	DroppedRecords         DroppedRecords `json:"dropped_records"`
	UnresolvedAliases      int            `json:"unresolved_aliases"`
	AmbiguousIdentities    []string       `json:"ambiguous_identities"`
	FlaggedFormerEmployees []string       `json:"flagged_former_employees"`
	NonPersonParticipants  []string       `json:"non_person_participants"`
}

// Identity names the user the report is computed for.
type Identity struct {
	Name   string   `json:"name"`
	Emails []string `json:"emails"`
}

// Report is the engine's final output. Given identical inputs, configuration
// and report time it serializes to identical bytes; anything non-deterministic
// (ids, generation timestamps) is added by callers.
type Report struct {
	ReportTime    time.Time            `json:"report_time"`
	SelfIdentity  Identity             `json:"self_identity"`
	Collaborators []RankedCollaborator `json:"collaborators"`
	Diagnostics   Diagnostics          `json:"diagnostics"`
}
