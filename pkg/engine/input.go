package engine

// ParticipantInput is a raw participant reference as delivered by a source
// fetcher. Kind is one of user, room, distributionList, external, unknown.
type ParticipantInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Kind  string `json:"kind"`
}

// AttendeeInput is a raw meeting attendee.
type AttendeeInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Kind     string `json:"kind"`
	Response string `json:"response"`
	Optional bool   `json:"optional"`
}

// MeetingInput is a raw calendar event. StartUTC and EndUTC are ISO 8601
// strings; values without an offset are read in the configured default
// timezone.
type MeetingInput struct {
	ID        string           `json:"id"`
	Subject   string           `json:"subject"`
	StartUTC  string           `json:"start_utc"`
	EndUTC    string           `json:"end_utc"`
	Organizer ParticipantInput `json:"organizer"`
	Attendees []AttendeeInput  `json:"attendees"`
	Source    string           `json:"source"`
}

// ChatMemberInput is a raw chat thread member.
type ChatMemberInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ChatMessageInput is a raw chat message.
type ChatMessageInput struct {
	SenderEmail     string `json:"sender_email"`
	SentUTC         string `json:"sent_utc"`
	AttachmentCount int    `json:"attachment_count"`
}

// ChatInput is a raw chat thread. Kind is oneOnOne, group or meeting.
type ChatInput struct {
	ThreadID string             `json:"thread_id"`
	Kind     string             `json:"kind"`
	Members  []ChatMemberInput  `json:"members"`
	Messages []ChatMessageInput `json:"messages"`
}

// FileShareInput is a raw document-sharing record. Scope may be empty, in
// which case it is derived from the grantee count.
type FileShareInput struct {
	FileID          string   `json:"file_id"`
	OwnerEmail      string   `json:"owner_email"`
	Grantees        []string `json:"grantees"`
	FirstSharedUTC  string   `json:"first_shared_utc"`
	LastActivityUTC string   `json:"last_activity_utc"`
	Scope           string   `json:"scope"`
}

// Input is everything a single engine run consumes.
type Input struct {
	Meetings   []MeetingInput   `json:"meetings"`
	Chats      []ChatInput      `json:"chats"`
	FileShares []FileShareInput `json:"file_shares"`
}
