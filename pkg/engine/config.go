package engine

import (
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator"

	"github.com/meetpulse/backend/pkg/common"
)

// ScoreWeights holds the weight of every scoring signal. The zero value is not
// usable; start from DefaultScoreWeights and override individual fields.
//
// Changing any weight changes the ranking, so deployments that override them
// should treat the override as part of their contract.
type ScoreWeights struct {
	OneOnOneMeeting     float64 `json:"one_on_one_meeting"`
	SmallMeeting        float64 `json:"small_meeting"`
	TeamMeeting         float64 `json:"team_meeting"`
	LargeMeeting        float64 `json:"large_meeting"`
	OrganizedForPeer    float64 `json:"organized_for_peer"`
	OrganizedByPeer     float64 `json:"organized_by_peer"`
	ChatDirectDay       float64 `json:"chat_direct_day"`
	ChatGroupDay        float64 `json:"chat_group_day"`
	DirectFileShare     float64 `json:"direct_file_share"`
	SmallGroupFileShare float64 `json:"small_group_file_share"`
	DistinctWeek        float64 `json:"distinct_week"`
	DistinctWeekCap     int     `json:"distinct_week_cap"`
	// SizePenaltyPer10 is subtracted once per 10 people of average meeting
	// size above SizePenaltyThreshold.
	SizePenaltyPer10   float64 `json:"size_penalty_per_10"`
	SizePenaltyAverage float64 `json:"size_penalty_average"`
}

// DefaultScoreWeights returns the reference weight contract.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		OneOnOneMeeting:     10,
		SmallMeeting:        3,
		TeamMeeting:         0.5,
		LargeMeeting:        0,
		OrganizedForPeer:    5,
		OrganizedByPeer:     3,
		ChatDirectDay:       2,
		ChatGroupDay:        0.25,
		DirectFileShare:     4,
		SmallGroupFileShare: 1,
		DistinctWeek:        1,
		DistinctWeekCap:     26,
		SizePenaltyPer10:    1,
		SizePenaltyAverage:  20,
	}
}

// Config configures an Engine. SelfIdentity is the only required field; every
// other field falls back to its documented default.
type Config struct {
	// SelfIdentity names the user the report is computed for. At least one
	// email is required; identity resolution is email-first.
	SelfIdentity common.Identity `json:"self_identity" validate:"required"`

	// ReportTime anchors recency decay and dormancy. Zero means now (UTC).
	ReportTime time.Time `json:"report_time"`

	// DefaultTimezone is the IANA location used for timestamps that carry no
	// offset. Defaults to UTC.
	DefaultTimezone string `json:"default_timezone"`

	// BroadcastSubjectPatterns mark meetings as broadcasts regardless of
	// size. Invalid patterns are a fatal configuration error.
	BroadcastSubjectPatterns []string `json:"broadcast_subject_patterns"`

	// ResourceNamePatterns flag conference rooms and other bookable
	// resources that arrive without a room alias type.
	ResourceNamePatterns []string `json:"resource_name_patterns"`

	// AutomatedOrganizerPatterns flag service accounts and scheduling bots
	// by organizer email.
	AutomatedOrganizerPatterns []string `json:"automated_organizer_patterns"`

	// BroadcastSizeThreshold is the attendee count above which a meeting is
	// a broadcast. Default 100.
	BroadcastSizeThreshold int `json:"broadcast_size_threshold" validate:"gte=0"`

	// BulkInviteThreshold is the raw record count above which a participant
	// with no 1:1 evidence is treated as a non-person (mailing list, bulk
	// sender). Default 50.
	BulkInviteThreshold int `json:"bulk_invite_threshold" validate:"gte=0"`

	// StalenessWindowDays controls the former-employee flag. Default 180.
	StalenessWindowDays int `json:"staleness_window_days" validate:"gte=0"`

	// RecencyHalfLifeDays is the decay constant: contributions are scaled by
	// exp(-ageDays/halflife). Default 120.
	RecencyHalfLifeDays float64 `json:"recency_half_life_days" validate:"gte=0"`

	// Weights overrides DefaultScoreWeights when non-nil.
	Weights *ScoreWeights `json:"score_weights"`

	// TopN caps the number of collaborators in the report. Zero means no cap.
	TopN int `json:"top_n" validate:"gte=0"`

	// ShardCount parallelizes evidence aggregation. Zero or one means a
	// single pass; the result is identical either way because shard merges
	// are associative.
	ShardCount int `json:"shard_count" validate:"gte=0"`
}

// DefaultBroadcastSubjectPatterns matches the informational series most
// tenants run: all-hands, learning series, office hours.
func DefaultBroadcastSubjectPatterns() []string {
	return []string{`(?i)all.?hands`, `(?i)learning series`, `(?i)office hours`}
}

// DefaultResourceNamePatterns matches room-style names such as "Build99/1234"
// or anything carrying an explicit room marker.
func DefaultResourceNamePatterns() []string {
	return []string{`[A-Za-z]+\d+/\d+$`, `(?i)\b(conf(erence)? )?room\b`}
}

// DefaultAutomatedOrganizerPatterns matches common service-account mailboxes.
func DefaultAutomatedOrganizerPatterns() []string {
	return []string{`(?i)^no-?reply`, `(?i)^svc[-._]`, `(?i)scheduler`, `(?i)bot@`}
}

const (
	defaultBroadcastSizeThreshold = 100
	defaultBulkInviteThreshold    = 50
	defaultStalenessWindowDays    = 180
	defaultRecencyHalfLifeDays    = 120
	// formerEmployeeSilenceDays is the hard floor on the former-employee
	// rule: an identity referenced inside this window is never flagged.
	formerEmployeeSilenceDays = 180
)

var validate = validator.New()

// resolvedConfig is the validated, compiled form of Config the pipeline runs
// on. It is built once in NewEngine and read-only afterwards.
type resolvedConfig struct {
	self        common.Identity
	selfEmails  map[string]struct{}
	selfName    string
	reportTime  time.Time
	location    *time.Location
	broadcastRe []*regexp.Regexp
	resourceRe  []*regexp.Regexp
	automatedRe []*regexp.Regexp

	broadcastSize int
	bulkInvite    int
	stalenessDays int
	halfLifeDays  float64
	weights       ScoreWeights
	topN          int
	shardCount    int
}

func resolveConfig(cfg Config) (*resolvedConfig, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if len(cfg.SelfIdentity.Emails) == 0 {
		return nil, fmt.Errorf("invalid engine config: self_identity requires at least one email")
	}

	rc := &resolvedConfig{
		self:          cfg.SelfIdentity,
		selfEmails:    make(map[string]struct{}, len(cfg.SelfIdentity.Emails)),
		selfName:      normalizeName(cfg.SelfIdentity.Name),
		reportTime:    cfg.ReportTime,
		broadcastSize: cfg.BroadcastSizeThreshold,
		bulkInvite:    cfg.BulkInviteThreshold,
		stalenessDays: cfg.StalenessWindowDays,
		halfLifeDays:  cfg.RecencyHalfLifeDays,
		weights:       DefaultScoreWeights(),
		topN:          cfg.TopN,
		shardCount:    cfg.ShardCount,
	}

	for _, email := range cfg.SelfIdentity.Emails {
		if e := normalizeEmail(email); e != "" {
			rc.selfEmails[e] = struct{}{}
		}
	}
	if len(rc.selfEmails) == 0 {
		return nil, fmt.Errorf("invalid engine config: self_identity emails are empty after normalization")
	}

	if rc.reportTime.IsZero() {
		rc.reportTime = time.Now().UTC()
	}
	rc.reportTime = rc.reportTime.UTC()

	loc := time.UTC
	if cfg.DefaultTimezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("invalid engine config: default_timezone: %w", err)
		}
	}
	rc.location = loc

	var err error
	if rc.broadcastRe, err = compilePatterns(cfg.BroadcastSubjectPatterns, DefaultBroadcastSubjectPatterns()); err != nil {
		return nil, fmt.Errorf("invalid engine config: broadcast_subject_patterns: %w", err)
	}
	if rc.resourceRe, err = compilePatterns(cfg.ResourceNamePatterns, DefaultResourceNamePatterns()); err != nil {
		return nil, fmt.Errorf("invalid engine config: resource_name_patterns: %w", err)
	}
	if rc.automatedRe, err = compilePatterns(cfg.AutomatedOrganizerPatterns, DefaultAutomatedOrganizerPatterns()); err != nil {
		return nil, fmt.Errorf("invalid engine config: automated_organizer_patterns: %w", err)
	}

	if rc.broadcastSize == 0 {
		rc.broadcastSize = defaultBroadcastSizeThreshold
	}
	if rc.bulkInvite == 0 {
		rc.bulkInvite = defaultBulkInviteThreshold
	}
	if rc.stalenessDays == 0 {
		rc.stalenessDays = defaultStalenessWindowDays
	}
	if rc.halfLifeDays == 0 {
		rc.halfLifeDays = defaultRecencyHalfLifeDays
	}
	if cfg.Weights != nil {
		rc.weights = *cfg.Weights
	}
	if rc.shardCount < 1 {
		rc.shardCount = 1
	}

	return rc, nil
}

func compilePatterns(patterns, fallback []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		patterns = fallback
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	if s == "" {
		return false
	}
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
