package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/meetpulse/backend/pkg/common"
)

// Subtotal keys of the per-signal score breakdown.
const (
	sigOneOnOne      = "one_on_one"
	sigSmallMeetings = "small_meetings"
	sigTeamMeetings  = "team_meetings"
	sigOrganizedFor  = "organized_for_peer"
	sigOrganizedBy   = "organized_by_peer"
	sigChatDirect    = "chat_direct"
	sigChatGroup     = "chat_group"
	sigFilesDirect   = "files_direct"
	sigFilesSmall    = "files_small_group"
	sigDistinctWeeks = "distinct_weeks"
	sigSizePenalty   = "size_penalty"
)

// signalOrder fixes the summation order of the subtotals. Float addition is
// not associative, so iterating the map directly would let the total drift
// between runs of the same input.
var signalOrder = []string{
	sigOneOnOne,
	sigSmallMeetings,
	sigTeamMeetings,
	sigOrganizedFor,
	sigOrganizedBy,
	sigChatDirect,
	sigChatGroup,
	sigFilesDirect,
	sigFilesSmall,
	sigDistinctWeeks,
	sigSizePenalty,
}

type scoredPerson struct {
	person      *common.Person
	evidence    *personEvidence
	score       common.Score
	topMeetings []common.TopMeeting
}

// scoreCollaborators fuses evidence into ranked scores. Only persons passing
// the genuine-interaction gate are scored; self, resources, non-persons and
// former employees never make it in.
func scoreCollaborators(ev evidenceMap, t *identityTable, cfg *resolvedConfig) []scoredPerson {
	var out []scoredPerson

	for _, p := range t.persons {
		if p.IsSelf || p.IsResource || p.IsNonPerson || p.IsFormerEmployee {
			continue
		}
		if p.ID == common.UnknownPersonID {
			continue
		}
		pe, ok := ev[p.ID]
		if !ok {
			continue
		}
		gateRule, pass := passesGate(pe)
		if !pass {
			continue
		}

		score, top := scoreOne(pe, cfg, gateRule)
		out = append(out, scoredPerson{person: p, evidence: pe, score: score, topMeetings: top})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.score.Total != b.score.Total {
			return a.score.Total > b.score.Total
		}
		if !a.evidence.last.Equal(b.evidence.last) {
			return a.evidence.last.After(b.evidence.last)
		}
		if a.evidence.oneOnOne != b.evidence.oneOnOne {
			return a.evidence.oneOnOne > b.evidence.oneOnOne
		}
		if a.person.Name != b.person.Name {
			return a.person.Name < b.person.Name
		}
		return a.person.ID < b.person.ID
	})

	return out
}

// passesGate implements the genuine-interaction gate: a 1:1 meeting, a mutual
// organization, or repeated small meetings backed by a direct channel. Chat
// alone never qualifies; collaboration is meeting-first.
func passesGate(pe *personEvidence) (string, bool) {
	if pe.oneOnOne >= 1 {
		return "gate: one-on-one meetings", true
	}
	if pe.organizedFor+pe.organizedBy >= 1 {
		return "gate: mutual organization", true
	}
	if pe.small >= 2 && (len(pe.directDays) > 0 || pe.directAttachments > 0 || pe.fileDirect > 0) {
		return "gate: small meetings with direct channel", true
	}
	return "", false
}

func scoreOne(pe *personEvidence, cfg *resolvedConfig, gateRule string) (common.Score, []common.TopMeeting) {
	w := cfg.weights
	subtotals := make(map[string]float64)
	rules := []string{gateRule}

	type meetingAcc struct {
		subject      string
		contribution float64
	}
	meetingContrib := make(map[string]*meetingAcc)

	addEvent := func(key string, weight float64, e scoreEvent) {
		c := weight * decayFactor(e.at, cfg)
		if c == 0 {
			return
		}
		subtotals[key] += c
		if e.meetingID != "" {
			acc, ok := meetingContrib[e.meetingID]
			if !ok {
				acc = &meetingAcc{subject: e.subject}
				meetingContrib[e.meetingID] = acc
			}
			acc.contribution += c
		}
	}

	for _, e := range pe.events {
		switch e.kind {
		case evOneOnOne:
			addEvent(sigOneOnOne, w.OneOnOneMeeting, e)
		case evSmallMeeting:
			addEvent(sigSmallMeetings, w.SmallMeeting, e)
		case evTeamMeeting:
			addEvent(sigTeamMeetings, w.TeamMeeting, e)
		case evOrganizedForPeer:
			addEvent(sigOrganizedFor, w.OrganizedForPeer, e)
		case evOrganizedByPeer:
			addEvent(sigOrganizedBy, w.OrganizedByPeer, e)
		case evDirectFileShare:
			addEvent(sigFilesDirect, w.DirectFileShare, e)
		case evSmallGroupFileShare:
			addEvent(sigFilesSmall, w.SmallGroupFileShare, e)
		}
	}

	for _, day := range sortedDayKeys(pe.directDays) {
		subtotals[sigChatDirect] += w.ChatDirectDay * decayFactor(dayInstant(day), cfg)
	}

	groupDays := make([]string, 0, len(pe.groupDays))
	for day := range pe.groupDays {
		groupDays = append(groupDays, day)
	}
	sort.Strings(groupDays)
	for _, day := range groupDays {
		subtotals[sigChatGroup] += w.ChatGroupDay * pe.groupDays[day] * decayFactor(dayInstant(day), cfg)
	}

	// Distinct weeks: credit the most recent weeks up to the cap, each
	// decayed by the latest contact inside that week.
	type weekContact struct {
		week string
		at   time.Time
	}
	weeks := make([]weekContact, 0, len(pe.weeks))
	for wk, at := range pe.weeks {
		weeks = append(weeks, weekContact{week: wk, at: at})
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].week > weeks[j].week })
	if w.DistinctWeekCap > 0 && len(weeks) > w.DistinctWeekCap {
		weeks = weeks[:w.DistinctWeekCap]
		rules = append(rules, fmt.Sprintf("distinct weeks capped at %d", w.DistinctWeekCap))
	}
	for _, wc := range weeks {
		subtotals[sigDistinctWeeks] += w.DistinctWeek * decayFactor(wc.at, cfg)
	}

	if pe.meetingCount > 0 {
		avg := float64(pe.meetingSizeSum) / float64(pe.meetingCount)
		if avg > w.SizePenaltyAverage {
			penalty := -w.SizePenaltyPer10 * (avg - w.SizePenaltyAverage) / 10
			subtotals[sigSizePenalty] = penalty
			rules = append(rules, fmt.Sprintf("size penalty: average meeting size %.1f", avg))
		}
	}

	total := 0.0
	for _, key := range signalOrder {
		total += subtotals[key]
	}

	top := make([]common.TopMeeting, 0, len(meetingContrib))
	for id, acc := range meetingContrib {
		top = append(top, common.TopMeeting{MeetingID: id, Subject: acc.subject, Contribution: acc.contribution})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Contribution != top[j].Contribution {
			return top[i].Contribution > top[j].Contribution
		}
		return top[i].MeetingID < top[j].MeetingID
	})
	if len(top) > 3 {
		top = top[:3]
	}

	return common.Score{Total: total, Subtotals: subtotals, AppliedRules: rules}, top
}

// decayFactor down-weights a contribution by the age of its record:
// exp(-ageDays/halflife).
func decayFactor(at time.Time, cfg *resolvedConfig) float64 {
	if at.IsZero() {
		return 1
	}
	ageDays := cfg.reportTime.Sub(at).Hours() / 24
	if ageDays <= 0 {
		return 1
	}
	return math.Exp(-ageDays / cfg.halfLifeDays)
}

func dayInstant(day string) time.Time {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func sortedDayKeys(set map[string]struct{}) []string {
	days := make([]string, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}
