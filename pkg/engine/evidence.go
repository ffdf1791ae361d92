package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meetpulse/backend/pkg/common"
)

// The evidence aggregator folds every record touching a person into that
// person's counters. All operations are associative: counters add, contact
// instants take min/max and day/week sets union, so aggregating shards of the
// input and merging gives the same result as one pass over the union.

type eventKind int

const (
	evOneOnOne eventKind = iota
	evSmallMeeting
	evTeamMeeting
	evOrganizedForPeer
	evOrganizedByPeer
	evDirectFileShare
	evSmallGroupFileShare
)

// scoreEvent is one decayable scoring contribution tied to a record instant.
type scoreEvent struct {
	kind      eventKind
	at        time.Time
	meetingID string
	subject   string
}

type personEvidence struct {
	oneOnOne       int
	small          int
	team           int
	large          int
	broadcast      int
	organizedFor   int
	organizedBy    int
	meetingCount   int
	meetingSizeSum int

	weeks      map[string]time.Time
	directDays map[string]struct{}
	groupDays  map[string]float64

	directAttachments int
	groupAttachments  int
	fileDirect        int
	fileSmall         int
	fileLarge         int

	first time.Time
	last  time.Time

	events []scoreEvent
}

func newPersonEvidence() *personEvidence {
	return &personEvidence{
		weeks:      make(map[string]time.Time),
		directDays: make(map[string]struct{}),
		groupDays:  make(map[string]float64),
	}
}

func (pe *personEvidence) touch(at time.Time) {
	if at.IsZero() {
		return
	}
	if pe.first.IsZero() || at.Before(pe.first) {
		pe.first = at
	}
	if at.After(pe.last) {
		pe.last = at
	}
	wk := isoWeek(at)
	if cur, ok := pe.weeks[wk]; !ok || at.After(cur) {
		pe.weeks[wk] = at
	}
}

func isoWeek(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

type evidenceMap map[string]*personEvidence

func (m evidenceMap) get(id string) *personEvidence {
	pe, ok := m[id]
	if !ok {
		pe = newPersonEvidence()
		m[id] = pe
	}
	return pe
}

// aggregateEvidence builds the evidence map, optionally sharded across a
// bounded group of goroutines. Scoring must not start until this returns.
func aggregateEvidence(
	ctx context.Context,
	meetings []common.MeetingRecord,
	chats []common.ChatThread,
	shares []common.FileShare,
	t *identityTable,
	cfg *resolvedConfig,
) (evidenceMap, error) {
	if cfg.shardCount <= 1 {
		return aggregateShard(meetings, chats, shares, t, cfg), nil
	}

	shards := make([]evidenceMap, cfg.shardCount)
	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.shardCount)

	for i := 0; i < cfg.shardCount; i++ {
		shard := i
		eg.Go(func() error {
			shards[shard] = aggregateShard(
				shardSlice(meetings, shard, cfg.shardCount),
				shardSlice(chats, shard, cfg.shardCount),
				shardSlice(shares, shard, cfg.shardCount),
				t, cfg,
			)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged := shards[0]
	for _, shard := range shards[1:] {
		mergeEvidenceMaps(merged, shard)
	}
	return merged, nil
}

func shardSlice[T any](items []T, shard, count int) []T {
	size := (len(items) + count - 1) / count
	start := shard * size
	if start >= len(items) {
		return nil
	}
	end := min(start+size, len(items))
	return items[start:end]
}

func aggregateShard(
	meetings []common.MeetingRecord,
	chats []common.ChatThread,
	shares []common.FileShare,
	t *identityTable,
	cfg *resolvedConfig,
) evidenceMap {
	ev := make(evidenceMap)
	for _, m := range meetings {
		aggregateMeeting(ev, m, t)
	}
	for _, ch := range chats {
		aggregateChat(ev, ch, t)
	}
	for _, f := range shares {
		aggregateFileShare(ev, f, t)
	}
	return ev
}

func aggregateMeeting(ev evidenceMap, m common.MeetingRecord, t *identityTable) {
	if !includesSelf(m, t) {
		return
	}

	selfOrganized := false
	if p := t.person(m.OrganizerID); p != nil && p.IsSelf {
		selfOrganized = true
	}

	// Organizing a broadcast or automated meeting is not a pairwise signal;
	// the all-hands organizer gets no mutual-organization credit.
	mutualOrganization := m.Kind != common.MeetingBroadcast && m.Kind != common.MeetingAutomated

	for _, a := range m.Attendees {
		p := t.person(a.PersonID)
		if p == nil || p.IsSelf || p.IsResource {
			continue
		}

		pe := ev.get(p.ID)
		pe.meetingCount++
		pe.meetingSizeSum += m.Size
		pe.touch(m.Start)

		switch m.Kind {
		case common.MeetingOneOnOne:
			pe.oneOnOne++
			pe.events = append(pe.events, scoreEvent{kind: evOneOnOne, at: m.Start, meetingID: m.ID, subject: m.Subject})
		case common.MeetingSmallCollaboration:
			pe.small++
			if a.Grade == common.GradeActive {
				pe.events = append(pe.events, scoreEvent{kind: evSmallMeeting, at: m.Start, meetingID: m.ID, subject: m.Subject})
			}
		case common.MeetingTeam:
			pe.team++
			pe.events = append(pe.events, scoreEvent{kind: evTeamMeeting, at: m.Start, meetingID: m.ID, subject: m.Subject})
		case common.MeetingLarge:
			pe.large++
		default:
			pe.broadcast++
		}

		if selfOrganized && mutualOrganization {
			pe.organizedFor++
			pe.events = append(pe.events, scoreEvent{kind: evOrganizedForPeer, at: m.Start, meetingID: m.ID, subject: m.Subject})
		}
		if mutualOrganization && m.OrganizerID == p.ID {
			pe.organizedBy++
			pe.events = append(pe.events, scoreEvent{kind: evOrganizedByPeer, at: m.Start, meetingID: m.ID, subject: m.Subject})
		}
	}
}

func aggregateChat(ev evidenceMap, ch common.ChatThread, t *identityTable) {
	selfID := ""
	var peers []string
	for _, id := range ch.MemberIDs {
		p := t.person(id)
		if p == nil || p.IsResource {
			continue
		}
		if p.IsSelf {
			selfID = p.ID
			continue
		}
		peers = append(peers, p.ID)
	}
	if selfID == "" || len(peers) == 0 {
		return
	}

	direct := ch.Kind == common.ChatOneOnOne || len(peers) == 1

	if direct {
		pid := peers[0]
		pe := ev.get(pid)
		for _, msg := range ch.Messages {
			pe.directDays[dayKey(msg.SentAt)] = struct{}{}
			pe.touch(msg.SentAt)
			if msg.SenderID == selfID {
				pe.directAttachments += msg.AttachmentCount
			}
		}
		return
	}

	// Large group threads still count, just faintly.
	dayWeight := 1.0
	if len(ch.MemberIDs) > 10 {
		dayWeight = 0.25
	}

	for _, pid := range peers {
		pe := ev.get(pid)
		for _, msg := range ch.Messages {
			if msg.SenderID != selfID && msg.SenderID != pid {
				continue
			}
			day := dayKey(msg.SentAt)
			if cur, ok := pe.groupDays[day]; !ok || dayWeight > cur {
				pe.groupDays[day] = dayWeight
			}
			pe.touch(msg.SentAt)
			if msg.SenderID == selfID {
				pe.groupAttachments += msg.AttachmentCount
			}
		}
	}
}

func aggregateFileShare(ev evidenceMap, f common.FileShare, t *identityTable) {
	owner := t.person(f.OwnerID)
	ownerIsSelf := owner != nil && owner.IsSelf

	selfGranted := false
	for _, id := range f.GranteeIDs {
		if p := t.person(id); p != nil && p.IsSelf {
			selfGranted = true
			break
		}
	}

	var peers []string
	switch {
	case ownerIsSelf:
		for _, id := range f.GranteeIDs {
			p := t.person(id)
			if p == nil || p.IsSelf || p.IsResource {
				continue
			}
			peers = append(peers, p.ID)
		}
	case selfGranted && owner != nil && !owner.IsResource:
		peers = []string{owner.ID}
	default:
		return
	}

	for _, pid := range peers {
		pe := ev.get(pid)
		pe.touch(f.FirstShared)
		pe.touch(f.LastActivity)

		switch f.Scope {
		case common.ShareDirect:
			pe.fileDirect++
			pe.events = append(pe.events, scoreEvent{kind: evDirectFileShare, at: f.FirstShared})
		case common.ShareSmallGroup:
			pe.fileSmall++
			pe.events = append(pe.events, scoreEvent{kind: evSmallGroupFileShare, at: f.FirstShared})
		default:
			pe.fileLarge++
		}
	}
}

// mergeEvidenceMaps folds src into dst. The merge is the associativity
// contract callers rely on when sharding.
func mergeEvidenceMaps(dst, src evidenceMap) {
	for id, srcPE := range src {
		dstPE, ok := dst[id]
		if !ok {
			dst[id] = srcPE
			continue
		}
		mergeEvidence(dstPE, srcPE)
	}
}

func mergeEvidence(dst, src *personEvidence) {
	dst.oneOnOne += src.oneOnOne
	dst.small += src.small
	dst.team += src.team
	dst.large += src.large
	dst.broadcast += src.broadcast
	dst.organizedFor += src.organizedFor
	dst.organizedBy += src.organizedBy
	dst.meetingCount += src.meetingCount
	dst.meetingSizeSum += src.meetingSizeSum

	for wk, at := range src.weeks {
		if cur, ok := dst.weeks[wk]; !ok || at.After(cur) {
			dst.weeks[wk] = at
		}
	}
	for day := range src.directDays {
		dst.directDays[day] = struct{}{}
	}
	for day, w := range src.groupDays {
		if cur, ok := dst.groupDays[day]; !ok || w > cur {
			dst.groupDays[day] = w
		}
	}

	dst.directAttachments += src.directAttachments
	dst.groupAttachments += src.groupAttachments
	dst.fileDirect += src.fileDirect
	dst.fileSmall += src.fileSmall
	dst.fileLarge += src.fileLarge

	if !src.first.IsZero() && (dst.first.IsZero() || src.first.Before(dst.first)) {
		dst.first = src.first
	}
	if src.last.After(dst.last) {
		dst.last = src.last
	}

	dst.events = append(dst.events, src.events...)
}

// bundle converts internal evidence into the report-facing form.
func (pe *personEvidence) bundle() common.EvidenceBundle {
	b := common.EvidenceBundle{
		OneOnOneMeetings:     pe.oneOnOne,
		SmallMeetings:        pe.small,
		TeamMeetings:         pe.team,
		LargeMeetings:        pe.large,
		BroadcastMeetings:    pe.broadcast,
		OrganizedForPeer:     pe.organizedFor,
		OrganizedByPeer:      pe.organizedBy,
		MeetingCount:         pe.meetingCount,
		MeetingSizeSum:       pe.meetingSizeSum,
		ChatDirectDays:       len(pe.directDays),
		DirectAttachments:    pe.directAttachments,
		GroupAttachments:     pe.groupAttachments,
		DirectFileShares:     pe.fileDirect,
		SmallGroupFileShares: pe.fileSmall,
		LargeGroupFileShares: pe.fileLarge,
		FirstContact:         pe.first,
		LastContact:          pe.last,
	}
	for _, w := range pe.groupDays {
		b.ChatGroupDays += w
	}
	for wk := range pe.weeks {
		b.DistinctWeeks = append(b.DistinctWeeks, wk)
	}
	sort.Strings(b.DistinctWeeks)
	return b
}
