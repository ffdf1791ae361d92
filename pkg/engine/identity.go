package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/meetpulse/backend/pkg/common"
)

// The identity resolver canonicalizes every raw participant reference into a
// Person. Merging is email-first; name merges additionally require
// co-occurrence evidence so that identical names across the company do not
// collapse into one identity.

type aliasInfo struct {
	key       string
	email     string
	nameKey   string
	names     map[string]int
	kinds     map[string]struct{}
	count     int
	firstIdx  int
	firstSeen time.Time
	lastSeen  time.Time
	records   map[string]struct{}
	coAliases map[string]struct{}
	// oneOnOne marks aliases seen in a two-person meeting with self. Bulk
	// senders never have it; that is what separates a busy human from a
	// distribution list.
	oneOnOne bool
}

type identityTable struct {
	persons    []*common.Person
	byID       map[string]*common.Person
	byAlias    map[string]string
	selfID     string
	ambiguous  []string
	unresolved int
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeName collapses internal whitespace without any trimming that could
// lose Unicode content. The lowered form is only a merge key; the verbatim
// spelling is preserved for display.
func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func aliasKeyFor(p normParticipant) string {
	if e := normalizeEmail(p.email); e != "" {
		return "e:" + e
	}
	if n := normalizeName(p.name); n != "" {
		return "n:" + n
	}
	return ""
}

type aliasCollector struct {
	aliases    map[string]*aliasInfo
	nextIdx    int
	unresolved int
}

func newAliasCollector() *aliasCollector {
	return &aliasCollector{aliases: make(map[string]*aliasInfo)}
}

func (c *aliasCollector) observe(p normParticipant, recordKey string, at time.Time) *aliasInfo {
	key := aliasKeyFor(p)
	if key == "" {
		c.unresolved++
		return nil
	}

	a, ok := c.aliases[key]
	if !ok {
		a = &aliasInfo{
			key:       key,
			email:     normalizeEmail(p.email),
			nameKey:   normalizeName(p.name),
			names:     make(map[string]int),
			kinds:     make(map[string]struct{}),
			firstIdx:  c.nextIdx,
			records:   make(map[string]struct{}),
			coAliases: make(map[string]struct{}),
		}
		c.nextIdx++
		c.aliases[key] = a
	}

	a.count++
	if name := strings.TrimSpace(p.name); name != "" {
		a.names[name]++
		if a.nameKey == "" {
			a.nameKey = normalizeName(p.name)
		}
	}
	if p.kind != "" {
		a.kinds[p.kind] = struct{}{}
	}
	if !at.IsZero() {
		if a.firstSeen.IsZero() || at.Before(a.firstSeen) {
			a.firstSeen = at
		}
		if at.After(a.lastSeen) {
			a.lastSeen = at
		}
	}
	if recordKey != "" {
		a.records[recordKey] = struct{}{}
	}
	return a
}

func (c *aliasCollector) linkCoOccurrence(keys []string) {
	for _, k := range keys {
		a := c.aliases[k]
		if a == nil {
			continue
		}
		for _, other := range keys {
			if other != k {
				a.coAliases[other] = struct{}{}
			}
		}
	}
}

// resolveIdentities builds the person table from all normalized records.
func resolveIdentities(n *normalized, cfg *resolvedConfig) *identityTable {
	c := newAliasCollector()

	for _, m := range n.meetings {
		recordKey := "m:" + m.id
		var keys []string
		for _, a := range m.attendees {
			if info := c.observe(a.normParticipant, recordKey, m.start); info != nil {
				keys = append(keys, info.key)
			}
		}
		c.linkCoOccurrence(keys)
		c.markOneOnOneEvidence(m, cfg)
	}

	for _, ch := range n.chats {
		recordKey := "c:" + ch.id
		lastMsg := time.Time{}
		for _, msg := range ch.messages {
			if msg.sentAt.After(lastMsg) {
				lastMsg = msg.sentAt
			}
		}
		var keys []string
		for _, m := range ch.members {
			if info := c.observe(m, recordKey, lastMsg); info != nil {
				keys = append(keys, info.key)
			}
		}
		c.linkCoOccurrence(keys)
		for _, msg := range ch.messages {
			c.observe(normParticipant{email: msg.senderEmail, kind: "user"}, recordKey, msg.sentAt)
		}
	}

	for _, f := range n.shares {
		recordKey := "f:" + f.id
		keys := make([]string, 0, len(f.grantees)+1)
		if info := c.observe(normParticipant{email: f.ownerEmail, kind: "user"}, recordKey, f.lastActivity); info != nil {
			keys = append(keys, info.key)
		}
		for _, g := range f.grantees {
			if info := c.observe(normParticipant{email: g, kind: "user"}, recordKey, f.lastActivity); info != nil {
				keys = append(keys, info.key)
			}
		}
		c.linkCoOccurrence(keys)
	}

	return buildPersonTable(c, cfg)
}

// markOneOnOneEvidence records which aliases share a genuine two-person
// meeting with self.
func (c *aliasCollector) markOneOnOneEvidence(m normMeeting, cfg *resolvedConfig) {
	humans := make(map[string]*aliasInfo)
	includesSelf := false
	for _, a := range m.attendees {
		if a.role == common.RoleResource || a.kind == "room" {
			continue
		}
		info := c.aliases[aliasKeyFor(a.normParticipant)]
		if info == nil {
			continue
		}
		humans[info.key] = info
		if _, ok := cfg.selfEmails[info.email]; ok {
			includesSelf = true
		}
	}
	if len(humans) != 2 || !includesSelf {
		return
	}
	for _, info := range humans {
		info.oneOnOne = true
	}
}

type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) find(k string) string {
	p, ok := u.parent[k]
	if !ok || p == k {
		return k
	}
	root := u.find(p)
	u.parent[k] = root
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Keep the lexicographically smaller key as root for determinism.
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}

func buildPersonTable(c *aliasCollector, cfg *resolvedConfig) *identityTable {
	uf := newUnionFind()

	// Rule 1 is implicit: aliases are keyed by normalized email, so shared
	// emails are already one alias. Rule 2: same display name merges only
	// with co-occurrence evidence (same record, or a shared co-participant).
	byName := make(map[string][]*aliasInfo)
	for _, a := range c.aliases {
		if a.nameKey != "" {
			byName[a.nameKey] = append(byName[a.nameKey], a)
		}
	}

	nameKeys := make([]string, 0, len(byName))
	for k := range byName {
		nameKeys = append(nameKeys, k)
	}
	sort.Strings(nameKeys)

	var ambiguous []string
	for _, nameKey := range nameKeys {
		group := byName[nameKey]
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].key < group[j].key })

		merged := false
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if coOccur(group[i], group[j]) {
					uf.union(group[i].key, group[j].key)
					merged = true
				}
			}
		}
		if !merged && countDistinctEmails(group) > 1 {
			ambiguous = append(ambiguous, displayName(group[0]))
		}
	}

	// Cluster aliases under their roots.
	clusters := make(map[string][]*aliasInfo)
	for key, a := range c.aliases {
		root := uf.find(key)
		clusters[root] = append(clusters[root], a)
	}

	roots := make([]string, 0, len(clusters))
	for root := range clusters {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool {
		return clusterFirstIdx(clusters[roots[i]]) < clusterFirstIdx(clusters[roots[j]])
	})

	t := &identityTable{
		byID:       make(map[string]*common.Person),
		byAlias:    make(map[string]string),
		ambiguous:  ambiguous,
		unresolved: c.unresolved,
	}

	for i, root := range roots {
		members := clusters[root]
		person := assemblePerson(fmt.Sprintf("p%d", i+1), members, cfg)
		t.persons = append(t.persons, person)
		t.byID[person.ID] = person
		for _, a := range members {
			t.byAlias[a.key] = person.ID
		}
		if person.IsSelf && t.selfID == "" {
			t.selfID = person.ID
		}
	}

	return t
}

func assemblePerson(id string, members []*aliasInfo, cfg *resolvedConfig) *common.Person {
	p := &common.Person{ID: id}

	nameCounts := make(map[string]int)
	emailSet := make(map[string]struct{})
	kinds := make(map[string]struct{})
	count := 0
	oneOnOne := false
	var lastSeen time.Time

	for _, a := range members {
		for name, n := range a.names {
			nameCounts[name] += n
		}
		if a.email != "" {
			emailSet[a.email] = struct{}{}
		}
		for k := range a.kinds {
			kinds[k] = struct{}{}
		}
		count += a.count
		oneOnOne = oneOnOne || a.oneOnOne
		if a.lastSeen.After(lastSeen) {
			lastSeen = a.lastSeen
		}
	}

	p.Name = pickCanonicalName(nameCounts)
	p.Emails = sortedKeys(emailSet)
	p.IsUnknownAlias = len(p.Emails) == 0

	for _, e := range p.Emails {
		if _, ok := cfg.selfEmails[e]; ok {
			p.IsSelf = true
			break
		}
	}
	if !p.IsSelf && p.IsUnknownAlias && cfg.selfName != "" && normalizeName(p.Name) == cfg.selfName {
		p.IsSelf = true
	}

	if _, ok := kinds["room"]; ok || matchesAny(cfg.resourceRe, p.Name) {
		p.IsResource = true
	}

	if _, ok := kinds["distributionList"]; ok {
		p.IsNonPerson = true
	}
	if !p.IsSelf && !p.IsNonPerson && count > cfg.bulkInvite && !oneOnOne {
		p.IsNonPerson = true
	}

	if !p.IsSelf && !p.IsResource && !lastSeen.IsZero() {
		silence := max(cfg.stalenessDays, formerEmployeeSilenceDays)
		if cfg.reportTime.Sub(lastSeen) > time.Duration(silence)*24*time.Hour {
			p.IsFormerEmployee = true
		}
	}

	return p
}

func coOccur(a, b *aliasInfo) bool {
	for r := range a.records {
		if _, ok := b.records[r]; ok {
			return true
		}
	}
	for co := range a.coAliases {
		if _, ok := b.coAliases[co]; ok {
			return true
		}
	}
	return false
}

func countDistinctEmails(group []*aliasInfo) int {
	emails := make(map[string]struct{})
	for _, a := range group {
		if a.email != "" {
			emails[a.email] = struct{}{}
		}
	}
	return len(emails)
}

func clusterFirstIdx(members []*aliasInfo) int {
	idx := members[0].firstIdx
	for _, a := range members[1:] {
		if a.firstIdx < idx {
			idx = a.firstIdx
		}
	}
	return idx
}

func displayName(a *aliasInfo) string {
	return pickCanonicalName(a.names)
}

func pickCanonicalName(names map[string]int) string {
	best := ""
	bestCount := -1
	for name, count := range names {
		if count > bestCount || (count == bestCount && name < best) {
			best = name
			bestCount = count
		}
	}
	return best
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (t *identityTable) lookup(p normParticipant) string {
	key := aliasKeyFor(p)
	if key == "" {
		return common.UnknownPersonID
	}
	if id, ok := t.byAlias[key]; ok {
		return id
	}
	return common.UnknownPersonID
}

func (t *identityTable) lookupEmail(email string) string {
	return t.lookup(normParticipant{email: email})
}

func (t *identityTable) person(id string) *common.Person {
	return t.byID[id]
}

func (t *identityTable) isResource(id string) bool {
	p := t.byID[id]
	return p != nil && p.IsResource
}

// rewrite replaces every participant in every normalized record with its
// person id. Records become immutable after this pass.
func (t *identityTable) rewrite(n *normalized) ([]common.MeetingRecord, []common.ChatThread, []common.FileShare) {
	meetings := make([]common.MeetingRecord, 0, len(n.meetings))
	for _, m := range n.meetings {
		meetings = append(meetings, t.rewriteMeeting(m))
	}

	chats := make([]common.ChatThread, 0, len(n.chats))
	for _, ch := range n.chats {
		chats = append(chats, t.rewriteChat(ch))
	}

	shares := make([]common.FileShare, 0, len(n.shares))
	for _, f := range n.shares {
		shares = append(shares, common.FileShare{
			ID:           f.id,
			OwnerID:      t.lookupEmail(f.ownerEmail),
			GranteeIDs:   t.rewriteEmails(f.grantees),
			Scope:        f.scope,
			FirstShared:  f.firstShared,
			LastActivity: f.lastActivity,
		})
	}

	return meetings, chats, shares
}

func (t *identityTable) rewriteMeeting(m normMeeting) common.MeetingRecord {
	out := common.MeetingRecord{
		ID:          m.id,
		Subject:     m.subject,
		Start:       m.start,
		Duration:    m.duration,
		OrganizerID: t.lookup(m.organizer),
		Source:      m.source,
	}

	seen := make(map[string]int)
	for _, a := range m.attendees {
		id := t.lookup(a.normParticipant)
		role := a.role
		if t.isResource(id) {
			role = common.RoleResource
		}
		if idx, ok := seen[id]; ok && id != common.UnknownPersonID {
			// The same person listed under two aliases collapses into one
			// attendee; required wins over optional.
			if role == common.RoleRequired {
				out.Attendees[idx].Role = role
			}
			continue
		}
		seen[id] = len(out.Attendees)
		out.Attendees = append(out.Attendees, common.Attendee{PersonID: id, Role: role})
	}

	for _, a := range out.Attendees {
		if a.Role != common.RoleResource {
			out.Size++
		}
	}

	return out
}

func (t *identityTable) rewriteChat(ch normChat) common.ChatThread {
	out := common.ChatThread{ID: ch.id, Kind: ch.kind}

	seen := make(map[string]struct{})
	for _, m := range ch.members {
		id := t.lookup(m)
		if _, ok := seen[id]; ok && id != common.UnknownPersonID {
			continue
		}
		seen[id] = struct{}{}
		out.MemberIDs = append(out.MemberIDs, id)
	}

	for _, msg := range ch.messages {
		out.Messages = append(out.Messages, common.ChatMessage{
			SenderID:        t.lookupEmail(msg.senderEmail),
			SentAt:          msg.sentAt,
			AttachmentCount: msg.attachments,
		})
	}

	return out
}

func (t *identityTable) rewriteEmails(emails []string) []string {
	out := make([]string, 0, len(emails))
	seen := make(map[string]struct{})
	for _, e := range emails {
		id := t.lookupEmail(e)
		if _, ok := seen[id]; ok && id != common.UnknownPersonID {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
