package engine

import (
	"fmt"
	"sort"

	"github.com/meetpulse/backend/pkg/common"
)

// composeReport turns the scored list into the final report, attaching
// dormancy labels, rationale strings and diagnostics.
func composeReport(scored []scoredPerson, t *identityTable, n *normalized, cfg *resolvedConfig) *common.Report {
	report := &common.Report{
		ReportTime:    cfg.reportTime,
		SelfIdentity:  cfg.self,
		Collaborators: make([]common.RankedCollaborator, 0, len(scored)),
		Diagnostics:   composeDiagnostics(t, n),
	}

	limit := len(scored)
	if cfg.topN > 0 && cfg.topN < limit {
		limit = cfg.topN
	}

	for _, s := range scored[:limit] {
		days := daysSince(s.evidence.last, cfg.reportTime)
		report.Collaborators = append(report.Collaborators, common.RankedCollaborator{
			PersonID:             s.person.ID,
			Name:                 s.person.Name,
			Emails:               s.person.Emails,
			Score:                s.score,
			Evidence:             s.evidence.bundle(),
			TopMeetings:          s.topMeetings,
			Dormancy:             dormancyLabel(days),
			DaysSinceLastContact: days,
			LastContact:          s.evidence.last,
			Rationale:            composeRationale(s.evidence, days),
		})
	}

	return report
}

func composeDiagnostics(t *identityTable, n *normalized) common.Diagnostics {
	d := common.Diagnostics{
		DroppedRecords:         n.dropped,
		UnresolvedAliases:      t.unresolved,
		AmbiguousIdentities:    append([]string(nil), t.ambiguous...),
		FlaggedFormerEmployees: []string{},
		NonPersonParticipants:  []string{},
	}

	for _, p := range t.persons {
		if p.IsFormerEmployee {
			d.FlaggedFormerEmployees = append(d.FlaggedFormerEmployees, diagnosticName(p))
		}
		if p.IsNonPerson && !p.IsResource {
			d.NonPersonParticipants = append(d.NonPersonParticipants, diagnosticName(p))
		}
	}
	sort.Strings(d.FlaggedFormerEmployees)
	sort.Strings(d.NonPersonParticipants)
	sort.Strings(d.AmbiguousIdentities)
	if d.AmbiguousIdentities == nil {
		d.AmbiguousIdentities = []string{}
	}

	return d
}

func diagnosticName(p *common.Person) string {
	if p.Name != "" {
		return p.Name
	}
	if len(p.Emails) > 0 {
		return p.Emails[0]
	}
	return p.ID
}

func composeRationale(pe *personEvidence, days int) []string {
	var out []string

	if pe.oneOnOne > 0 {
		out = append(out, fmt.Sprintf("%d one-on-one %s", pe.oneOnOne, plural(pe.oneOnOne, "meeting", "meetings")))
	}
	if organized := pe.organizedFor + pe.organizedBy; organized > 0 {
		out = append(out, fmt.Sprintf("organized %d %s together", organized, plural(organized, "meeting", "meetings")))
	}
	if pe.small > 0 {
		out = append(out, fmt.Sprintf("%d small working %s", pe.small, plural(pe.small, "session", "sessions")))
	}
	if directDays := len(pe.directDays); directDays > 0 {
		out = append(out, fmt.Sprintf("%d %s with direct chat messages", directDays, plural(directDays, "day", "days")))
	}
	if pe.fileDirect > 0 {
		out = append(out, fmt.Sprintf("%d %s shared directly", pe.fileDirect, plural(pe.fileDirect, "file", "files")))
	}
	if weeks := len(pe.weeks); weeks > 1 {
		out = append(out, fmt.Sprintf("contact across %d distinct weeks", weeks))
	}

	switch {
	case days == 0:
		out = append(out, "last contact today")
	case days == 1:
		out = append(out, "last contact yesterday")
	default:
		out = append(out, fmt.Sprintf("last contact %d days ago", days))
	}

	return out
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
