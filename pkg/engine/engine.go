package engine

import (
	"context"
	"fmt"

	"github.com/meetpulse/backend/pkg/common"
	"github.com/meetpulse/backend/pkg/logger"
)

// Engine is the main client for building collaboration reports. It holds the
// resolved configuration and is safe for concurrent use; every call to
// BuildReport is independent.
//
// An Engine should be created using NewEngine.
type Engine struct {
	cfg *resolvedConfig
}

// NewEngine validates and resolves the given configuration and returns an
// engine bound to it. Configuration problems (missing self identity, invalid
// patterns, bad thresholds) are the only fatal error class; malformed input
// records later are dropped and reported, never returned as errors.
//
// Example:
//
//	eng, err := engine.NewEngine(engine.Config{
//		SelfIdentity: common.Identity{Emails: []string{"me@corp.example"}},
//		ReportTime:   time.Now().UTC(),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Returns a pointer to Engine and an error if resolution fails.
func NewEngine(cfg Config) (*Engine, error) {
	resolved, err := resolveConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config: %w", err)
	}
	return &Engine{cfg: resolved}, nil
}

// BuildReport runs the full pipeline over the raw input: normalize, resolve
// identities, classify meetings, aggregate evidence, score and compose. The
// output is deterministic for a fixed (input, config, report time) triple.
func (e *Engine) BuildReport(ctx context.Context, in Input) (*common.Report, error) {
	logger.Info("[Engine] Building report",
		"meetings", len(in.Meetings),
		"chats", len(in.Chats),
		"file_shares", len(in.FileShares),
	)

	n := normalizeInput(in, e.cfg.location)
	logger.Debug("[Engine] Input normalized",
		"dropped_meetings", n.dropped.Meetings,
		"dropped_chats", n.dropped.Chats,
		"dropped_file_shares", n.dropped.FileShares,
	)

	table := resolveIdentities(n, e.cfg)
	logger.Debug("[Engine] Identities resolved", "persons", len(table.persons))

	meetings, chats, shares := table.rewrite(n)
	meetings = classifyMeetings(meetings, table, e.cfg)

	ev, err := aggregateEvidence(ctx, meetings, chats, shares, table, e.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate evidence: %w", err)
	}

	scored := scoreCollaborators(ev, table, e.cfg)
	report := composeReport(scored, table, n, e.cfg)

	logger.Info("[Engine] Report built", "collaborators", len(report.Collaborators))

	return report, nil
}
