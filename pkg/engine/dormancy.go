package engine

import (
	"time"

	"github.com/meetpulse/backend/pkg/common"
)

// Dormancy boundaries in days since last contact.
const (
	dormancyActiveMax  = 30
	dormancyCoolingMax = 60
	dormancyDormantMax = 90
)

// daysSince returns whole days between the last contact and the report time.
func daysSince(last time.Time, reportTime time.Time) int {
	if last.IsZero() || last.After(reportTime) {
		return 0
	}
	return int(reportTime.Sub(last).Hours() / 24)
}

// dormancyLabel classifies days-since-last-contact. The label is orthogonal
// to rank; dormant collaborators still appear in the report.
func dormancyLabel(days int) common.DormancyLabel {
	switch {
	case days <= dormancyActiveMax:
		return common.DormancyActive
	case days <= dormancyCoolingMax:
		return common.DormancyCooling
	case days <= dormancyDormantMax:
		return common.DormancyDormant
	default:
		return common.DormancyHighRisk
	}
}
