package schedule

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"medcrawl/pkg/models"
)

// RunReport is the end-of-run summary for one scheduler pass. Failures are
// accumulated here rather than surfaced as process-terminating errors.
type RunReport struct {
	RunID      string    `json:"runId"`
	Site       string    `json:"site"`
	Mode       string    `json:"mode"` // "index" or "details"
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Outcomes   []models.BatchOutcome `json:"outcomes"`
	ItemsSaved int                   `json:"itemsSaved"`
	Failures   []models.FailureEntry `json:"failures"`

	// UnverifiedRanges lists [start, end] page ranges skipped by the
	// empty-batch early exit. Skipped, not confirmed absent.
	UnverifiedRanges [][2]int `json:"unverifiedRanges,omitempty"`
}

// NewRunReport starts a report for one scheduler pass
func NewRunReport(site, mode string) *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		Site:      site,
		Mode:      mode,
		StartedAt: time.Now().UTC(),
		Outcomes:  []models.BatchOutcome{},
		Failures:  []models.FailureEntry{},
	}
}

// AddOutcome folds one batch's outcome into the report.
func (r *RunReport) AddOutcome(outcome models.BatchOutcome) {
	r.Outcomes = append(r.Outcomes, outcome)
	r.ItemsSaved += outcome.ItemsSaved
	r.Failures = append(r.Failures, outcome.Failures...)
	if outcome.Unverified {
		r.UnverifiedRanges = append(r.UnverifiedRanges, [2]int{outcome.RangeStart, outcome.RangeEnd})
	}
}

// Finish stamps the end time.
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now().UTC()
}

// FailedIdentities returns the deduplicated, sorted identities that failed
// after exhausting retries. Index-mode identities are page numbers, so
// numeric values sort numerically ("2" before "10") and ahead of any
// non-numeric identities, which sort lexically among themselves.
func (r *RunReport) FailedIdentities() []string {
	seen := make(map[string]struct{}, len(r.Failures))
	identities := make([]string, 0, len(r.Failures))
	for _, failure := range r.Failures {
		if _, dup := seen[failure.Identity]; dup {
			continue
		}
		seen[failure.Identity] = struct{}{}
		identities = append(identities, failure.Identity)
	}
	sort.Slice(identities, func(i, j int) bool {
		a, aerr := strconv.Atoi(identities[i])
		b, berr := strconv.Atoi(identities[j])
		switch {
		case aerr == nil && berr == nil:
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		default:
			return identities[i] < identities[j]
		}
	})
	return identities
}
