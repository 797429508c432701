package schedule

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"medcrawl/pkg/config"
	"medcrawl/pkg/models"
	"medcrawl/pkg/parse"
	"medcrawl/pkg/store"
	"medcrawl/pkg/utils"
)

// DetailExtractor turns one parsed brand page into its full record.
type DetailExtractor interface {
	Extract(doc *goquery.Document, pageURL string, seed *models.SummaryRecord) models.DetailRecord
}

// DetailSink is the per-item append persistence contract.
type DetailSink interface {
	Append(record *models.DetailRecord) error
}

// SeenIndex answers and records which identities are already durably stored.
type SeenIndex interface {
	IsRecorded(identity string) bool
	MarkPending(identity string) (bool, error)
	UpdateStatus(identity string, entry *store.ItemDBEntry) error
}

// ItemScheduler walks the seed list of brand entries strictly sequentially,
// fetching and appending one detail record at a time. Each item is durably
// committed before the next starts, so a crash loses at most the in-flight
// item; concurrency stays at 1 to minimize load on the source.
type ItemScheduler struct {
	siteKey   string
	fetcher   Fetcher
	extractor DetailExtractor
	sink      DetailSink
	seen      SeenIndex
	log       *logrus.Entry

	interItemDelay time.Duration
}

// NewItemScheduler builds a detail-phase scheduler with the site's effective
// settings.
func NewItemScheduler(siteKey string, siteCfg config.SiteConfig, appCfg *config.AppConfig, fetcher Fetcher, extractor DetailExtractor, sink DetailSink, seen SeenIndex, logger *logrus.Entry) *ItemScheduler {
	return &ItemScheduler{
		siteKey:        siteKey,
		fetcher:        fetcher,
		extractor:      extractor,
		sink:           sink,
		seen:           seen,
		log:            logger,
		interItemDelay: config.GetEffectiveInterItemDelay(siteCfg, *appCfg),
	}
}

// Run processes every seed entry. An empty seed list is the one fatal
// condition: there is no unit of work to attempt. Everything else (fetch
// failures, extraction failures, write failures) is recorded per item and the
// run continues.
func (s *ItemScheduler) Run(ctx context.Context, seeds []models.SummaryRecord) (*RunReport, error) {
	if len(seeds) == 0 {
		return nil, utils.WrapErrorf(utils.ErrSeedMissing, "no seed records for site %s", s.siteKey)
	}

	report := NewRunReport(s.siteKey, "details")
	defer report.Finish()
	outcome := models.BatchOutcome{RangeStart: 1, RangeEnd: len(seeds), Failures: []models.FailureEntry{}}

	inRun := make(map[string]struct{}, len(seeds))
	for i := range seeds {
		seed := seeds[i]

		if err := ctx.Err(); err != nil {
			report.AddOutcome(outcome)
			return report, err
		}

		identity, _, err := parse.ParseAndNormalize(seed.SourceURL)
		if err != nil || identity == "" {
			s.log.Warnf("Seed entry %q has unusable source URL %q, skipping", seed.PrimaryName, seed.SourceURL)
			outcome.Failures = append(outcome.Failures, models.FailureEntry{
				Identity: seed.SourceURL,
				Reason:   "unusable source URL",
				Category: utils.CategorizeError(utils.ErrParsing),
			})
			continue
		}
		itemLog := s.log.WithField("identity", identity)

		// Listing pages can repeat an entry; duplicates are normal input
		if _, dup := inRun[identity]; dup {
			itemLog.Debug("Duplicate seed within run, skipping")
			continue
		}
		inRun[identity] = struct{}{}

		if s.seen.IsRecorded(identity) {
			itemLog.Debug("Already recorded, skipping")
			continue
		}
		if _, err := s.seen.MarkPending(identity); err != nil {
			itemLog.Warnf("Failed to mark pending, continuing anyway: %v", err)
		}

		if s.processItem(ctx, identity, &seed, inRun, &outcome, itemLog) {
			outcome.ItemsSaved++
		}

		if i < len(seeds)-1 && s.interItemDelay > 0 {
			select {
			case <-time.After(s.interItemDelay):
			case <-ctx.Done():
				report.AddOutcome(outcome)
				return report, ctx.Err()
			}
		}
	}

	report.AddOutcome(outcome)
	s.log.WithFields(logrus.Fields{
		"saved":  outcome.ItemsSaved,
		"failed": len(outcome.Failures),
	}).Infof("Detail run complete: saved %d items, failed %d", outcome.ItemsSaved, len(outcome.Failures))
	return report, nil
}

// processItem runs fetch, extract, and append for one identity, recording
// the terminal status in the seen index. Returns true when the record was
// durably appended.
func (s *ItemScheduler) processItem(ctx context.Context, identity string, seed *models.SummaryRecord, inRun map[string]struct{}, outcome *models.BatchOutcome, itemLog *logrus.Entry) bool {
	result := s.fetcher.FetchPage(ctx, identity, seed.SourceURL)
	if !result.OK() {
		s.recordFailure(identity, result.Reason(), result.Category, outcome, itemLog)
		return false
	}

	record, err := s.safeExtract(result.HTML, result.FinalURL, seed)
	if err != nil {
		s.recordFailure(identity, err.Error(), utils.CategorizeError(err), outcome, itemLog)
		return false
	}

	// Redirects can collapse distinct listing links onto one canonical page,
	// and the record carries the canonical identity (its normalized final
	// URL), not the seed's. When they differ, the canonical identity must
	// also pass the pre-write check, or each alias would append the same
	// record again.
	canonical := record.SourceURL
	aliased := canonical != "" && canonical != identity
	if aliased {
		if _, dup := inRun[canonical]; dup || s.seen.IsRecorded(canonical) {
			itemLog.WithField("canonical", canonical).Info("Redirect target already recorded, skipping append")
			s.markRecorded(identity, record.RecordID, itemLog)
			return false
		}
	}

	if err := s.sink.Append(record); err != nil {
		s.recordFailure(identity, err.Error(), utils.CategorizeError(err), outcome, itemLog)
		return false
	}

	s.markRecorded(identity, record.RecordID, itemLog)
	if aliased {
		inRun[canonical] = struct{}{}
		s.markRecorded(canonical, record.RecordID, itemLog)
	}
	return true
}

func (s *ItemScheduler) markRecorded(identity, recordID string, itemLog *logrus.Entry) {
	if err := s.seen.UpdateStatus(identity, &store.ItemDBEntry{Status: store.ItemStatusRecorded, RecordID: recordID}); err != nil {
		// The record is durable; the index will reconcile from the log on
		// the next startup.
		itemLog.Warnf("Failed to mark %s recorded: %v", identity, err)
	}
}

func (s *ItemScheduler) recordFailure(identity, reason, category string, outcome *models.BatchOutcome, itemLog *logrus.Entry) {
	itemLog.WithField("category", category).Warnf("Item failed: %s", reason)
	outcome.Failures = append(outcome.Failures, models.FailureEntry{Identity: identity, Reason: reason, Category: category})
	if err := s.seen.UpdateStatus(identity, &store.ItemDBEntry{Status: store.ItemStatusFailed, Reason: reason, Category: category}); err != nil {
		itemLog.Warnf("Failed to mark failed: %v", err)
	}
}

// safeExtract parses and extracts one detail page, converting a panic from
// unexpected markup into an ordinary per-item failure.
func (s *ItemScheduler) safeExtract(html, pageURL string, seed *models.SummaryRecord) (record *models.DetailRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			record = nil
			err = utils.WrapErrorf(utils.ErrParsing, "extraction panic on %s: %v", pageURL, r)
		}
	}()

	doc, derr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if derr != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "parsing %s: %v", pageURL, derr)
	}
	extracted := s.extractor.Extract(doc, pageURL, seed)
	return &extracted, nil
}
