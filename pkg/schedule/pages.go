package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"medcrawl/pkg/config"
	"medcrawl/pkg/fetch"
	"medcrawl/pkg/models"
	"medcrawl/pkg/translate"
	"medcrawl/pkg/utils"
)

// Fetcher is the fetch-retry unit as the schedulers consume it.
type Fetcher interface {
	FetchPage(ctx context.Context, identity, targetURL string) fetch.Result
}

// SummaryExtractor turns one parsed index page into listing records.
type SummaryExtractor interface {
	Extract(doc *goquery.Document, pageURL string, originPage int) []models.SummaryRecord
}

// BatchSink is the page-batch persistence contract.
type BatchSink interface {
	HasBatchOutput(rangeStart, rangeEnd int) bool
	WriteBatchOutput(rangeStart, rangeEnd int, records []models.SummaryRecord) error
}

// PageScheduler partitions the page index space [1..totalPages] into
// contiguous batches, fans out the fetches within one batch, and persists
// each batch's merged records as a single write. Batches run strictly
// sequentially relative to each other; only fetches within a batch are
// concurrent, so peak outbound connections never exceed the batch size.
type PageScheduler struct {
	siteKey    string
	site       config.SiteConfig
	fetcher    Fetcher
	extractor  SummaryExtractor
	sink       BatchSink
	translator translate.Translator // Optional; nil means secondary names stay as extracted
	log        *logrus.Entry

	totalPages      int
	batchSize       int
	interBatchDelay time.Duration
	emptyBatchLimit int
}

// NewPageScheduler builds a scheduler with the site's effective settings.
func NewPageScheduler(siteKey string, siteCfg config.SiteConfig, appCfg *config.AppConfig, fetcher Fetcher, extractor SummaryExtractor, sink BatchSink, logger *logrus.Entry) *PageScheduler {
	return &PageScheduler{
		siteKey:         siteKey,
		site:            siteCfg,
		fetcher:         fetcher,
		extractor:       extractor,
		sink:            sink,
		log:             logger,
		totalPages:      config.GetEffectiveTotalPages(siteCfg, *appCfg),
		batchSize:       config.GetEffectiveBatchSize(siteCfg, *appCfg),
		interBatchDelay: config.GetEffectiveInterBatchDelay(siteCfg, *appCfg),
		emptyBatchLimit: appCfg.EmptyBatchLimit,
	}
}

// SetTranslator attaches a translation backend for filling secondary brand
// names on listings that carry only one language.
func (s *PageScheduler) SetTranslator(tr translate.Translator) {
	s.translator = tr
}

// Run processes the full index space. A batch with some or all failed fetches
// still produces an artifact and the run continues; the only error returned
// is context cancellation. The report carries the deduplicated failed pages.
func (s *PageScheduler) Run(ctx context.Context) (*RunReport, error) {
	report := NewRunReport(s.siteKey, "index")
	defer report.Finish()

	if s.totalPages < 1 || s.batchSize < 1 {
		s.log.Warnf("Nothing to do: total_pages=%d batch_size=%d", s.totalPages, s.batchSize)
		return report, nil
	}

	consecutiveEmpty := 0
	for start := 1; start <= s.totalPages; start += s.batchSize {
		end := start + s.batchSize - 1
		if end > s.totalPages {
			end = s.totalPages
		}

		if err := ctx.Err(); err != nil {
			return report, err
		}

		batchLog := s.log.WithFields(logrus.Fields{"range_start": start, "range_end": end})

		if s.sink.HasBatchOutput(start, end) {
			batchLog.Info("Batch artifact already exists, skipping range")
			report.AddOutcome(models.BatchOutcome{RangeStart: start, RangeEnd: end, Skipped: true})
			consecutiveEmpty = 0
			continue
		}

		outcome := s.processBatch(ctx, start, end, batchLog)
		report.AddOutcome(outcome)
		batchLog.WithFields(logrus.Fields{
			"saved":  outcome.ItemsSaved,
			"failed": len(outcome.Failures),
		}).Infof("Batch done: saved %d items, failed %d", outcome.ItemsSaved, len(outcome.Failures))

		// A fully-fetched batch with zero records hints the index may have
		// ended. Failures are not evidence either way.
		if outcome.ItemsSaved == 0 && len(outcome.Failures) == 0 {
			consecutiveEmpty++
		} else {
			consecutiveEmpty = 0
		}
		if s.emptyBatchLimit > 0 && consecutiveEmpty >= s.emptyBatchLimit && end < s.totalPages {
			batchLog.Warnf("%d consecutive empty batches, stopping early; pages %d-%d left unverified", consecutiveEmpty, end+1, s.totalPages)
			report.AddOutcome(models.BatchOutcome{RangeStart: end + 1, RangeEnd: s.totalPages, Skipped: true, Unverified: true})
			break
		}

		if end < s.totalPages && s.interBatchDelay > 0 {
			select {
			case <-time.After(s.interBatchDelay):
			case <-ctx.Done():
				return report, ctx.Err()
			}
		}
	}

	s.log.WithFields(logrus.Fields{
		"saved":        report.ItemsSaved,
		"failed_pages": report.FailedIdentities(),
	}).Infof("Index run complete: saved %d items, failed %d", report.ItemsSaved, len(report.Failures))
	return report, nil
}

// processBatch fans out one fetch per page, waits for all of them, extracts
// records from the successes, and persists the merged set in one write even
// when some fetches failed.
func (s *PageScheduler) processBatch(ctx context.Context, start, end int, batchLog *logrus.Entry) models.BatchOutcome {
	outcome := models.BatchOutcome{RangeStart: start, RangeEnd: end, Failures: []models.FailureEntry{}}

	pageCount := end - start + 1
	results := make([]fetch.Result, pageCount)

	sem := semaphore.NewWeighted(int64(s.batchSize))
	var wg sync.WaitGroup
	for i := 0; i < pageCount; i++ {
		page := start + i
		idx := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			identity := strconv.Itoa(page)
			if err := sem.Acquire(ctx, 1); err != nil {
				results[idx] = fetch.Result{Identity: identity, Err: err, Category: utils.CategorizeError(err)}
				return
			}
			defer sem.Release(1)
			results[idx] = s.fetcher.FetchPage(ctx, identity, fmt.Sprintf(s.site.ListingURLTemplate, page))
		}()
	}
	wg.Wait()

	var merged []models.SummaryRecord
	for i, result := range results {
		page := start + i
		if !result.OK() {
			outcome.Failures = append(outcome.Failures, models.FailureEntry{
				Identity: result.Identity,
				Reason:   result.Reason(),
				Category: result.Category,
			})
			continue
		}
		records, err := s.safeExtract(result.HTML, result.FinalURL, page)
		if err != nil {
			batchLog.WithField("page", page).Warnf("Extraction failed: %v", err)
			outcome.Failures = append(outcome.Failures, models.FailureEntry{
				Identity: result.Identity,
				Reason:   err.Error(),
				Category: utils.CategorizeError(err),
			})
			continue
		}
		merged = append(merged, records...)
	}

	if s.translator != nil {
		for i := range merged {
			translate.SecondaryName(ctx, s.translator, &merged[i], s.site.NameSourceLang, s.site.NameTargetLang, batchLog)
		}
	}

	if err := s.sink.WriteBatchOutput(start, end, merged); err != nil {
		// A failed write marks every page in the batch failed so a future
		// run retries the whole range.
		batchLog.Errorf("Batch write failed: %v", err)
		outcome.Failures = []models.FailureEntry{}
		for page := start; page <= end; page++ {
			outcome.Failures = append(outcome.Failures, models.FailureEntry{
				Identity: strconv.Itoa(page),
				Reason:   err.Error(),
				Category: utils.CategorizeError(err),
			})
		}
		return outcome
	}

	outcome.ItemsSaved = len(merged)
	return outcome
}

// safeExtract parses and extracts one page, converting a panic from
// unexpected markup into an ordinary per-page failure.
func (s *PageScheduler) safeExtract(html, pageURL string, page int) (records []models.SummaryRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = utils.WrapErrorf(utils.ErrParsing, "extraction panic on page %d: %v", page, r)
		}
	}()

	doc, derr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if derr != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "parsing page %d: %v", page, derr)
	}
	return s.extractor.Extract(doc, pageURL, page), nil
}
