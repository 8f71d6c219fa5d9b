package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"carwatch/config"
	"carwatch/models"
	"carwatch/processor"
	"carwatch/services"
)

// RunJournal is the slice of the local journal the orchestrator writes to.
// Implemented by storage.SQLiteStore.
type RunJournal interface {
	CreateRun(run *models.ScrapeRun) (int64, error)
	UpdateRun(run *models.ScrapeRun) error
	UpdateSiteStats(siteID string) error
	Log(runID *int64, level models.LogLevel, message string) error
}

// RunMirror copies run records into the domain store for reporting queries.
// Implemented by storage.PostgresStore.
type RunMirror interface {
	MirrorRun(ctx context.Context, run *models.ScrapeRun) error
}

// Orchestrator drives one full harvest: paginate, parse, process, persist,
// match, report. One page at a time; the inter-request delay is the only
// politeness mechanism.
type Orchestrator struct {
	cfg     *config.Config
	journal RunJournal
	mirror  RunMirror

	fetcher   *Fetcher
	processor *processor.Processor
	persister *services.Persister
	matcher   *services.Matcher
	reporter  *services.Reporter
}

func NewOrchestrator(
	cfg *config.Config,
	journal RunJournal,
	mirror RunMirror,
	fetcher *Fetcher,
	proc *processor.Processor,
	persister *services.Persister,
	matcher *services.Matcher,
	reporter *services.Reporter,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		journal:   journal,
		mirror:    mirror,
		fetcher:   fetcher,
		processor: proc,
		persister: persister,
		matcher:   matcher,
		reporter:  reporter,
	}
}

func (o *Orchestrator) RunAll(ctx context.Context) error {
	var firstErr error
	for siteID := range o.cfg.Sites {
		if err := o.RunSite(ctx, siteID); err != nil {
			log.Printf("Error running site %s: %v", siteID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	return firstErr
}

// RunSite executes the pipeline for one configured site. A non-nil error
// means the run aborted on a fatal condition (first page unreachable,
// storage down); per-record failures only shape the run counters.
func (o *Orchestrator) RunSite(ctx context.Context, siteID string) error {
	siteCfg, ok := o.cfg.Sites[siteID]
	if !ok {
		return fmt.Errorf("unknown site: %s", siteID)
	}

	run := &models.ScrapeRun{
		SiteID:    siteID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}

	runID, err := o.journal.CreateRun(run)
	if err != nil {
		return fmt.Errorf("creating run journal entry: %w", err)
	}
	run.ID = runID

	if err := o.mirror.MirrorRun(ctx, run); err != nil {
		log.Printf("Warning: failed to mirror run to Postgres: %v", err)
	}

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting scrape for %s", siteCfg.Name))

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if err := o.journal.UpdateRun(run); err != nil {
			log.Printf("Warning: failed to update run journal: %v", err)
		}
		if err := o.journal.UpdateSiteStats(siteID); err != nil {
			log.Printf("Warning: failed to update site stats: %v", err)
		}
		if err := o.mirror.MirrorRun(context.WithoutCancel(ctx), run); err != nil {
			log.Printf("Warning: failed to mirror run to Postgres: %v", err)
		}
	}()

	parser := NewPageParser(siteID, siteCfg.BaseURL)
	var matchable []*models.Listing

	for page := 1; page <= o.cfg.Scraper.MaxPages; page++ {
		if page > 1 {
			select {
			case <-ctx.Done():
			case <-time.After(o.cfg.Scraper.Delay):
			}
		}
		if ctx.Err() != nil {
			o.log(run.ID, models.LogLevelWarn, "Run cancelled, reporting partial counts")
			run.Status = models.RunStatusPartial
			break
		}

		result, err := o.scrapePage(ctx, parser, siteCfg, page)
		if err != nil {
			if page == 1 {
				// Nothing harvested at all; treat as a dead source.
				run.Status = models.RunStatusFailed
				run.ErrorsCount++
				run.ErrorMessage = err.Error()
				o.log(run.ID, models.LogLevelError, fmt.Sprintf("First page unreachable: %v", err))
				o.reporter.ReportFatal(context.WithoutCancel(ctx), siteID, err)
				return err
			}
			run.ErrorsCount++
			run.ErrorMessage = err.Error()
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("Page %d failed: %v", page, err))
			continue
		}

		run.PagesScraped++
		run.ListingsFound += len(result.Records)
		if result.Skipped > 0 {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Page %d: skipped %d unparsable cards", page, result.Skipped))
		}

		listings, rejected := o.processRecords(ctx, run, result.Records)
		run.Rejected += rejected

		report := o.persister.Persist(ctx, listings)
		run.Inserted += report.Inserted
		run.Updated += report.Updated
		run.Failed += len(report.Failed)
		for id, perr := range report.Failed {
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("Persist failed for %s: %v", id, perr))
		}

		for _, l := range listings {
			if _, failed := report.Failed[l.ID]; !failed {
				matchable = append(matchable, l)
			}
		}

		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Page %d: %d cards, %d inserted, %d updated",
			page, len(result.Records), report.Inserted, report.Updated))

		if result.LastPage {
			o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Last page reached at %d", page))
			break
		}
	}

	stats, err := o.matcher.Run(ctx, matchable)
	if err != nil && !errors.Is(err, context.Canceled) {
		run.ErrorsCount++
		run.ErrorMessage = err.Error()
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Match pass failed: %v", err))
	}
	run.UsersMatched = stats.UsersMatched
	run.LinksCreated = stats.LinksCreated

	if run.Status == models.RunStatusRunning {
		if run.ErrorsCount > 0 || run.Failed > 0 {
			run.Status = models.RunStatusPartial
		} else {
			run.Status = models.RunStatusCompleted
		}
	}

	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d pages, %d found, %d inserted, %d updated, %d links created",
			run.PagesScraped, run.ListingsFound, run.Inserted, run.Updated, run.LinksCreated))

	now := time.Now()
	run.FinishedAt = &now
	o.reporter.ReportRun(context.WithoutCancel(ctx), run)

	return nil
}

// scrapePage fetches and parses one results page, refetching when the page
// came back structurally intact but with nothing parsable.
func (o *Orchestrator) scrapePage(ctx context.Context, parser *PageParser, siteCfg *config.SiteConfig, page int) (*PageResult, error) {
	pageURL := buildPageURL(siteCfg, page)

	var lastErr error
	for attempt := 0; attempt <= o.cfg.Scraper.ParseRetries; attempt++ {
		html, err := o.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		result, err := parser.Parse(html)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("parse attempt %d/%d failed for page %d: %v", attempt+1, o.cfg.Scraper.ParseRetries+1, page, err)
	}

	return nil, fmt.Errorf("page %d unparsable after %d attempts: %w", page, o.cfg.Scraper.ParseRetries+1, lastErr)
}

func (o *Orchestrator) processRecords(ctx context.Context, run *models.ScrapeRun, records []models.ListingRaw) ([]*models.Listing, int) {
	var listings []*models.Listing
	rejected := 0

	for _, raw := range records {
		listing, err := o.processor.Process(ctx, raw)
		if err != nil {
			rejected++
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Rejected record %s: %v", raw.URL, err))
			continue
		}
		listings = append(listings, listing)
	}

	return listings, rejected
}

func buildPageURL(siteCfg *config.SiteConfig, page int) string {
	values := url.Values{}
	for k, v := range siteCfg.Params {
		values.Set(k, v)
	}
	values.Set(siteCfg.PageParam, strconv.Itoa(page))
	return siteCfg.BaseURL + "?" + values.Encode()
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message string) {
	log.Printf("[%s] %s", level, message)
	if err := o.journal.Log(&runID, level, message); err != nil {
		log.Printf("Warning: journal log failed: %v", err)
	}
}
