package workers

import (
	"context"
	"log"
	"regexp"
	"strconv"
	"time"

	"carwatch/config"
	"carwatch/models"
	"carwatch/scraper"
	"carwatch/services"
	"carwatch/storage"
)

// CheckerWorker re-verifies stored listings against the source site. Linked
// listings (someone is watching them) are checked every few hours, unlinked
// ones weekly. A dead detail page flips the existence flag and trashes the
// listing's links; a price change is written back and re-matched.
type CheckerWorker struct {
	cfg       config.CheckerConfig
	store     *storage.PostgresStore
	fetcher   *scraper.Fetcher
	matcher   *services.Matcher
	triggerCh chan struct{}
}

func NewCheckerWorker(cfg config.CheckerConfig, store *storage.PostgresStore, fetcher *scraper.Fetcher, matcher *services.Matcher) *CheckerWorker {
	return &CheckerWorker{
		cfg:       cfg,
		store:     store,
		fetcher:   fetcher,
		matcher:   matcher,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger runs a linked-listings pass immediately.
func (w *CheckerWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled. Two cadences share one worker: the
// linked interval drives the ticker, and unlinked listings are folded in
// whenever their longer interval has elapsed.
func (w *CheckerWorker) Run(ctx context.Context) {
	linkedTicker := time.NewTicker(w.cfg.LinkedInterval)
	defer linkedTicker.Stop()
	unlinkedTicker := time.NewTicker(w.cfg.UnlinkedInterval)
	defer unlinkedTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Checker worker stopping")
			return
		case <-linkedTicker.C:
			w.processBatch(ctx, true, w.cfg.LinkedInterval)
		case <-unlinkedTicker.C:
			w.processBatch(ctx, false, w.cfg.UnlinkedInterval)
		case <-w.triggerCh:
			log.Println("Checker worker triggered manually")
			w.processBatch(ctx, true, w.cfg.LinkedInterval)
		}
	}
}

func (w *CheckerWorker) processBatch(ctx context.Context, linked bool, staleAfter time.Duration) {
	cutoff := time.Now().Add(-staleAfter)
	listings, err := w.store.ListingsForCheck(ctx, linked, cutoff, w.cfg.BatchSize)
	if err != nil {
		log.Printf("Checker: query error: %v", err)
		return
	}
	if len(listings) == 0 {
		return
	}

	kind := "unlinked"
	if linked {
		kind = "linked"
	}
	log.Printf("Checker: checking %d stale %s listings", len(listings), kind)

	var gone, priceChanges int
	for _, listing := range listings {
		if ctx.Err() != nil {
			return
		}
		if listing.URL == "" {
			continue
		}

		alive, err := w.fetcher.Head(ctx, listing.URL)
		if err != nil {
			log.Printf("Checker: error checking %s: %v", listing.URL, err)
			w.store.TouchListing(ctx, listing.ID)
			continue
		}

		if !alive {
			if err := w.markGone(ctx, listing); err != nil {
				log.Printf("Checker: failed to mark %s gone: %v", listing.ID, err)
			} else {
				gone++
			}
			continue
		}

		if w.recheckPrice(ctx, listing) {
			priceChanges++
		} else {
			w.store.TouchListing(ctx, listing.ID)
		}

		// Politeness between detail requests.
		time.Sleep(500 * time.Millisecond)
	}

	if gone > 0 || priceChanges > 0 {
		log.Printf("Checker: checked %d, gone %d, price changes %d", len(listings), gone, priceChanges)
	}
}

func (w *CheckerWorker) markGone(ctx context.Context, listing *models.Listing) error {
	if err := w.store.MarkListingGone(ctx, listing.ID); err != nil {
		return err
	}
	trashed, err := w.store.TrashLinksForListing(ctx, listing.ID)
	if err != nil {
		return err
	}
	log.Printf("Checker: listing gone: %s (%d links trashed)", listing.URL, trashed)
	return nil
}

// recheckPrice re-reads the detail page, and on a price change writes the
// new price back and runs a fresh match pass for the listing.
func (w *CheckerWorker) recheckPrice(ctx context.Context, listing *models.Listing) bool {
	html, err := w.fetcher.Fetch(ctx, listing.URL)
	if err != nil {
		log.Printf("Checker: failed to fetch %s for price check: %v", listing.URL, err)
		return false
	}

	price := extractPrice(string(html))
	if price == nil || listing.Price == nil || *price == *listing.Price {
		return false
	}

	log.Printf("Checker: price change %s: %d -> %d", listing.URL, *listing.Price, *price)
	if err := w.store.UpdateListingPrice(ctx, listing.ID, *price); err != nil {
		log.Printf("Checker: failed to update price: %v", err)
		return false
	}

	listing.Price = price
	if _, err := w.matcher.Run(ctx, []*models.Listing{listing}); err != nil {
		log.Printf("Checker: re-match after price change failed: %v", err)
	}
	return true
}

var (
	jsonLDPriceRegex = regexp.MustCompile(`"price"\s*:\s*"?(\d+)(?:\.\d+)?"?`)
	attrPriceRegex   = regexp.MustCompile(`data-price="(\d+)"`)
)

// extractPrice pulls the asking price out of a detail page, JSON-LD first,
// data attribute as fallback.
func extractPrice(html string) *int {
	for _, re := range []*regexp.Regexp{jsonLDPriceRegex, attrPriceRegex} {
		if m := re.FindStringSubmatch(html); len(m) > 1 {
			if price, err := strconv.Atoi(m[1]); err == nil && price > 0 {
				return &price
			}
		}
	}
	return nil
}
