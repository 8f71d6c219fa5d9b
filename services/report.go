package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"carwatch/models"
)

// Sender delivers one formatted message. Implemented by notify.Telegram.
type Sender interface {
	SendMessage(ctx context.Context, text string) error
	Enabled() bool
}

// Reporter turns a finished run into a single summary notification, and
// fatal aborts into alerts. Delivery is at-least-once and best-effort; a
// failed send is logged and the run still counts as reported.
type Reporter struct {
	sender Sender
}

func NewReporter(sender Sender) *Reporter {
	return &Reporter{sender: sender}
}

func (r *Reporter) ReportRun(ctx context.Context, run *models.ScrapeRun) {
	if !r.sender.Enabled() {
		return
	}
	if err := r.sender.SendMessage(ctx, formatRunSummary(run)); err != nil {
		log.Printf("run summary notification failed: %v", err)
	}
}

func (r *Reporter) ReportFatal(ctx context.Context, siteID string, err error) {
	if !r.sender.Enabled() {
		return
	}
	text := fmt.Sprintf("🚨 <b>Scrape run failed</b>\nSite: %s\nError: %s", siteID, htmlEscape(err.Error()))
	if sendErr := r.sender.SendMessage(ctx, text); sendErr != nil {
		log.Printf("fatal-run notification failed: %v", sendErr)
	}
}

func formatRunSummary(run *models.ScrapeRun) string {
	var b strings.Builder

	icon := "✅"
	if run.Status != models.RunStatusCompleted {
		icon = "⚠️"
	}
	fmt.Fprintf(&b, "%s <b>Scrape run #%d (%s)</b>\n", icon, run.ID, run.Status)
	fmt.Fprintf(&b, "Site: %s\n", run.SiteID)
	fmt.Fprintf(&b, "Pages: %d | Listings found: %d\n", run.PagesScraped, run.ListingsFound)
	fmt.Fprintf(&b, "Inserted: %d | Updated: %d | Failed: %d | Rejected: %d\n",
		run.Inserted, run.Updated, run.Failed, run.Rejected)
	fmt.Fprintf(&b, "Users matched: %d | Links created: %d\n", run.UsersMatched, run.LinksCreated)

	if run.FinishedAt != nil {
		fmt.Fprintf(&b, "Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}
	if run.ErrorsCount > 0 {
		fmt.Fprintf(&b, "Errors: %d\n", run.ErrorsCount)
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(&b, "Last error: %s\n", htmlEscape(run.ErrorMessage))
	}

	return b.String()
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
