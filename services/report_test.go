package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"carwatch/models"
)

type fakeSender struct {
	enabled bool
	sent    []string
	sendErr error
}

func (s *fakeSender) Enabled() bool { return s.enabled }

func (s *fakeSender) SendMessage(_ context.Context, text string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, text)
	return nil
}

func testRun() *models.ScrapeRun {
	finished := time.Date(2026, 8, 1, 12, 5, 0, 0, time.UTC)
	return &models.ScrapeRun{
		ID:            7,
		SiteID:        "autoscout24",
		StartedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt:    &finished,
		Status:        models.RunStatusCompleted,
		PagesScraped:  4,
		ListingsFound: 80,
		Inserted:      12,
		Updated:       60,
		Failed:        2,
		Rejected:      6,
		UsersMatched:  3,
		LinksCreated:  5,
	}
}

func TestReportRunSendsSummary(t *testing.T) {
	sender := &fakeSender{enabled: true}
	NewReporter(sender).ReportRun(context.Background(), testRun())

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	for _, want := range []string{
		"run #7", "autoscout24", "Pages: 4", "Listings found: 80",
		"Inserted: 12", "Updated: 60", "Failed: 2", "Rejected: 6",
		"Links created: 5", "Duration: 5m0s",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("summary missing %q:\n%s", want, msg)
		}
	}
}

func TestReportRunSendFailureIsSwallowed(t *testing.T) {
	sender := &fakeSender{enabled: true, sendErr: errors.New("telegram down")}
	// Must not panic or propagate; delivery is best effort.
	NewReporter(sender).ReportRun(context.Background(), testRun())
}

func TestReportRunDisabledSenderSkips(t *testing.T) {
	sender := &fakeSender{enabled: false}
	NewReporter(sender).ReportRun(context.Background(), testRun())
	if len(sender.sent) != 0 {
		t.Fatalf("disabled sender must not be used, got %v", sender.sent)
	}
}

func TestReportFatalEscapesError(t *testing.T) {
	sender := &fakeSender{enabled: true}
	NewReporter(sender).ReportFatal(context.Background(), "autoscout24", errors.New("status <500>"))

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0], "&lt;500&gt;") {
		t.Fatalf("error text must be HTML-escaped:\n%s", sender.sent[0])
	}
}
