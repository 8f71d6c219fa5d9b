package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"carwatch/models"
)

// PageParser extracts listing cards from a results page. Each card is an
// <article> element carrying the summary data attributes plus a title link;
// a card that cannot yield a URL is skipped and counted, never fatal.
type PageParser struct {
	sourceSite string
	baseURL    string
}

func NewPageParser(sourceSite, baseURL string) *PageParser {
	base := baseURL
	if i := strings.Index(base, "://"); i >= 0 {
		if j := strings.Index(base[i+3:], "/"); j >= 0 {
			base = base[:i+3+j]
		}
	}
	return &PageParser{sourceSite: sourceSite, baseURL: base}
}

// PageResult carries what one page yielded alongside the stop signal.
type PageResult struct {
	Records  []models.ListingRaw
	Skipped  int
	LastPage bool
}

// Parse pulls all listing cards out of one results page. LastPage is decided
// from the page structure alone: no listing articles, an explicit no-results
// marker, or a disabled next-page control.
func (p *PageParser) Parse(html []byte) (*PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing page html: %w", err)
	}

	result := &PageResult{}

	articles := doc.Find("article.cldt-summary-full-item, article[data-testid='list-item']")
	if articles.Length() == 0 {
		result.LastPage = true
		return result, nil
	}

	articles.Each(func(_ int, card *goquery.Selection) {
		raw, ok := p.parseCard(card)
		if !ok {
			result.Skipped++
			return
		}
		result.Records = append(result.Records, raw)
	})

	if p.isLastPage(doc) {
		result.LastPage = true
	}

	// Articles present but nothing parsable usually means a half-rendered
	// page; the orchestrator treats this as a retryable parse failure.
	if len(result.Records) == 0 && result.Skipped > 0 {
		return result, fmt.Errorf("page had %d listing cards, none parsable", result.Skipped)
	}

	return result, nil
}

func (p *PageParser) parseCard(card *goquery.Selection) (models.ListingRaw, bool) {
	raw := models.ListingRaw{SourceSite: p.sourceSite}

	link := card.Find("a[class*='ListItem_title'], h2 a").First()
	href, _ := link.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" {
		return raw, false
	}
	if strings.HasPrefix(href, "/") {
		href = p.baseURL + href
	}
	raw.URL = href
	raw.Title = strings.TrimSpace(link.Text())

	// Summary attributes on the article element itself.
	raw.Brand = cardAttr(card, "data-make")
	raw.Model = cardAttr(card, "data-model")
	raw.PriceText = cardAttr(card, "data-price")
	raw.MileageText = cardAttr(card, "data-mileage")
	raw.YearText = cardAttr(card, "data-first-registration")
	raw.FuelText = cardAttr(card, "data-fuel-type")

	// Fall back to visible card text where the attributes are absent.
	if raw.PriceText == "" {
		raw.PriceText = strings.TrimSpace(card.Find("[class*='Price_price']").First().Text())
	}
	if raw.MileageText == "" {
		raw.MileageText = strings.TrimSpace(card.Find("[data-type='mileage_road']").First().Text())
	}
	if raw.YearText == "" {
		raw.YearText = strings.TrimSpace(card.Find("[data-type='first_registration']").First().Text())
	}
	if raw.FuelText == "" {
		raw.FuelText = strings.TrimSpace(card.Find("[data-type='fuel_type']").First().Text())
	}
	raw.Transmission = strings.TrimSpace(card.Find("[data-type='transmission_type']").First().Text())
	raw.Location = strings.TrimSpace(card.Find("[class*='SellerInfo_address']").First().Text())
	raw.Description = strings.TrimSpace(card.Find("[class*='ListItem_subtitle']").First().Text())

	return raw, true
}

// isLastPage reads the pagination control. AutoScout24 disables the
// next-page button on the final page; some layouts drop it entirely.
func (p *PageParser) isLastPage(doc *goquery.Document) bool {
	if doc.Find("[class*='ListPage_noResults'], .no-results").Length() > 0 {
		return true
	}

	next := doc.Find("button[aria-label='Aller à la page suivante'], li.pagination-item--next button, a[rel='next']")
	if next.Length() == 0 {
		// Single-page result sets render no next control at all.
		return true
	}

	if _, disabled := next.First().Attr("disabled"); disabled {
		return true
	}
	if next.First().AttrOr("aria-disabled", "") == "true" {
		return true
	}
	if next.Closest("li").HasClass("pagination-item--disabled") {
		return true
	}
	return false
}

func cardAttr(card *goquery.Selection, name string) string {
	return strings.TrimSpace(card.AttrOr(name, ""))
}
