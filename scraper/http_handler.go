package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"dealwatch/config"
	"dealwatch/httputil"
	"dealwatch/models"
)

// HTTPHandler scrapes a search results page over plain HTTP. Craigslist
// has shipped several list layouts over the years, so every selector is a
// chain of old and new variants.
type HTTPHandler struct {
	search  *config.SearchConfig
	cfg     config.ScraperConfig
	clients *httputil.Clients
}

func NewHTTPHandler(search *config.SearchConfig, cfg config.ScraperConfig, clients *httputil.Clients) *HTTPHandler {
	return &HTTPHandler{search: search, cfg: cfg, clients: clients}
}

func (h *HTTPHandler) Name() string {
	return h.search.Name
}

func (h *HTTPHandler) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	doc, err := h.getDocument(ctx, h.search.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch search page: %w", err)
	}

	results := doc.Find(".result-info")
	if results.Length() == 0 {
		// Newer static layout.
		results = doc.Find("li.cl-static-search-result")
		if results.Length() > 0 {
			log.Printf("[scraper] %s: using static layout selector (%d results)", h.search.Name, results.Length())
		}
	}

	scrapedAt := time.Now().UTC()
	var records []models.RawRecord
	results.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}

		rec, ok := h.parseResult(sel)
		if !ok {
			return true
		}
		rec.ScrapedAt = scrapedAt

		// The exact posting time only appears on the detail page.
		rec.PostingTimeText = h.fetchPostingTime(ctx, rec.URL)
		records = append(records, rec)
		return true
	})

	if err := ctx.Err(); err != nil {
		return records, err
	}
	log.Printf("[scraper] %s: scraped %d records", h.search.Name, len(records))
	return records, nil
}

// parseResult extracts title, URL, price and location from one search
// result. Results missing a title or URL are skipped.
func (h *HTTPHandler) parseResult(sel *goquery.Selection) (models.RawRecord, bool) {
	var rec models.RawRecord

	titleEl := sel.Find(".result-title, .titlestring").First()
	if titleEl.Length() == 0 {
		titleEl = sel.Find("div.title a, a.posting-title").First()
	}
	if titleEl.Length() > 0 {
		rec.Title = strings.TrimSpace(titleEl.Text())
		rec.URL, _ = titleEl.Attr("href")
	} else if titleDiv := sel.Find("div.title").First(); titleDiv.Length() > 0 {
		// Static layout: the title div has no link, the wrapping <a> does.
		rec.Title = strings.TrimSpace(titleDiv.Text())
		rec.URL, _ = sel.Find("a").First().Attr("href")
	}

	if rec.Title == "" || rec.URL == "" {
		return rec, false
	}

	if priceEl := sel.Find(".result-price, .price, span.priceinfo").First(); priceEl.Length() > 0 {
		rec.PriceText = strings.TrimSpace(priceEl.Text())
	}

	rec.Location = "N/A"
	if locEl := sel.Find(".result-hood, .location, .housing").First(); locEl.Length() > 0 {
		rec.Location = strings.Trim(strings.TrimSpace(locEl.Text()), "()")
	}

	return rec, true
}

// fetchPostingTime visits the listing's detail page and reads the time
// element's datetime attribute. Failures fall back to the current date.
func (h *HTTPHandler) fetchPostingTime(ctx context.Context, url string) string {
	h.politeDelay(200, 500)

	doc, err := h.getDocument(ctx, url)
	if err != nil {
		log.Printf("[scraper] posting time for %s: %v", url, err)
		return currentDate()
	}

	if dt, ok := doc.Find("p.postinginfo time, .date.timeago").First().Attr("datetime"); ok {
		return dt
	}

	// Backup: any time element carrying a datetime attribute.
	var found string
	doc.Find("time").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if dt, ok := t.Attr("datetime"); ok {
			found = dt
			return false
		}
		return true
	})
	if found != "" {
		return found
	}
	return currentDate()
}

func (h *HTTPHandler) getDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := httputil.NewRequest(ctx, url)
	if err != nil {
		return nil, err
	}

	resp, err := h.clients.Scraping.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

func (h *HTTPHandler) politeDelay(minMS, maxMS int) {
	if h.cfg.DelayMS > 0 {
		minMS, maxMS = h.cfg.DelayMS, 2*h.cfg.DelayMS
	}
	time.Sleep(time.Duration(minMS+rand.Intn(maxMS-minMS)) * time.Millisecond)
}

func currentDate() string {
	return time.Now().Format("2006-01-02")
}
