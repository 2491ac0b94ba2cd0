package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"dealwatch/config"
	"dealwatch/models"
)

// BrowserHandler drives a headless browser through the search. Needed for
// searches where the result list only renders client-side; markedly
// slower than the HTTP handler, so it is opt-in per search.
type BrowserHandler struct {
	search *config.SearchConfig
	cfg    config.ScraperConfig

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	bctx        playwright.BrowserContext
	initialized bool
}

func NewBrowserHandler(search *config.SearchConfig, cfg config.ScraperConfig) *BrowserHandler {
	return &BrowserHandler{search: search, cfg: cfg}
}

func (h *BrowserHandler) Name() string {
	return h.search.Name
}

func (h *BrowserHandler) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	if err := h.ensureBrowser(); err != nil {
		return nil, err
	}
	defer h.Close()

	page, err := h.bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	defer page.Close()

	if _, err := page.Goto(h.search.URL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, fmt.Errorf("goto search: %w", err)
	}
	_ = page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})

	elements, err := page.QuerySelectorAll("li.cl-static-search-result")
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	log.Printf("[scraper] %s: browser found %d results", h.search.Name, len(elements))

	scrapedAt := time.Now().UTC()
	var records []models.RawRecord
	for _, el := range elements {
		if ctx.Err() != nil {
			return records, ctx.Err()
		}

		rec, ok := h.parseElement(el)
		if !ok {
			continue
		}
		rec.ScrapedAt = scrapedAt
		rec.PostingTimeText = h.fetchPostingTime(rec.URL)
		records = append(records, rec)
	}

	log.Printf("[scraper] %s: browser scraped %d records", h.search.Name, len(records))
	return records, nil
}

func (h *BrowserHandler) parseElement(el playwright.ElementHandle) (models.RawRecord, bool) {
	var rec models.RawRecord

	if link, _ := el.QuerySelector("a"); link != nil {
		if href, err := link.GetAttribute("href"); err == nil {
			rec.URL = href
		}
	}
	if titleEl, _ := el.QuerySelector("div.title"); titleEl != nil {
		if text, err := titleEl.TextContent(); err == nil {
			rec.Title = strings.TrimSpace(text)
		}
	}
	if rec.Title == "" || rec.URL == "" {
		return rec, false
	}

	if priceEl, _ := el.QuerySelector("div.price"); priceEl != nil {
		if text, err := priceEl.TextContent(); err == nil {
			rec.PriceText = strings.TrimSpace(text)
		}
	}

	rec.Location = "N/A"
	if locEl, _ := el.QuerySelector("div.location"); locEl != nil {
		if text, err := locEl.TextContent(); err == nil && strings.TrimSpace(text) != "" {
			rec.Location = strings.Trim(strings.TrimSpace(text), "()")
		}
	}

	return rec, true
}

// fetchPostingTime opens the detail page in a fresh tab and reads the
// posting timestamp. Failures fall back to the current date.
func (h *BrowserHandler) fetchPostingTime(url string) string {
	time.Sleep(time.Duration(500+rand.Intn(1000)) * time.Millisecond)

	page, err := h.bctx.NewPage()
	if err != nil {
		return currentDate()
	}
	defer page.Close()

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(30000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		log.Printf("[scraper] posting time for %s: %v", url, err)
		return currentDate()
	}

	if el, _ := page.QuerySelector("p.postinginfo time, .date.timeago"); el != nil {
		if dt, err := el.GetAttribute("datetime"); err == nil && dt != "" {
			return dt
		}
	}
	if els, _ := page.QuerySelectorAll("time"); els != nil {
		for _, el := range els {
			if dt, err := el.GetAttribute("datetime"); err == nil && dt != "" {
				return dt
			}
		}
	}
	return currentDate()
}

func (h *BrowserHandler) ensureBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	var err error
	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	h.browser, err = h.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	h.bctx, err = h.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	})
	if err != nil {
		return fmt.Errorf("new context: %w", err)
	}

	h.initialized = true
	return nil
}

func (h *BrowserHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.bctx != nil {
		h.bctx.Close()
		h.bctx = nil
	}
	if h.browser != nil {
		h.browser.Close()
		h.browser = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
	h.initialized = false
}
