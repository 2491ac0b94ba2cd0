// Package scraper fetches classifieds search results and turns them into
// raw records for the ingest pipeline. Two handlers exist: a plain HTTP
// handler (goquery over static markup) and a browser handler (playwright)
// for searches that only render behind JavaScript.
package scraper

import (
	"context"

	"dealwatch/config"
	"dealwatch/httputil"
	"dealwatch/models"
)

type Handler interface {
	Name() string
	Fetch(ctx context.Context) ([]models.RawRecord, error)
}

func NewHandler(search *config.SearchConfig, scraperCfg config.ScraperConfig, clients *httputil.Clients) Handler {
	handler := search.Handler
	if handler == "" {
		handler = scraperCfg.Handler
	}

	switch handler {
	case "browser":
		return NewBrowserHandler(search, scraperCfg)
	default:
		return NewHTTPHandler(search, scraperCfg, clients)
	}
}
