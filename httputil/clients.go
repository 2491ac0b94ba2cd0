package httputil

import (
	"context"
	"net/http"
	"time"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Clients bundles the HTTP clients the daemon uses: one tuned for target
// sites, one for plain API calls.
type Clients struct {
	Scraping *http.Client // target classifieds sites
	API      *http.Client // everything else
}

func NewClients() *Clients {
	return &Clients{
		Scraping: &http.Client{Timeout: 30 * time.Second},
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}

// NewRequest builds a GET request with a browser user agent, which most
// classifieds sites require before serving full markup.
func NewRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	return req, nil
}
