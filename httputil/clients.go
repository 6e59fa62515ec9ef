package httputil

import (
	"net/http"
	"time"
)

// Clients holds the HTTP clients the pipeline shares.
//
// Scraping follows redirects without limit (the export and page fetches
// depend on landing on the final canonical URL). Probe caps the redirect
// chain and surfaces the last response, so callers can still read the
// Location header when a site loops. API is for the managed backend.
type Clients struct {
	Scraping *http.Client
	Probe    *http.Client
	API      *http.Client
}

func NewClients(timeout time.Duration) *Clients {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Clients{
		Scraping: &http.Client{Timeout: timeout},
		Probe: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Allow the chain but refuse to loop forever.
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		API: &http.Client{Timeout: 30 * time.Second},
	}
}
