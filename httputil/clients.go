package httputil

import (
	"net/http"
	"time"
)

type Clients struct {
	Scraping *http.Client // target site: generous timeout, no redirect chasing
	API      *http.Client // Telegram and other APIs
}

func NewClients() *Clients {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	scraping := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 10 * time.Second},
	}
}
