package listing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
)

type Fetcher struct {
	client   *resty.Client
	source   *Source
	cache    PageCache
	cacheTTL time.Duration
}

// NewFetcher builds a fetcher for one source. pageCache may be nil.
func NewFetcher(source *Source, userAgent string, pageCache PageCache, cacheTTL time.Duration) *Fetcher {
	client := resty.New().
		SetTimeout(time.Duration(source.Timeout) * time.Second).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html")

	return &Fetcher{
		client:   client,
		source:   source,
		cache:    pageCache,
		cacheTTL: cacheTTL,
	}
}

// Run fetches every configured page concurrently. Results keep the order of
// the source's pages; any failure cancels the rest.
func (f *Fetcher) Run(ctx context.Context) ([]Page, error) {
	pages := make([]Page, len(f.source.Pages))

	g, gctx := errgroup.WithContext(ctx)
	for i, ps := range f.source.Pages {
		g.Go(func() error {
			pageURL := f.source.PageURL(ps)
			html, err := f.fetch(gctx, pageURL)
			if err != nil {
				return fmt.Errorf("failed to fetch %s page: %w", ps.Category, err)
			}
			pages[i] = Page{Category: ps.Category, URL: pageURL, HTML: html}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return pages, nil
}

func (f *Fetcher) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if f.cache != nil {
		html, ok, err := f.cache.GetPage(ctx, pageURL)
		if err != nil {
			slog.Warn("Page cache read failed", "url", pageURL, "error", err)
		} else if ok {
			slog.Debug("Page served from cache", "url", pageURL)
			return html, nil
		}
	}

	start := time.Now()
	resp, err := f.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &HTTPStatusError{URL: pageURL, StatusCode: resp.StatusCode()}
	}

	html := resp.Body()
	slog.Debug("Page fetched", "url", pageURL, "bytes", len(html), "duration", time.Since(start))

	if f.cache != nil && f.cacheTTL > 0 {
		if err := f.cache.SetPage(ctx, pageURL, html, f.cacheTTL); err != nil {
			slog.Warn("Page cache write failed", "url", pageURL, "error", err)
		}
	}

	return html, nil
}
