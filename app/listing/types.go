package listing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lysyi3m/cine-comb/app/movie"
)

// Page is the raw HTML of one category page, tagged with its category.
type Page struct {
	Category movie.Status
	URL      string
	HTML     []byte
}

type Source struct {
	Name    string       `yaml:"name"`
	BaseURL string       `yaml:"base_url"`
	Timeout int          `yaml:"timeout"` // seconds
	Pages   []PageSource `yaml:"pages"`
}

type PageSource struct {
	Category movie.Status `yaml:"category"`
	Path     string       `yaml:"path"`
}

// PageCache stores raw page bodies between runs.
type PageCache interface {
	GetPage(ctx context.Context, pageURL string) ([]byte, bool, error)
	SetPage(ctx context.Context, pageURL string, html []byte, ttl time.Duration) error
}

// HTTPStatusError is returned when a listing page answers with a non-2xx status.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

func (s *Source) PageURL(p PageSource) string {
	return strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(p.Path, "/")
}
