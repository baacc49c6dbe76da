package listing

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/cine-comb/app/movie"
)

const defaultTimeout = 30

// DefaultSource points at the Bogotá listing pages of Cine Colombia.
func DefaultSource() *Source {
	return &Source{
		Name:    "cinecolombia-bogota",
		BaseURL: "https://www.cinecolombia.com",
		Timeout: defaultTimeout,
		Pages: []PageSource{
			{Category: movie.StatusInTheaters, Path: "/bogota/cartelera"},
			{Category: movie.StatusUpcoming, Path: "/bogota/pronto"},
		},
	}
}

// LoadSource reads the sources file, falling back to DefaultSource when the
// file does not exist.
func LoadSource(path string) (*Source, error) {
	if path == "" {
		return DefaultSource(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Sources file not found, using defaults", "path", path)
		return DefaultSource(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return ParseSource(data)
}

func ParseSource(data []byte) (*Source, error) {
	var source Source
	if err := yaml.Unmarshal(data, &source); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if source.Timeout == 0 {
		source.Timeout = defaultTimeout
	}

	if err := validateSource(&source); err != nil {
		return nil, fmt.Errorf("invalid source: %w", err)
	}

	return &source, nil
}

func validateSource(source *Source) error {
	if source.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(source.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute URL: %q", source.BaseURL)
	}

	if source.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	if len(source.Pages) == 0 {
		return fmt.Errorf("at least one page is required")
	}

	for i, page := range source.Pages {
		if _, err := movie.ParseStatus(string(page.Category)); err != nil {
			return fmt.Errorf("invalid category at index %d: %w", i, err)
		}
		if page.Path == "" {
			return fmt.Errorf("page at index %d must have a path", i)
		}
	}

	return nil
}
