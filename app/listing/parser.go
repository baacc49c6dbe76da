package listing

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/cine-comb/app/movie"
)

const (
	selectorItem  = "a.movie-item"
	selectorMeta  = "span.movie-item__meta"
	selectorBadge = "span.movie-item__badge"
	selectorTitle = "h2"

	labelPremiere = "Estreno:"
	labelGenre    = "Género:"
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse extracts the raw fields of every movie card on a listing page.
// Validation happens later in movie.BuildListing.
func (p *Parser) Parse(page Page) ([]movie.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	raws := make([]movie.Raw, 0)
	doc.Find(selectorItem).Each(func(_ int, s *goquery.Selection) {
		raw := movie.Raw{
			Category: page.Category,
			Title:    strings.TrimSpace(s.Find(selectorTitle).First().Text()),
			Href:     s.AttrOr("href", ""),
		}

		s.Find(selectorMeta).Each(func(_ int, meta *goquery.Selection) {
			text := strings.TrimSpace(meta.Text())
			switch {
			case strings.Contains(text, labelPremiere):
				raw.DateText = text
			case strings.Contains(text, labelGenre):
				raw.GenreText = text
			}
		})

		if badge := s.Find(selectorBadge).First(); badge.Length() > 0 {
			raw.Badge = strings.TrimSpace(badge.Text())
		}

		raws = append(raws, raw)
	})

	return raws, nil
}
