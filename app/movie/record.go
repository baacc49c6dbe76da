package movie

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	badgePremiere = "Estreno"
	badgePresale  = "Preventa"
)

var spanishMonths = map[string]time.Month{
	"ene": time.January,
	"feb": time.February,
	"mar": time.March,
	"abr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"ago": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dic": time.December,
}

// SpanishMonth maps a month name or its abbreviation to a month number.
// Only the first three letters are significant.
func SpanishMonth(name string) (time.Month, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if utf8.RuneCountInString(name) < 3 {
		return 0, false
	}
	prefix := string([]rune(name)[:3])
	m, ok := spanishMonths[prefix]
	return m, ok
}

// ParsePremiereDate parses strings such as "Estreno: 14 - marzo".
// The year comes from the scrape unless the text carries one as a third part.
func ParsePremiereDate(text string, year int) (time.Time, error) {
	value := strings.ToLower(stripLabel(text))
	parts := strings.Split(value, "-")
	if len(parts) < 2 || len(parts) > 3 {
		return time.Time{}, &UnparseableDateError{Input: text, Reason: "expected \"day - month\""}
	}

	dayPart := strings.TrimSpace(parts[0])
	if !isDigits(dayPart) {
		return time.Time{}, &UnparseableDateError{Input: text, Reason: "day is not numeric"}
	}
	day, err := strconv.Atoi(dayPart)
	if err != nil {
		return time.Time{}, &UnparseableDateError{Input: text, Reason: "day is not numeric"}
	}

	month, ok := SpanishMonth(parts[1])
	if !ok {
		return time.Time{}, &UnparseableDateError{Input: text, Reason: fmt.Sprintf("unknown month %q", strings.TrimSpace(parts[1]))}
	}

	if len(parts) == 3 {
		yearPart := strings.TrimSpace(parts[2])
		if len(yearPart) != 4 || !isDigits(yearPart) {
			return time.Time{}, &UnparseableDateError{Input: text, Reason: "year must have four digits"}
		}
		if year, err = strconv.Atoi(yearPart); err != nil {
			return time.Time{}, &UnparseableDateError{Input: text, Reason: "year is not numeric"}
		}
	}

	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day || date.Month() != month {
		return time.Time{}, &UnparseableDateError{Input: text, Reason: "day out of range for month"}
	}

	return date, nil
}

// ParseGenres turns "Género: Acción,  Drama" into a sorted, deduplicated list.
func ParseGenres(text string) []string {
	value := strings.Join(strings.Fields(stripLabel(text)), " ")
	if value == "" {
		return []string{}
	}
	return dedupGenres(strings.Split(value, ","))
}

// dedupGenres normalizes to NFC, drops blanks and case-insensitive repeats
// (the first spelling wins) and sorts the result.
func dedupGenres(tokens []string) []string {
	folder := cases.Fold()
	seen := make(map[string]bool)
	genres := make([]string, 0, len(tokens))
	for _, token := range tokens {
		genre := norm.NFC.String(strings.TrimSpace(token))
		if genre == "" {
			continue
		}
		key := folder.String(genre)
		if seen[key] {
			continue
		}
		seen[key] = true
		genres = append(genres, genre)
	}

	slices.Sort(genres)
	return genres
}

// NewMovie validates raw listing fields and builds a Movie.
func NewMovie(raw Raw, year int, baseURL *url.URL) (Movie, error) {
	status, err := ParseStatus(string(raw.Category))
	if err != nil {
		return Movie{}, err
	}

	title := norm.NFC.String(strings.Join(strings.Fields(raw.Title), " "))
	if title == "" {
		return Movie{}, fmt.Errorf("%w: listing entry without title", ErrParse)
	}

	premiereDate, err := ParsePremiereDate(raw.DateText, year)
	if err != nil {
		return Movie{}, err
	}

	m := Movie{
		Title:        title,
		URL:          resolveURL(baseURL, raw.Href),
		PremiereDate: premiereDate,
		Status:       status,
		Genres:       ParseGenres(raw.GenreText),
	}

	switch badge := strings.TrimSpace(raw.Badge); badge {
	case "":
	case badgePremiere:
		m.Premiere = true
	case badgePresale:
		m.Presale = true
		m.Status = StatusUpcoming
	default:
		return Movie{}, &UnknownBadgeError{Badge: badge, Title: title}
	}

	return m, nil
}

// BuildListing converts every entry of one category page. An empty page is
// an error since it almost always means the markup changed.
func BuildListing(category Status, raws []Raw, year int, baseURL *url.URL) ([]Movie, error) {
	if len(raws) == 0 {
		return nil, &EmptyListingError{Category: category}
	}

	movies := make([]Movie, 0, len(raws))
	for _, raw := range raws {
		raw.Category = category
		m, err := NewMovie(raw, year, baseURL)
		if err != nil {
			return nil, fmt.Errorf("%s listing: %w", category, err)
		}
		movies = append(movies, m)
	}

	return movies, nil
}

func isDigits(s string) bool {
	return s != "" && !strings.ContainsFunc(s, func(r rune) bool { return r < '0' || r > '9' })
}

func stripLabel(text string) string {
	if i := strings.Index(text, ":"); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(text)
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if base == nil || href == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
