package movie

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusInTheaters Status = "cartelera"
	StatusUpcoming   Status = "pronto"
)

// Statuses lists every category in report order.
var Statuses = []Status{StatusInTheaters, StatusUpcoming}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusInTheaters, StatusUpcoming:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown movie status %q", s)
	}
}

const dateLayout = "2006-01-02"

// Movie is one listing entry as seen on a category page at scrape time.
type Movie struct {
	Title        string
	URL          string
	PremiereDate time.Time // UTC midnight
	Status       Status
	Genres       []string
	Premiere     bool
	Presale      bool
}

// Identity is the key two records must share to be the same movie.
type Identity struct {
	Title        string
	PremiereDate string
}

func (m Movie) Identity() Identity {
	return Identity{Title: m.Title, PremiereDate: m.PremiereDate.Format(dateLayout)}
}

// Raw holds the untrusted fields extracted from one listing entry.
type Raw struct {
	Category  Status
	Title     string
	Href      string
	DateText  string
	GenreText string
	Badge     string
}

// ErrParse is wrapped by every listing parse failure.
var ErrParse = errors.New("listing parse error")

type UnparseableDateError struct {
	Input  string
	Reason string
}

func (e *UnparseableDateError) Error() string {
	return fmt.Sprintf("unparseable premiere date %q: %s", e.Input, e.Reason)
}

func (e *UnparseableDateError) Unwrap() error { return ErrParse }

// UnknownBadgeError signals a badge outside the known set, which usually
// means the page markup changed.
type UnknownBadgeError struct {
	Badge string
	Title string
}

func (e *UnknownBadgeError) Error() string {
	return fmt.Sprintf("unknown badge %q on %q", e.Badge, e.Title)
}

func (e *UnknownBadgeError) Unwrap() error { return ErrParse }

type EmptyListingError struct {
	Category Status
}

func (e *EmptyListingError) Error() string {
	return fmt.Sprintf("no movies found in %s listing", e.Category)
}

func (e *EmptyListingError) Unwrap() error { return ErrParse }
