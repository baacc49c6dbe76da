package movie

import (
	"errors"
	"fmt"
	"strings"
)

const (
	markPremiere = "🍿"
	markAdded    = "🆕"
	markPresale  = "🎟️"
	markRemoved  = "👋"
)

// ErrMalformedReconciliation reports a reconciliation that breaks the
// engine's guarantees. It is a programming error, never a data error.
var ErrMalformedReconciliation = errors.New("malformed reconciliation")

type Renderer struct {
	Heading         string
	InTheatersLabel string
	UpcomingLabel   string
}

func NewRenderer() *Renderer {
	return &Renderer{
		Heading:         "Películas Cineco",
		InTheatersLabel: "Cartelera",
		UpcomingLabel:   "Pronto",
	}
}

// Render produces the markdown changelog. Output depends only on rec.
func (r *Renderer) Render(rec Reconciliation) (string, error) {
	if err := validate(rec); err != nil {
		return "", err
	}

	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Heading)
	fmt.Fprintf(&b, "## %s\n\n", r.InTheatersLabel)
	for _, e := range rec.InTheaters.Listing() {
		b.WriteString("- ")
		if e.Premiere {
			b.WriteString(markPremiere)
		}
		if e.Added {
			b.WriteString(markAdded)
		}
		writeLink(&b, e.Movie)
	}
	writeRemoved(&b, rec.InTheaters.Removed)

	fmt.Fprintf(&b, "\n## %s\n", r.UpcomingLabel)
	var currentDate string
	for _, e := range rec.Upcoming.Listing() {
		if date := e.PremiereDate.Format(dateLayout); date != currentDate {
			currentDate = date
			fmt.Fprintf(&b, "\n### %s\n\n", date)
		}
		b.WriteString("- ")
		if e.Added {
			b.WriteString(markAdded)
		}
		if e.Presale {
			b.WriteString(markPresale)
		}
		writeLink(&b, e.Movie)
	}
	writeRemoved(&b, rec.Upcoming.Removed)

	return b.String(), nil
}

func writeLink(b *strings.Builder, m Movie) {
	if m.URL == "" {
		fmt.Fprintf(b, "%s\n", m.Title)
		return
	}
	fmt.Fprintf(b, "[%s](%s)\n", m.Title, m.URL)
}

func writeRemoved(b *strings.Builder, removed []Movie) {
	for _, m := range removed {
		fmt.Fprintf(b, "- %s %s\n", markRemoved, m.Title)
	}
}

func validate(rec Reconciliation) error {
	categories := []struct {
		name   string
		status Status
		c      Category
	}{
		{"in theaters", StatusInTheaters, rec.InTheaters},
		{"upcoming", StatusUpcoming, rec.Upcoming},
	}
	for _, cat := range categories {
		name, c := cat.name, cat.c
		if c.Status != cat.status {
			return fmt.Errorf("%w: %s category has status %q", ErrMalformedReconciliation, name, c.Status)
		}

		seen := make(map[Identity]string)
		lists := []struct {
			label  string
			movies []Movie
		}{
			{"added", c.Added},
			{"removed", c.Removed},
			{"retained", c.Retained},
		}
		for _, list := range lists {
			for _, m := range list.movies {
				if m.Status != c.Status {
					return fmt.Errorf("%w: %q in %s %s has status %q", ErrMalformedReconciliation, m.Title, name, list.label, m.Status)
				}
				if prev, ok := seen[m.Identity()]; ok {
					return fmt.Errorf("%w: %q appears in both %s and %s of %s", ErrMalformedReconciliation, m.Title, prev, list.label, name)
				}
				seen[m.Identity()] = list.label
			}
		}
	}
	return nil
}
