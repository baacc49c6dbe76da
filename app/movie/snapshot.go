package movie

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Snapshot is an immutable, identity-deduplicated set of movies captured in
// one run, ordered by premiere date and then title.
type Snapshot struct {
	movies []Movie
	index  map[Identity]int
}

// NewSnapshot deduplicates records by identity. A movie listed twice (the
// presale window puts it on both pages) is kept once as an upcoming presale.
func NewSnapshot(records ...Movie) *Snapshot {
	index := make(map[Identity]int, len(records))
	movies := make([]Movie, 0, len(records))

	for _, rec := range records {
		rec.Genres = slices.Clone(rec.Genres)
		id := rec.Identity()
		i, dup := index[id]
		if !dup {
			index[id] = len(movies)
			movies = append(movies, rec)
			continue
		}

		kept := &movies[i]
		kept.Status = StatusUpcoming
		kept.Presale = true
		kept.Premiere = kept.Premiere || rec.Premiere
		kept.Genres = mergeGenres(kept.Genres, rec.Genres)
		if kept.URL == "" {
			kept.URL = rec.URL
		}
	}

	slices.SortStableFunc(movies, compareAscending)

	for i, m := range movies {
		index[m.Identity()] = i
	}

	return &Snapshot{movies: movies, index: index}
}

// Empty returns a snapshot with no movies, used as the baseline when no
// reference snapshot exists.
func Empty() *Snapshot {
	return NewSnapshot()
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.movies)
}

// Movies returns a copy of the records in snapshot order.
func (s *Snapshot) Movies() []Movie {
	if s == nil {
		return nil
	}
	out := make([]Movie, len(s.movies))
	for i, m := range s.movies {
		m.Genres = slices.Clone(m.Genres)
		out[i] = m
	}
	return out
}

func (s *Snapshot) Contains(id Identity) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

func (s *Snapshot) Lookup(id Identity) (Movie, bool) {
	if s == nil {
		return Movie{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return Movie{}, false
	}
	m := s.movies[i]
	m.Genres = slices.Clone(m.Genres)
	return m, true
}

// ByStatus returns the movies of one category in snapshot order.
func (s *Snapshot) ByStatus(status Status) []Movie {
	out := make([]Movie, 0)
	for _, m := range s.Movies() {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out
}

func (s *Snapshot) GroupByStatus() map[Status][]Movie {
	groups := make(map[Status][]Movie, len(Statuses))
	for _, status := range Statuses {
		groups[status] = s.ByStatus(status)
	}
	return groups
}

type movieRecord struct {
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	PremiereDate string   `json:"premiere_date"`
	Status       Status   `json:"status"`
	Genres       []string `json:"genres"`
	Premiere     bool     `json:"premiere"`
	Presale      bool     `json:"presale"`
}

// MarshalJSON encodes the snapshot as an ordered array of movie records.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	records := make([]movieRecord, 0, s.Len())
	for _, m := range s.Movies() {
		genres := m.Genres
		if genres == nil {
			genres = []string{}
		}
		records = append(records, movieRecord{
			Title:        m.Title,
			URL:          m.URL,
			PremiereDate: m.PremiereDate.Format(dateLayout),
			Status:       m.Status,
			Genres:       genres,
			Premiere:     m.Premiere,
			Presale:      m.Presale,
		})
	}
	return json.Marshal(records)
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var records []movieRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	movies := make([]Movie, 0, len(records))
	for i, rec := range records {
		status, err := ParseStatus(string(rec.Status))
		if err != nil {
			return fmt.Errorf("snapshot record %d: %w", i, err)
		}
		date, err := time.Parse(dateLayout, rec.PremiereDate)
		if err != nil {
			return fmt.Errorf("snapshot record %d: invalid premiere date: %w", i, err)
		}
		genres := rec.Genres
		if genres == nil {
			genres = []string{}
		}
		movies = append(movies, Movie{
			Title:        rec.Title,
			URL:          rec.URL,
			PremiereDate: date,
			Status:       status,
			Genres:       genres,
			Premiere:     rec.Premiere,
			Presale:      rec.Presale,
		})
	}

	*s = *NewSnapshot(movies...)
	return nil
}

func compareAscending(a, b Movie) int {
	if c := a.PremiereDate.Compare(b.PremiereDate); c != 0 {
		return c
	}
	return strings.Compare(a.Title, b.Title)
}

func compareDescending(a, b Movie) int {
	if c := b.PremiereDate.Compare(a.PremiereDate); c != 0 {
		return c
	}
	return strings.Compare(a.Title, b.Title)
}

func mergeGenres(a, b []string) []string {
	return dedupGenres(append(slices.Clone(a), b...))
}
