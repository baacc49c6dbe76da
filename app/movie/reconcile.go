package movie

import "slices"

// Category holds the reconciliation of one status across two snapshots.
// Added, Removed and Retained never share an identity.
type Category struct {
	Status   Status
	Added    []Movie
	Removed  []Movie
	Retained []Movie
}

// Entry is a currently listed movie together with its novelty flag.
type Entry struct {
	Movie
	Added bool
}

// Listing merges added and retained movies in the category's report order.
func (c Category) Listing() []Entry {
	entries := make([]Entry, 0, len(c.Added)+len(c.Retained))
	for _, m := range c.Added {
		entries = append(entries, Entry{Movie: m, Added: true})
	}
	for _, m := range c.Retained {
		entries = append(entries, Entry{Movie: m})
	}
	cmp := orderFor(c.Status)
	slices.SortStableFunc(entries, func(a, b Entry) int { return cmp(a.Movie, b.Movie) })
	return entries
}

type Reconciliation struct {
	InTheaters Category
	Upcoming   Category
}

type Summary struct {
	Added    int
	Removed  int
	Retained int
}

func (r Reconciliation) Categories() []Category {
	return []Category{r.InTheaters, r.Upcoming}
}

func (r Reconciliation) Summary() Summary {
	var s Summary
	for _, c := range r.Categories() {
		s.Added += len(c.Added)
		s.Removed += len(c.Removed)
		s.Retained += len(c.Retained)
	}
	return s
}

// Reconcile compares current against reference per category. A movie counts
// as added when its identity is new to that category, but as removed only
// when it left the current snapshot entirely, so a status change is never
// reported as a removal.
func Reconcile(current, reference *Snapshot) Reconciliation {
	if reference == nil {
		reference = Empty()
	}
	curGroups := current.GroupByStatus()
	refGroups := reference.GroupByStatus()

	build := func(status Status) Category {
		refIDs := identitySet(refGroups[status])
		c := Category{
			Status:   status,
			Added:    []Movie{},
			Removed:  []Movie{},
			Retained: []Movie{},
		}
		for _, m := range curGroups[status] {
			if refIDs[m.Identity()] {
				c.Retained = append(c.Retained, m)
			} else {
				c.Added = append(c.Added, m)
			}
		}
		for _, m := range refGroups[status] {
			if !current.Contains(m.Identity()) {
				c.Removed = append(c.Removed, m)
			}
		}

		cmp := orderFor(status)
		slices.SortStableFunc(c.Added, cmp)
		slices.SortStableFunc(c.Removed, cmp)
		slices.SortStableFunc(c.Retained, cmp)
		return c
	}

	return Reconciliation{
		InTheaters: build(StatusInTheaters),
		Upcoming:   build(StatusUpcoming),
	}
}

func orderFor(status Status) func(a, b Movie) int {
	if status == StatusInTheaters {
		return compareDescending
	}
	return compareAscending
}

func identitySet(movies []Movie) map[Identity]bool {
	set := make(map[Identity]bool, len(movies))
	for _, m := range movies {
		set[m.Identity()] = true
	}
	return set
}
