package archiver

import (
	"context"
	"sync"
	"time"
)

// fakeSurface is a deterministic in-memory stand-in for the remote listing.
// Archiving a record removes it from the listing, like the real system.
type fakeSurface struct {
	mu sync.Mutex

	listing     []Row
	reloadErrs  []error
	listErrs    []error
	archiveErrs map[string][]error

	reloads       int
	archiveCalls  []string
	archived      []string
	reloadEntered chan struct{}
	reloadRelease chan struct{}
}

func newFakeSurface(ids ...string) *fakeSurface {
	f := &fakeSurface{archiveErrs: make(map[string][]error)}
	for _, id := range ids {
		f.listing = append(f.listing, Row{ID: id, Name: "Course " + id})
	}
	return f
}

func (f *fakeSurface) ReloadListing(ctx context.Context, pageSize string) error {
	if f.reloadEntered != nil {
		f.reloadEntered <- struct{}{}
		<-f.reloadRelease
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return pop(&f.reloadErrs)
}

func (f *fakeSurface) ListVisibleRows(ctx context.Context) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(&f.listErrs); err != nil {
		return nil, err
	}
	rows := make([]Row, len(f.listing))
	copy(rows, f.listing)
	return rows, nil
}

func (f *fakeSurface) OpenAndArchive(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archiveCalls = append(f.archiveCalls, id)

	errs := f.archiveErrs[id]
	if len(errs) > 0 {
		f.archiveErrs[id] = errs[1:]
		return errs[0]
	}

	for i, row := range f.listing {
		if row.ID == id {
			f.listing = append(f.listing[:i:i], f.listing[i+1:]...)
			break
		}
	}
	f.archived = append(f.archived, id)
	return nil
}

func (f *fakeSurface) listingIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.listing))
	for _, row := range f.listing {
		ids = append(ids, row.ID)
	}
	return ids
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

// fixedClock returns a clock that advances one second per call.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 12, 9, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func testOptions() Options {
	return Options{
		PageSize:     "100",
		PollInterval: time.Millisecond,
		Now:          fixedClock(),
	}
}

// counter returns a flag that is true for calls whose 1-based index
// satisfies fn.
func counter(fn func(call int) bool) func() bool {
	var mu sync.Mutex
	calls := 0
	return func() bool {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return fn(calls)
	}
}
