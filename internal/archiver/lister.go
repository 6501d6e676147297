package archiver

import (
	"context"
	"fmt"
	"strings"
)

// RowError describes a listing row that could not be read.
type RowError struct {
	Index int // 1-based position in the visible listing
	Err   error
}

// Lister turns the surface's visible rows into Records.
//
// It performs no retries. Rows the surface failed to read are omitted and
// reported back so the caller can log them; they resurface on the next
// reload if they still exist.
type Lister struct {
	surface Surface
}

// NewLister creates a Lister over the given surface.
func NewLister(surface Surface) *Lister {
	return &Lister{surface: surface}
}

// List returns the readable records in listing order, plus the rows it had
// to skip. An empty listing is not an error.
func (l *Lister) List(ctx context.Context) ([]Record, []RowError, error) {
	rows, err := l.surface.ListVisibleRows(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list visible rows: %w", err)
	}

	records := make([]Record, 0, len(rows))
	var skipped []RowError

	for i, row := range rows {
		if row.Err != nil {
			skipped = append(skipped, RowError{Index: i + 1, Err: row.Err})
			continue
		}

		id := strings.TrimSpace(row.ID)
		if id == "" {
			skipped = append(skipped, RowError{Index: i + 1, Err: ErrMissingID})
			continue
		}

		records = append(records, Record{
			ID:          id,
			DisplayName: strings.TrimSpace(row.Name),
			Status:      strings.TrimSpace(row.Status),
		})
	}

	return records, skipped, nil
}
