package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/dbsmedya/lmsarchive/internal/archiver"
)

var _ archiver.Surface = (*Session)(nil)

// ReloadListing navigates to the listing and normalises page size and sort
// order. Page size and sort failures are logged and tolerated; the listing
// is still usable, just in a less convenient shape.
func (s *Session) ReloadListing(ctx context.Context, pageSize string) error {
	if err := s.Navigate(ctx, s.listingURL); err != nil {
		return mapError(fmt.Errorf("navigate to listing: %w", err))
	}

	p := s.page.Context(ctx)

	if err := s.selectPageSize(p, pageSize); err != nil {
		s.logger.Warnf("Could not set rows per page to %s: %v", pageSize, err)
	} else {
		settle(ctx, s.listing.Settle())
	}

	for i := 0; i < s.listing.SortClicks; i++ {
		err := withPageTimeout(p, s.cfg.ElementTimeout(), func(tp *rod.Page) error {
			el, err := tp.ElementX(s.selectors.SortHeader)
			if err != nil {
				return err
			}
			return el.Click(proto.InputMouseButtonLeft, 1)
		})
		if err != nil {
			s.logger.Warnf("Could not sort listing: %v", err)
			break
		}
		settle(ctx, s.listing.Settle())
	}

	return nil
}

func (s *Session) selectPageSize(p *rod.Page, pageSize string) error {
	return withPageTimeout(p, s.cfg.ElementTimeout(), func(tp *rod.Page) error {
		el, err := tp.ElementX(s.selectors.PageSizeSelect)
		if err != nil {
			return err
		}
		return el.Select([]string{pageSize}, true, rod.SelectorTypeText)
	})
}

// ListVisibleRows reads every visible listing row. A row whose cells cannot
// be read is returned with Err set instead of failing the whole call.
func (s *Session) ListVisibleRows(ctx context.Context) ([]archiver.Row, error) {
	elements, err := s.rowElements(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]archiver.Row, 0, len(elements))
	for _, el := range elements {
		rows = append(rows, s.readRow(el))
	}
	return rows, nil
}

// rowElements waits briefly for the first row, then returns all of them.
// A listing that never shows a row is empty, not broken.
func (s *Session) rowElements(ctx context.Context) (rod.Elements, error) {
	var elements rod.Elements
	err := withPageTimeout(s.page.Context(ctx), s.cfg.ElementTimeout(), func(tp *rod.Page) error {
		if _, err := tp.ElementX(s.selectors.TableRow); err != nil {
			return err
		}
		var err error
		elements, err = tp.ElementsX(s.selectors.TableRow)
		return err
	})

	switch {
	case err == nil:
		// Rebind so the elements outlive the lookup deadline.
		for i := range elements {
			elements[i] = elements[i].Context(ctx)
		}
		return elements, nil
	case errors.Is(err, context.DeadlineExceeded):
		return nil, nil
	default:
		return nil, mapError(fmt.Errorf("read listing rows: %w", err))
	}
}

func (s *Session) readRow(row *rod.Element) archiver.Row {
	var out archiver.Row
	err := withElementTimeout(row, s.cfg.ElementTimeout(), func(el *rod.Element) error {
		var err error
		if out.ID, err = cellText(el, s.selectors.IDCell); err != nil {
			return fmt.Errorf("read id cell: %w", err)
		}
		if out.Name, err = cellText(el, s.selectors.NameLink); err != nil {
			return fmt.Errorf("read name link: %w", err)
		}
		if s.selectors.StatusCell != "" {
			// Status is informational only.
			out.Status, _ = cellText(el, s.selectors.StatusCell)
		}
		return nil
	})
	if err != nil {
		out.Err = mapError(err)
	}
	return out
}

func cellText(row *rod.Element, xpath string) (string, error) {
	el, err := row.ElementX(xpath)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// OpenAndArchive opens the record with the given id from the current
// listing and saves it with the archived status. A record that is no
// longer in the listing is reported as a stale reference.
func (s *Session) OpenAndArchive(ctx context.Context, id string) error {
	link, err := s.findNameLink(ctx, id)
	if err != nil {
		return err
	}

	if err := link.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return mapError(fmt.Errorf("open record %s: %w", id, err))
	}

	p := s.page.Context(ctx)
	steps := []struct {
		name string
		run  func(tp *rod.Page) error
	}{
		{"click edit", func(tp *rod.Page) error { return clickX(tp, s.selectors.EditButton) }},
		{"set status", func(tp *rod.Page) error {
			el, err := tp.ElementX(s.selectors.StatusSelect)
			if err != nil {
				return err
			}
			return el.Select([]string{s.selectors.ArchivedOption}, true, rod.SelectorTypeText)
		}},
		{"save", func(tp *rod.Page) error { return clickX(tp, s.selectors.SaveButton) }},
	}

	for _, step := range steps {
		if err := withPageTimeout(p, s.cfg.ElementTimeout(), step.run); err != nil {
			return mapError(fmt.Errorf("%s for %s: %w", step.name, id, err))
		}
	}

	s.logger.WithRecord(id).Debug("Record saved as archived")
	return nil
}

func (s *Session) findNameLink(ctx context.Context, id string) (*rod.Element, error) {
	elements, err := s.rowElements(ctx)
	if err != nil {
		return nil, err
	}

	for _, row := range elements {
		var link *rod.Element
		err := withElementTimeout(row, s.cfg.ElementTimeout(), func(el *rod.Element) error {
			rowID, err := cellText(el, s.selectors.IDCell)
			if err != nil || rowID != id {
				return err
			}
			link, err = el.ElementX(s.selectors.NameLink)
			return err
		})
		if err != nil {
			return nil, mapError(fmt.Errorf("find record %s: %w", id, err))
		}
		if link != nil {
			return link.Context(ctx), nil
		}
	}

	return nil, fmt.Errorf("%w: record %s is no longer listed", archiver.ErrStaleReference, id)
}

func clickX(p *rod.Page, xpath string) error {
	el, err := p.ElementX(xpath)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}
