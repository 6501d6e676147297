package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"

	"github.com/dbsmedya/lmsarchive/internal/archiver"
)

// staleMessages are CDP error messages that mean a node or execution
// context we held went away because the page changed.
var staleMessages = []string{
	"Cannot find context with specified id",
	"Could not find object with given id",
	"No node with given id found",
	"Execution context was destroyed",
	"Node is detached from document",
	"Node with given id does not belong to the document",
}

// mapError translates rod and CDP errors onto the runner's taxonomy.
// The original error stays in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, archiver.ErrStaleReference) || errors.Is(err, archiver.ErrTimeout) {
		return err
	}

	var objErr *rod.ObjectNotFoundError
	if errors.As(err, &objErr) {
		return fmt.Errorf("%w: %w", archiver.ErrStaleReference, err)
	}

	var cdpErr *cdp.Error
	if errors.As(err, &cdpErr) {
		for _, msg := range staleMessages {
			if strings.Contains(cdpErr.Message, msg) {
				return fmt.Errorf("%w: %w", archiver.ErrStaleReference, err)
			}
		}
	}

	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", archiver.ErrTimeout, err)
	}

	return err
}
