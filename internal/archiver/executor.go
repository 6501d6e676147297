package archiver

import (
	"context"
	"fmt"
)

// Executor performs the per-record action. In dry-run mode it only reports
// the intent and never touches the surface. It does not retry; the control
// loop decides what a failure means.
type Executor struct {
	surface Surface
	mode    Mode
}

// NewExecutor creates an Executor for the given mode.
func NewExecutor(surface Surface, mode Mode) (*Executor, error) {
	switch mode {
	case ModeDryRun, ModeLive:
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	if surface == nil && mode == ModeLive {
		return nil, fmt.Errorf("surface is nil")
	}
	return &Executor{surface: surface, mode: mode}, nil
}

// Mode returns the executor's mode.
func (e *Executor) Mode() Mode {
	return e.mode
}

// Archive archives record, or simulates it in dry-run mode.
func (e *Executor) Archive(ctx context.Context, record Record) (Action, error) {
	if e.mode == ModeDryRun {
		return ActionDryRun, nil
	}

	if err := e.surface.OpenAndArchive(ctx, record.ID); err != nil {
		return "", fmt.Errorf("archive %s: %w", record.ID, err)
	}
	return ActionArchived, nil
}
