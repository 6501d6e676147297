package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/dbsmedya/lmsarchive/internal/config"
	"github.com/dbsmedya/lmsarchive/internal/logger"
)

// PreflightError reports the first failed preflight check.
type PreflightError struct {
	Check   string
	Message string
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}

// CheckResult is the outcome of one preflight check.
type CheckResult struct {
	Name    string
	OK      bool
	Skipped bool
	Detail  string
}

// PreflightReport collects check results in execution order.
type PreflightReport struct {
	Results []CheckResult
}

// OK reports whether every check that ran passed.
func (r *PreflightReport) OK() bool {
	for _, res := range r.Results {
		if !res.OK && !res.Skipped {
			return false
		}
	}
	return true
}

type check struct {
	name string
	// run returns a human readable detail on success.
	run func(ctx context.Context) (string, error)
}

// runChecks runs checks in order. After the first failure the remaining
// checks are marked skipped, since each one depends on its predecessors.
func runChecks(ctx context.Context, checks []check, log *logger.Logger) (*PreflightReport, error) {
	report := &PreflightReport{}
	var firstErr error

	for _, c := range checks {
		if firstErr != nil {
			report.Results = append(report.Results, CheckResult{Name: c.name, Skipped: true, Detail: "skipped"})
			continue
		}

		detail, err := c.run(ctx)
		if err != nil {
			log.Errorf("Preflight %s failed: %v", c.name, err)
			report.Results = append(report.Results, CheckResult{Name: c.name, Detail: err.Error()})
			firstErr = &PreflightError{Check: c.name, Message: err.Error()}
			continue
		}

		log.Infof("Preflight %s OK: %s", c.name, detail)
		report.Results = append(report.Results, CheckResult{Name: c.name, OK: true, Detail: detail})
	}

	return report, firstErr
}

// Preflight verifies the browser can be reached and the listing page looks
// the way the selectors expect. It never changes remote state.
func Preflight(ctx context.Context, cfg *config.Config, listingURL string, log *logger.Logger) (*PreflightReport, error) {
	if log == nil {
		log = logger.NewNop()
	}

	var session *Session
	defer func() {
		if session != nil {
			_ = session.Close()
		}
	}()

	checks := []check{
		{"attach", func(ctx context.Context) (string, error) {
			s, err := Connect(ctx, cfg, listingURL, log)
			if err != nil {
				return "", err
			}
			session = s
			if cfg.Browser.Launch {
				return "launched local Chrome", nil
			}
			return "attached to " + cfg.Browser.DebuggerAddress, nil
		}},
	}

	if cfg.Browser.BaseURL != "" {
		checks = append(checks, check{"base_url", func(ctx context.Context) (string, error) {
			if err := session.Navigate(ctx, cfg.Browser.BaseURL); err != nil {
				return "", err
			}
			return "opened " + cfg.Browser.BaseURL, nil
		}})
	}

	checks = append(checks,
		check{"listing_url", func(ctx context.Context) (string, error) {
			if err := session.Navigate(ctx, listingURL); err != nil {
				return "", err
			}
			return "opened " + listingURL, nil
		}},
		check{"page_size_select", func(ctx context.Context) (string, error) {
			err := withPageTimeout(session.page.Context(ctx), cfg.Browser.ElementTimeout(), func(tp *rod.Page) error {
				_, err := tp.ElementX(cfg.Selectors.PageSizeSelect)
				return err
			})
			if err != nil {
				return "", mapError(err)
			}
			return "found rows-per-page select", nil
		}},
		check{"listing_rows", func(ctx context.Context) (string, error) {
			rows, err := session.ListVisibleRows(ctx)
			if err != nil {
				return "", err
			}
			readable := 0
			for _, row := range rows {
				if row.Err == nil && row.ID != "" {
					readable++
				}
			}
			return fmt.Sprintf("%d rows visible, %d readable", len(rows), readable), nil
		}},
	)

	return runChecks(ctx, checks, log)
}
