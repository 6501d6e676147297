// Package browser drives the LMS web UI through Chrome DevTools using rod.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/dbsmedya/lmsarchive/internal/config"
	"github.com/dbsmedya/lmsarchive/internal/logger"
)

// Session is a connection to one Chrome tab. It is not safe for concurrent
// use; the runner drives it from a single goroutine.
type Session struct {
	browser    *rod.Browser
	page       *rod.Page
	launch     *launcher.Launcher
	cfg        config.BrowserConfig
	listing    config.ListingConfig
	selectors  config.SelectorConfig
	listingURL string
	logger     *logger.Logger
}

// Connect attaches to the operator's Chrome, or launches one when
// browser.launch is set. listingURL is the page ReloadListing navigates to.
func Connect(ctx context.Context, cfg *config.Config, listingURL string, log *logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.NewNop()
	}

	s := &Session{
		cfg:        cfg.Browser,
		listing:    cfg.Listing,
		selectors:  cfg.Selectors,
		listingURL: listingURL,
		logger:     log,
	}

	controlURL, err := s.resolveControlURL()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		s.cleanupLauncher()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser

	page, err := s.pickPage()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.page = page

	log.Infow("Connected to Chrome", "control_url", controlURL, "launched", s.launch != nil)
	return s, nil
}

func (s *Session) resolveControlURL() (string, error) {
	if !s.cfg.Launch {
		u, err := launcher.ResolveURL(s.cfg.DebuggerAddress)
		if err != nil {
			return "", fmt.Errorf("resolve debugger address %s: %w", s.cfg.DebuggerAddress, err)
		}
		return u, nil
	}

	l := launcher.New().Headless(s.cfg.Headless)
	if s.cfg.Bin != "" {
		l = l.Bin(s.cfg.Bin)
	}
	u, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch chrome: %w", err)
	}
	s.launch = l
	return u, nil
}

// pickPage reuses the first open tab so the operator's logged-in session
// carries over, and opens a blank one otherwise.
func (s *Session) pickPage() (*rod.Page, error) {
	pages, err := s.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	if len(pages) > 0 {
		return pages.First(), nil
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return page, nil
}

// Navigate opens url in the session's tab and waits for it to load.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return withPageTimeout(s.page.Context(ctx), s.cfg.NavigationTimeout(), func(p *rod.Page) error {
		if err := p.Navigate(url); err != nil {
			return err
		}
		return p.WaitLoad()
	})
}

// Close releases the session. A Chrome that was launched by us is closed;
// an attached one is left running for the operator.
func (s *Session) Close() error {
	if s.launch == nil {
		return nil
	}
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	s.cleanupLauncher()
	return err
}

func (s *Session) cleanupLauncher() {
	if s.launch != nil {
		s.launch.Kill()
		s.launch.Cleanup()
	}
}

func withPageTimeout(p *rod.Page, d time.Duration, fn func(*rod.Page) error) error {
	tp := p.Timeout(d)
	defer tp.CancelTimeout()
	return fn(tp)
}

func withElementTimeout(el *rod.Element, d time.Duration, fn func(*rod.Element) error) error {
	te := el.Timeout(d)
	defer te.CancelTimeout()
	return fn(te)
}

// settle waits d unless ctx ends first.
func settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
