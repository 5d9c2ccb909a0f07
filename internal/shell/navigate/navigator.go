// Package navigate opens switched-to URLs in the user's browser.
package navigate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/pkg/browser"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNoIncognitoCommand is returned when a private window is requested
	// but no command to open one is configured.
	ErrNoIncognitoCommand = errors.New("no incognito browser command configured")

	// ErrEmptyURL is returned when asked to open nothing.
	ErrEmptyURL = errors.New("url is required")
)

// =============================================================================
// Types
// =============================================================================

// Options selects where a URL opens.
//
// Incognito takes precedence over NewWindow. With neither set the URL
// replaces the current page, which for a desktop browser means the
// default-browser handler decides.
type Options struct {
	NewWindow bool `json:"newWindow"`
	Incognito bool `json:"incognito"`
}

// Target names where a URL opens, for logs and API responses.
func (o Options) Target() string {
	switch {
	case o.Incognito:
		return "incognito"
	case o.NewWindow:
		return "new_window"
	default:
		return "current"
	}
}

// Navigator is the navigation sink of a switch.
type Navigator interface {
	Navigate(ctx context.Context, url string, opts Options) error
}

// =============================================================================
// BrowserNavigator
// =============================================================================

// BrowserNavigator opens URLs with the system browser.
type BrowserNavigator struct {
	incognito []string
	logger    *slog.Logger

	// openURL and run are swapped in tests.
	openURL func(url string) error
	run     func(ctx context.Context, name string, args ...string) error
}

// NewBrowserNavigator returns a navigator that opens URLs with the
// default browser. incognitoCommand is a shell-style command line such as
// "google-chrome --incognito"; the URL is appended as the last argument.
func NewBrowserNavigator(incognitoCommand string, logger *slog.Logger) (*BrowserNavigator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var args []string
	if incognitoCommand != "" {
		parsed, err := shellwords.Parse(incognitoCommand)
		if err != nil {
			return nil, fmt.Errorf("parse incognito command: %w", err)
		}
		args = parsed
	}

	return &BrowserNavigator{
		incognito: args,
		logger:    logger,
		openURL:   browser.OpenURL,
		run:       runDetached,
	}, nil
}

// Navigate implements Navigator.
func (n *BrowserNavigator) Navigate(ctx context.Context, url string, opts Options) error {
	if url == "" {
		return ErrEmptyURL
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	n.logger.Debug("navigating", "url", url, "target", opts.Target())

	if opts.Incognito {
		if len(n.incognito) == 0 {
			return ErrNoIncognitoCommand
		}
		args := append(append([]string{}, n.incognito[1:]...), url)
		if err := n.run(ctx, n.incognito[0], args...); err != nil {
			return fmt.Errorf("open incognito window: %w", err)
		}
		return nil
	}

	if err := n.openURL(url); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

func runDetached(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait() //nolint:errcheck
	return nil
}

// =============================================================================
// RecordingNavigator
// =============================================================================

// Visit is one recorded navigation.
type Visit struct {
	URL     string
	Options Options
}

// RecordingNavigator records navigations instead of performing them.
// Used for dry runs and in tests.
type RecordingNavigator struct {
	mu     sync.Mutex
	visits []Visit

	// Err, when set, is returned from every Navigate call.
	Err error
}

// Navigate implements Navigator.
func (r *RecordingNavigator) Navigate(ctx context.Context, url string, opts Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.visits = append(r.visits, Visit{URL: url, Options: opts})
	return nil
}

// SetErr sets the error later Navigate calls return.
func (r *RecordingNavigator) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
}

// Visits returns a copy of the recorded navigations.
func (r *RecordingNavigator) Visits() []Visit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Visit(nil), r.visits...)
}

// Last returns the most recent navigation.
func (r *RecordingNavigator) Last() (Visit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.visits) == 0 {
		return Visit{}, false
	}
	return r.visits[len(r.visits)-1], true
}
