// Package switcher runs the read settings, resolve, persist, build and
// navigate cycle behind every surface (HTTP API and CLI).
// This is part of the Imperative Shell - it handles I/O and calls the pure
// resolver and URL builder.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/artpar/envswitch/internal/core/match"
	"github.com/artpar/envswitch/internal/core/resolve"
	"github.com/artpar/envswitch/internal/core/urlbuild"
	"github.com/artpar/envswitch/internal/core/validation"
	"github.com/artpar/envswitch/internal/shell/clip"
	"github.com/artpar/envswitch/internal/shell/navigate"
	"github.com/artpar/envswitch/internal/shell/store"
)

// =============================================================================
// Service Errors
// =============================================================================

var (
	// ErrEmptyTarget is returned when a switch names no domain.
	ErrEmptyTarget = errors.New("target domain is required")

	// ErrWildcardTarget is returned when asked to navigate to a pattern.
	ErrWildcardTarget = errors.New("cannot navigate to a wildcard domain")

	// ErrInvalidSettings is returned when a settings replacement has
	// error-severity problems.
	ErrInvalidSettings = errors.New("settings are invalid")
)

// =============================================================================
// Service
// =============================================================================

// Service serializes every read-modify-write of settings. Two page loads
// resolving through the same wildcard must not both append the hostname, so
// the whole resolve-and-persist cycle runs under one lock.
type Service struct {
	mu        sync.Mutex
	store     store.Store
	navigator navigate.Navigator
	clipboard clip.Clipboard
	logger    *slog.Logger
}

// NewService creates a new switcher service.
// clipboard may be nil when copy actions are not offered.
func NewService(s store.Store, nav navigate.Navigator, cb clip.Clipboard, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     s,
		navigator: nav,
		clipboard: cb,
		logger:    logger,
	}
}

// =============================================================================
// Context
// =============================================================================

// Flags are the boolean settings a switcher UI renders.
type Flags struct {
	ShowProtocol   bool `json:"showProtocol"`
	AutoCollapse   bool `json:"autoCollapse"`
	AutoRedirect   bool `json:"autoRedirect"`
	NewWindow      bool `json:"newWindow"`
	IncognitoMode  bool `json:"incognitoMode"`
	CollapsedState bool `json:"collapsedState"`
}

func flagsOf(s domain.Settings) Flags {
	return Flags{
		ShowProtocol:   s.ShowProtocol,
		AutoCollapse:   s.AutoCollapse,
		AutoRedirect:   s.AutoRedirect,
		NewWindow:      s.NewWindow,
		IncognitoMode:  s.IncognitoMode,
		CollapsedState: s.CollapsedState,
	}
}

// Choice is a selectable environment with the protocol a switch to it uses.
type Choice struct {
	urlbuild.Choice
	Protocol string `json:"protocol"`
	// Locked is set when a protocol rule forces Protocol.
	Locked bool `json:"locked"`
}

// View is everything a popup or overlay needs to render for a page.
// Project is nil when the page's hostname belongs to no project.
type View struct {
	Location       urlbuild.Location   `json:"location"`
	Project        *domain.Project     `json:"project"`
	MatchedDomain  *domain.DomainEntry `json:"matchedDomain"`
	IsNewlyLearned bool                `json:"isNewlyLearned"`
	Choices        []Choice            `json:"choices"`
	Flags          Flags               `json:"flags"`
}

// Context resolves the page at pageURL. A hostname reached through a
// wildcard is learned and persisted before Context returns.
func (s *Service) Context(ctx context.Context, pageURL string) (*View, error) {
	loc, err := urlbuild.ParseURL(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, pageURL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		settings domain.Settings
		resolved resolve.Context
	)
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		current, err := tx.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		settings = current
		resolved = resolve.Resolve(loc.Hostname, settings.Projects)
		if !resolved.IsNewlyLearned {
			return nil
		}
		if err := tx.SetProjects(ctx, settings.Projects); err != nil {
			return fmt.Errorf("failed to persist learned domain: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if resolved.IsNewlyLearned {
		s.logger.Info("learned domain",
			"hostname", loc.Hostname,
			"project", resolved.Project.Name,
			"label", resolved.MatchedDomain.DisplayLabel(),
		)
	}

	view := &View{
		Location:       loc,
		IsNewlyLearned: resolved.IsNewlyLearned,
		Choices:        []Choice{},
		Flags:          flagsOf(settings),
	}
	if resolved.Project == nil {
		s.logger.Debug("no project for hostname", "hostname", loc.Hostname)
		return view, nil
	}

	project := resolved.Project.Clone()
	view.Project = &project
	view.MatchedDomain = resolved.MatchedDomain
	for _, c := range urlbuild.DomainChoices(&project, loc.Hostname) {
		protocol, locked := urlbuild.EffectiveProtocol(c.Domain, loc.Protocol, settings.ProtocolRules)
		view.Choices = append(view.Choices, Choice{Choice: c, Protocol: protocol, Locked: locked})
	}
	return view, nil
}

// =============================================================================
// Switch
// =============================================================================

// SwitchRequest asks to move the page at PageURL to Domain.
type SwitchRequest struct {
	PageURL string
	Domain  string
	// Protocol is the requested protocol; empty keeps the page's.
	Protocol string
	// DryRun builds the URL without navigating.
	DryRun bool
}

// SwitchResult describes the navigation.
type SwitchResult struct {
	URL       string           `json:"url"`
	Protocol  string           `json:"protocol"`
	Locked    bool             `json:"locked"`
	Navigated bool             `json:"navigated"`
	Options   navigate.Options `json:"options"`
}

// Switch builds the URL for req.Domain, keeping the page's path, query and
// fragment, and opens it the way the newWindow and incognitoMode settings
// say. A protocol rule matching the domain overrides req.Protocol.
func (s *Service) Switch(ctx context.Context, req SwitchRequest) (*SwitchResult, error) {
	target, opts, err := s.buildTarget(ctx, req.PageURL, req.Domain, req.Protocol)
	if err != nil {
		return nil, err
	}
	target.Options = opts

	if req.DryRun {
		s.logger.Debug("dry run switch", "url", target.URL)
		return target, nil
	}

	if err := s.navigator.Navigate(ctx, target.URL, opts); err != nil {
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}
	target.Navigated = true

	s.logger.Info("switched environment",
		"from", req.PageURL,
		"to", target.URL,
		"target", opts.Target(),
	)
	return target, nil
}

func (s *Service) buildTarget(ctx context.Context, pageURL, domainName, protocol string) (*SwitchResult, navigate.Options, error) {
	if domainName == "" {
		return nil, navigate.Options{}, ErrEmptyTarget
	}
	if match.IsWildcard(domainName) {
		return nil, navigate.Options{}, fmt.Errorf("%w: %s", ErrWildcardTarget, domainName)
	}

	loc, err := urlbuild.ParseURL(pageURL)
	if err != nil {
		return nil, navigate.Options{}, fmt.Errorf("%w: %q", err, pageURL)
	}
	if protocol == "" {
		protocol = loc.Protocol
	}

	settings, err := s.store.Get(ctx, []domain.SettingKey{
		domain.KeyProtocolRules,
		domain.KeyNewWindow,
		domain.KeyIncognitoMode,
	})
	if err != nil {
		return nil, navigate.Options{}, fmt.Errorf("failed to load settings: %w", err)
	}

	effective, locked := urlbuild.EffectiveProtocol(domainName, protocol, settings.ProtocolRules)
	result := &SwitchResult{
		URL:      urlbuild.BuildURL(domainName, protocol, loc.Path, settings.ProtocolRules),
		Protocol: effective,
		Locked:   locked,
	}
	opts := navigate.Options{
		NewWindow: settings.NewWindow,
		Incognito: settings.IncognitoMode,
	}
	return result, opts, nil
}

// =============================================================================
// Clipboard Actions
// =============================================================================

// CopyPath copies the path, query and fragment of pageURL.
func (s *Service) CopyPath(ctx context.Context, pageURL string) (string, error) {
	loc, err := urlbuild.ParseURL(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, pageURL)
	}
	return loc.Path, s.copy(loc.Path)
}

// CopyURL copies the URL a switch to domainName would open. An empty
// domainName copies the page's own URL with protocol rules applied.
func (s *Service) CopyURL(ctx context.Context, pageURL, domainName, protocol string) (string, error) {
	if domainName == "" {
		loc, err := urlbuild.ParseURL(pageURL)
		if err != nil {
			return "", fmt.Errorf("%w: %q", err, pageURL)
		}
		domainName = loc.Hostname
	}

	target, _, err := s.buildTarget(ctx, pageURL, domainName, protocol)
	if err != nil {
		return "", err
	}
	return target.URL, s.copy(target.URL)
}

func (s *Service) copy(text string) error {
	if s.clipboard == nil {
		return clip.ErrUnsupported
	}
	if err := s.clipboard.Write(text); err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}
	return nil
}

// =============================================================================
// Settings
// =============================================================================

// Settings returns the current settings.
func (s *Service) Settings(ctx context.Context) (domain.Settings, error) {
	return s.store.GetAll(ctx)
}

// Initialize writes the default settings on first run.
func (s *Service) Initialize(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	did, err := s.store.Initialize(ctx)
	if err != nil {
		return false, err
	}
	if did {
		s.logger.Info("default settings initialized")
	}
	return did, nil
}

// Edit loads the settings, applies fn and persists the result in one
// transaction. Nothing is written when fn fails.
func (s *Service) Edit(ctx context.Context, fn func(*domain.Settings) error) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated domain.Settings
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		current, err := tx.GetAll(ctx)
		if err != nil {
			return err
		}
		if err := fn(&current); err != nil {
			return err
		}
		if current.Projects == nil {
			current.Projects = []domain.Project{}
		}
		if current.ProtocolRules == nil {
			current.ProtocolRules = []string{}
		}
		if err := tx.Set(ctx, current.Values()); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return domain.Settings{}, err
	}
	return updated, nil
}

// Replace overwrites every setting. Warnings are returned alongside a
// successful save; error-severity problems reject the save.
func (s *Service) Replace(ctx context.Context, next domain.Settings) ([]validation.FieldError, error) {
	problems := validation.ValidateSettings(next)
	if validation.HasErrors(problems) {
		return problems, ErrInvalidSettings
	}
	_, err := s.Edit(ctx, func(current *domain.Settings) error {
		*current = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return problems, nil
}

// Reset restores the default settings.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Reset(ctx); err != nil {
		return err
	}
	s.logger.Info("settings reset to defaults")
	return nil
}

// SetFlag sets one boolean setting.
func (s *Service) SetFlag(ctx context.Context, key domain.SettingKey, value bool) error {
	if !key.IsFlag() {
		return fmt.Errorf("%w: %s", domain.ErrNotAFlag, key)
	}
	if _, err := domain.ParseSettingKey(string(key)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Set(ctx, map[domain.SettingKey]any{key: value})
}

// ToggleCollapsed flips the overlay's collapsed state and returns the new
// value.
func (s *Service) ToggleCollapsed(ctx context.Context) (bool, error) {
	updated, err := s.Edit(ctx, func(current *domain.Settings) error {
		current.CollapsedState = !current.CollapsedState
		return nil
	})
	if err != nil {
		return false, err
	}
	return updated.CollapsedState, nil
}

// ToggleFloating turns the floating overlay on or off for a project.
func (s *Service) ToggleFloating(ctx context.Context, projectName string, enabled bool) error {
	_, err := s.Edit(ctx, func(current *domain.Settings) error {
		return current.SetFloatingEnabled(projectName, enabled)
	})
	return err
}
