package switcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/artpar/envswitch/internal/core/domain"
	"github.com/artpar/envswitch/internal/core/urlbuild"
	"github.com/artpar/envswitch/internal/shell/clip"
	"github.com/artpar/envswitch/internal/shell/navigate"
	"github.com/artpar/envswitch/internal/shell/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

type fixture struct {
	svc   *Service
	store *store.SQLiteStore
	nav   *navigate.RecordingNavigator
	clip  *clip.Memory
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.SetProjects(ctx, []domain.Project{
		{
			Name: "Shop",
			Domains: []domain.DomainEntry{
				domain.Labeled("shop.local", "Local"),
				domain.Labeled("dev.shop.io", "Development"),
				domain.Bare("www.shop.io"),
				domain.Bare("*.preview.shop.io"),
			},
		},
	}))
	require.NoError(t, s.Set(ctx, map[domain.SettingKey]any{
		domain.KeyProtocolRules: []string{"*.shop.io|https", "shop.local|http"},
	}))

	nav := &navigate.RecordingNavigator{}
	mem := &clip.Memory{}
	return &fixture{
		svc:   NewService(s, nav, mem, nil),
		store: s,
		nav:   nav,
		clip:  mem,
	}
}

// =============================================================================
// Context Tests
// =============================================================================

func TestContext_ExactDomain(t *testing.T) {
	f := setupService(t)

	view, err := f.svc.Context(context.Background(), "http://shop.local:3000/cart?id=7#summary")
	require.NoError(t, err)

	require.NotNil(t, view.Project)
	assert.Equal(t, "Shop", view.Project.Name)
	require.NotNil(t, view.MatchedDomain)
	assert.Equal(t, "Local", view.MatchedDomain.DisplayLabel())
	assert.False(t, view.IsNewlyLearned)
	assert.Equal(t, "/cart?id=7#summary", view.Location.Path)

	require.Len(t, view.Choices, 4)
	assert.True(t, view.Choices[0].Selected)
	assert.Equal(t, "http:", view.Choices[0].Protocol)
	assert.True(t, view.Choices[0].Locked)
	assert.Equal(t, "https:", view.Choices[1].Protocol)
	assert.True(t, view.Choices[1].Locked)
	assert.True(t, view.Choices[3].Wildcard)
	assert.Equal(t, "http:", view.Choices[3].Protocol, "patterns are not protocol rule targets")
	assert.False(t, view.Choices[3].Locked)
}

func TestContext_UnknownDomain(t *testing.T) {
	f := setupService(t)

	view, err := f.svc.Context(context.Background(), "https://news.ycombinator.com/")
	require.NoError(t, err)
	assert.Nil(t, view.Project)
	assert.Nil(t, view.MatchedDomain)
	assert.NotNil(t, view.Choices)
	assert.Empty(t, view.Choices)
	assert.Equal(t, domain.DefaultSettings().AutoRedirect, view.Flags.AutoRedirect)
}

func TestContext_LearnsAndPersists(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	view, err := f.svc.Context(ctx, "https://pr-42.preview.shop.io/")
	require.NoError(t, err)
	assert.True(t, view.IsNewlyLearned)
	require.NotNil(t, view.MatchedDomain)
	assert.Equal(t, domain.Labeled("pr-42.preview.shop.io", "pr-42"), *view.MatchedDomain)

	settings, err := f.store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, settings.Projects[0].Domains, 5)
	assert.Equal(t, "pr-42.preview.shop.io", settings.Projects[0].Domains[4].Value())

	again, err := f.svc.Context(ctx, "https://pr-42.preview.shop.io/other")
	require.NoError(t, err)
	assert.False(t, again.IsNewlyLearned)
	assert.True(t, again.Choices[4].Selected)
}

func TestContext_ConcurrentLoadsLearnOnce(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	learned := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, err := f.svc.Context(ctx, "https://feat-x.preview.shop.io/")
			if assert.NoError(t, err) {
				learned <- view.IsNewlyLearned
			}
		}()
	}
	wg.Wait()
	close(learned)

	count := 0
	for l := range learned {
		if l {
			count++
		}
	}
	assert.Equal(t, 1, count)

	settings, err := f.store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, settings.Projects[0].Domains, 5)
}

func TestContext_MixedCaseHost(t *testing.T) {
	f := setupService(t)

	view, err := f.svc.Context(context.Background(), "https://DEV.Shop.IO/cart")
	require.NoError(t, err)
	require.NotNil(t, view.Project)
	assert.Equal(t, "Shop", view.Project.Name)
	assert.Equal(t, "dev.shop.io", view.Location.Hostname)
	assert.False(t, view.IsNewlyLearned)
	assert.True(t, view.Choices[1].Selected)

	res, err := f.svc.Switch(context.Background(), SwitchRequest{PageURL: "https://DEV.Shop.IO/cart", Domain: "www.shop.io"})
	require.NoError(t, err)
	assert.Equal(t, "https://www.shop.io/cart", res.URL)
}

func TestContext_LearnedDomainsFromSeparateProcesses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "envswitch.db")
	ctx := context.Background()

	open := func() *Service {
		s, err := store.NewSQLiteStore(path)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return NewService(s, &navigate.RecordingNavigator{}, &clip.Memory{}, nil)
	}

	seed, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, seed.SetProjects(ctx, []domain.Project{
		{Name: "Shop", Domains: []domain.DomainEntry{domain.Bare("*.preview.shop.io")}},
	}))
	require.NoError(t, seed.Close())

	// Each service has its own lock, like a server and a CLI run.
	services := []*Service{open(), open()}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			host := fmt.Sprintf("https://pr-%d.preview.shop.io/", i)
			_, err := services[i%2].Context(ctx, host)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	reader, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })
	settings, err := reader.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, settings.Projects, 1)
	assert.Len(t, settings.Projects[0].Domains, 11)
}

func TestContext_InvalidURL(t *testing.T) {
	f := setupService(t)
	_, err := f.svc.Context(context.Background(), "not a url")
	assert.ErrorIs(t, err, urlbuild.ErrInvalidURL)
}

// =============================================================================
// Switch Tests
// =============================================================================

func TestSwitch(t *testing.T) {
	tests := []struct {
		name       string
		req        SwitchRequest
		wantURL    string
		wantLocked bool
	}{
		{
			name:       "forced https keeps path query and fragment",
			req:        SwitchRequest{PageURL: "http://shop.local:3000/cart?id=7#summary", Domain: "dev.shop.io"},
			wantURL:    "https://dev.shop.io/cart?id=7#summary",
			wantLocked: true,
		},
		{
			name:       "forced http overrides requested https",
			req:        SwitchRequest{PageURL: "https://www.shop.io/", Domain: "shop.local", Protocol: "https"},
			wantURL:    "http://shop.local/",
			wantLocked: true,
		},
		{
			name:    "no rule keeps the page protocol",
			req:     SwitchRequest{PageURL: "https://www.shop.io/a", Domain: "staging.internal"},
			wantURL: "https://staging.internal/a",
		},
		{
			name:    "no rule uses the requested protocol",
			req:     SwitchRequest{PageURL: "https://www.shop.io/a", Domain: "staging.internal", Protocol: "http:"},
			wantURL: "http://staging.internal/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupService(t)

			res, err := f.svc.Switch(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, res.URL)
			assert.Equal(t, tt.wantLocked, res.Locked)
			assert.True(t, res.Navigated)

			last, ok := f.nav.Last()
			require.True(t, ok)
			assert.Equal(t, tt.wantURL, last.URL)
		})
	}
}

func TestSwitch_UsesWindowSettings(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SetFlag(ctx, domain.KeyNewWindow, true))
	require.NoError(t, f.svc.SetFlag(ctx, domain.KeyIncognitoMode, true))

	res, err := f.svc.Switch(ctx, SwitchRequest{PageURL: "https://www.shop.io/", Domain: "dev.shop.io"})
	require.NoError(t, err)
	assert.Equal(t, navigate.Options{NewWindow: true, Incognito: true}, res.Options)

	last, _ := f.nav.Last()
	assert.True(t, last.Options.Incognito)
}

func TestSwitch_DryRunDoesNotNavigate(t *testing.T) {
	f := setupService(t)

	res, err := f.svc.Switch(context.Background(), SwitchRequest{
		PageURL: "https://www.shop.io/x",
		Domain:  "dev.shop.io",
		DryRun:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://dev.shop.io/x", res.URL)
	assert.False(t, res.Navigated)
	assert.Empty(t, f.nav.Visits())
}

func TestSwitch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     SwitchRequest
		wantErr error
	}{
		{"no domain", SwitchRequest{PageURL: "https://www.shop.io/"}, ErrEmptyTarget},
		{"wildcard", SwitchRequest{PageURL: "https://www.shop.io/", Domain: "*.preview.shop.io"}, ErrWildcardTarget},
		{"bad page url", SwitchRequest{PageURL: "www.shop.io", Domain: "dev.shop.io"}, urlbuild.ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupService(t)
			_, err := f.svc.Switch(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.nav.Visits())
		})
	}
}

func TestSwitch_NavigatorFailure(t *testing.T) {
	f := setupService(t)
	f.nav.SetErr(navigate.ErrNoIncognitoCommand)

	_, err := f.svc.Switch(context.Background(), SwitchRequest{PageURL: "https://www.shop.io/", Domain: "dev.shop.io"})
	assert.ErrorIs(t, err, navigate.ErrNoIncognitoCommand)
}

// =============================================================================
// Clipboard Tests
// =============================================================================

func TestCopyPath(t *testing.T) {
	f := setupService(t)

	got, err := f.svc.CopyPath(context.Background(), "https://www.shop.io/a/b?x=1#top")
	require.NoError(t, err)
	assert.Equal(t, "/a/b?x=1#top", got)
	assert.Equal(t, "/a/b?x=1#top", f.clip.Text())
}

func TestCopyURL(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	got, err := f.svc.CopyURL(ctx, "http://shop.local/a?x=1", "dev.shop.io", "")
	require.NoError(t, err)
	assert.Equal(t, "https://dev.shop.io/a?x=1", got)
	assert.Equal(t, got, f.clip.Text())

	got, err = f.svc.CopyURL(ctx, "http://www.shop.io/a", "", "")
	require.NoError(t, err)
	assert.Equal(t, "https://www.shop.io/a", got)
	assert.Empty(t, f.nav.Visits())
}

func TestCopy_NoClipboard(t *testing.T) {
	f := setupService(t)
	svc := NewService(f.store, f.nav, nil, nil)

	_, err := svc.CopyPath(context.Background(), "https://www.shop.io/")
	assert.ErrorIs(t, err, clip.ErrUnsupported)
}

// =============================================================================
// Settings Tests
// =============================================================================

func TestSetFlag(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SetFlag(ctx, domain.KeyAutoRedirect, false))
	s, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	assert.False(t, s.AutoRedirect)

	assert.ErrorIs(t, f.svc.SetFlag(ctx, domain.KeyProjects, true), domain.ErrNotAFlag)
	assert.ErrorIs(t, f.svc.SetFlag(ctx, "detectors", true), domain.ErrUnknownSettingKey)
}

func TestToggleCollapsed(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	got, err := f.svc.ToggleCollapsed(ctx)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = f.svc.ToggleCollapsed(ctx)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestToggleFloating(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ToggleFloating(ctx, "Shop", true))
	s, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	assert.True(t, s.Projects[0].FloatingEnabled)

	assert.ErrorIs(t, f.svc.ToggleFloating(ctx, "Nope", true), domain.ErrProjectNotFound)
}

func TestEdit_FailureWritesNothing(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	_, err := f.svc.Edit(ctx, func(s *domain.Settings) error {
		s.NewWindow = true
		return s.AddDomain("Nope", "x.io", "")
	})
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	s, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	assert.False(t, s.NewWindow)
}

func TestReplace(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	next := domain.DefaultSettings()
	next.ProtocolRules = []string{"broken"}
	problems, err := f.svc.Replace(ctx, next)
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, "protocolRules[0]", problems[0].Field)

	s, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, next, s)
}

func TestReplace_RejectsErrors(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	next := domain.DefaultSettings()
	next.Projects = append(next.Projects, next.Projects[0])
	_, err := f.svc.Replace(ctx, next)
	assert.ErrorIs(t, err, ErrInvalidSettings)

	s, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Shop"}, s.ProjectNames())
}

func TestInitializeAndReset(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	did, err := f.svc.Initialize(ctx)
	require.NoError(t, err)
	assert.False(t, did, "fixture already wrote settings")

	require.NoError(t, f.svc.Reset(ctx))
	s, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), s)
}
