package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/shared"
	tu "github.com/desertthunder/spx/internal/testing"
)

type tokenServer struct {
	*httptest.Server
	exchanges atomic.Int32
	refreshes atomic.Int32
	fail      atomic.Bool
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token request: %v", err)
		}

		if ts.fail.Load() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}

		var access string
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			ts.exchanges.Add(1)
			if r.PostForm.Get("code") != "good-code" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant"}`)
				return
			}
			access = "exchanged-token"
		case "refresh_token":
			ts.refreshes.Add(1)
			access = "refreshed-token"
		default:
			t.Errorf("unexpected grant type %q", r.PostForm.Get("grant_type"))
		}

		tu.WriteJSON(t, w, map[string]any{
			"access_token":  access,
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "refresh-secret",
			"scope":         "user-read-private streaming",
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

type recordingSeeder struct {
	mu     sync.Mutex
	seeded []string
}

func (s *recordingSeeder) Seed(_ context.Context, refreshToken string, _ []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeded = append(s.seeded, refreshToken)
	return nil
}

// capturingOpener records the authorize URL so tests can echo its state back.
type capturingOpener struct {
	mu  sync.Mutex
	url string
}

func (o *capturingOpener) open(u string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.url = u
	return nil
}

func (o *capturingOpener) state(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	u, err := url.Parse(o.url)
	if err != nil {
		t.Fatalf("opener captured invalid URL %q: %v", o.url, err)
	}
	return u.Query().Get("state")
}

// lazyReader defers building its content until first read.
type lazyReader struct {
	build func() string
	r     io.Reader
}

func (l *lazyReader) Read(p []byte) (int, error) {
	if l.r == nil {
		l.r = strings.NewReader(l.build())
	}
	return l.r.Read(p)
}

func newTestFlow(t *testing.T, ts *tokenServer, mutate func(*FlowConfig)) (*Flow, *TokenStore) {
	t.Helper()
	logger := tu.NewTestLogger(t)
	store := NewTokenStore(filepath.Join(t.TempDir(), shared.TokenCacheFile), logger)

	oauthCfg := NewOAuthConfig("client", "secret", "http://127.0.0.1:8888/callback")
	oauthCfg.Endpoint.AuthURL = ts.URL + "/authorize"
	oauthCfg.Endpoint.TokenURL = ts.URL + "/api/token"

	cfg := FlowConfig{
		OAuth:           oauthCfg,
		Store:           store,
		Port:            8888,
		CallbackTimeout: time.Second,
		Logger:          logger,
		Listen: func(context.Context, int, *log.Logger) (string, error) {
			t.Error("listener should not be started")
			return "", shared.ErrNoCallback
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewFlow(cfg), store
}

func TestTokenStore(t *testing.T) {
	t.Run("Round Trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", shared.TokenCacheFile)
		store := NewTokenStore(path, tu.NewTestLogger(t))

		original := &models.AccessToken{
			Secret:       "secret",
			TokenType:    "Bearer",
			Scopes:       []string{"streaming", "user-read-private"},
			Expiry:       time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
			RefreshToken: "refresh",
		}
		if err := store.Save(original); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		tu.AssertFileMode(t, path, 0o600)

		loaded, ok := store.Load()
		if !ok {
			t.Fatal("expected cached token")
		}
		if loaded.Secret != original.Secret || loaded.TokenType != original.TokenType ||
			loaded.RefreshToken != original.RefreshToken || !loaded.Expiry.Equal(original.Expiry) {
			t.Errorf("round trip mismatch: got %+v, want %+v", loaded, original)
		}
		if strings.Join(loaded.Scopes, " ") != strings.Join(original.Scopes, " ") {
			t.Errorf("scopes mismatch: got %v", loaded.Scopes)
		}
	})

	t.Run("Classification After Load", func(t *testing.T) {
		store := NewTokenStore(filepath.Join(t.TempDir(), shared.TokenCacheFile), tu.NewTestLogger(t))
		now := time.Now()

		if err := store.Save(&models.AccessToken{Secret: "a", Expiry: now.Add(-time.Hour)}); err != nil {
			t.Fatal(err)
		}
		past, _ := store.Load()
		if !past.NeedsRefresh(now) {
			t.Error("expected expired token to need refresh")
		}

		if err := store.Save(&models.AccessToken{Secret: "a", Expiry: now.Add(10 * time.Minute)}); err != nil {
			t.Fatal(err)
		}
		future, _ := store.Load()
		if !future.Valid(now) {
			t.Error("expected token 10 minutes ahead to be valid")
		}
	})

	t.Run("Missing File Is A Miss", func(t *testing.T) {
		store := NewTokenStore(filepath.Join(t.TempDir(), "absent.json"), tu.NewTestLogger(t))
		if _, ok := store.Load(); ok {
			t.Error("expected miss for absent file")
		}
	})

	t.Run("Corrupt File Is A Miss", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), shared.TokenCacheFile)
		if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
			t.Fatal(err)
		}
		store := NewTokenStore(path, tu.NewTestLogger(t))
		if _, ok := store.Load(); ok {
			t.Error("expected miss for corrupt file")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), shared.TokenCacheFile)
		store := NewTokenStore(path, tu.NewTestLogger(t))
		if err := store.Save(&models.AccessToken{Secret: "a"}); err != nil {
			t.Fatal(err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Errorf("clearing twice should succeed, got %v", err)
		}
		if _, ok := store.Load(); ok {
			t.Error("expected miss after clear")
		}
	})
}

func TestFlow(t *testing.T) {
	t.Run("Valid Cache Short Circuits", func(t *testing.T) {
		ts := newTokenServer(t)
		flow, store := newTestFlow(t, ts, nil)

		if err := store.Save(&models.AccessToken{Secret: "cached", Expiry: time.Now().Add(time.Hour)}); err != nil {
			t.Fatal(err)
		}

		token, err := flow.Authenticate(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.Secret != "cached" {
			t.Errorf("expected cached token, got %s", token.Secret)
		}
		if ts.exchanges.Load()+ts.refreshes.Load() != 0 {
			t.Error("expected no network calls for a valid cached token")
		}
		if flow.State() != StatePersisted {
			t.Errorf("expected persisted state, got %v", flow.State())
		}
	})

	t.Run("Expired Cache Refreshes", func(t *testing.T) {
		ts := newTokenServer(t)
		seeder := &recordingSeeder{}
		flow, store := newTestFlow(t, ts, func(c *FlowConfig) { c.Seeder = seeder })

		if err := store.Save(&models.AccessToken{Secret: "old", RefreshToken: "refresh-secret", Expiry: time.Now().Add(-time.Minute)}); err != nil {
			t.Fatal(err)
		}

		token, err := flow.Authenticate(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.Secret != "refreshed-token" {
			t.Errorf("expected refreshed token, got %s", token.Secret)
		}
		if ts.refreshes.Load() != 1 {
			t.Errorf("expected one refresh call, got %d", ts.refreshes.Load())
		}

		saved, ok := store.Load()
		if !ok || saved.Secret != "refreshed-token" {
			t.Error("expected refreshed token to be persisted")
		}
		if len(seeder.seeded) != 1 {
			t.Errorf("expected refresh secret to be seeded once, got %d", len(seeder.seeded))
		}
	})

	t.Run("Expired Cache Renews From Worker", func(t *testing.T) {
		ts := newTokenServer(t)
		renewed := &models.AccessToken{Secret: "renewed", Expiry: time.Now().Add(time.Hour)}
		flow, store := newTestFlow(t, ts, func(c *FlowConfig) {
			c.Renew = func(context.Context) (*models.AccessToken, error) { return renewed, nil }
		})

		if err := store.Save(&models.AccessToken{Secret: "old", Expiry: time.Now().Add(-time.Minute)}); err != nil {
			t.Fatal(err)
		}

		token, err := flow.Authenticate(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.Secret != "renewed" {
			t.Errorf("expected renewed token, got %s", token.Secret)
		}
		if ts.refreshes.Load() != 0 {
			t.Error("expected renew hook to replace the direct refresh")
		}
	})

	t.Run("Seeded Secret Stays Out Of Cache", func(t *testing.T) {
		ts := newTokenServer(t)
		seeder := &recordingSeeder{}
		opener := &capturingOpener{}

		flow, store := newTestFlow(t, ts, func(c *FlowConfig) {
			c.Seeder = seeder
			c.OpenBrowser = true
			c.Opener = opener.open
			c.Listen = func(context.Context, int, *log.Logger) (string, error) {
				return "http://127.0.0.1:8888/callback?code=good-code&state=" + opener.state(t), nil
			}
		})

		token, err := flow.Login(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.RefreshToken != "" {
			t.Error("expected returned token to omit the refresh secret")
		}
		if len(seeder.seeded) != 1 || seeder.seeded[0] != "refresh-secret" {
			t.Errorf("expected refresh secret to be seeded, got %v", seeder.seeded)
		}
		if !strings.Contains(tu.MustReadFile(t, store.Path()), "exchanged-token") {
			t.Error("expected access token in cache")
		}
		if strings.Contains(tu.MustReadFile(t, store.Path()), "refresh-secret") {
			t.Error("expected refresh secret to be kept out of the cache")
		}
	})

	t.Run("Callback Exchange", func(t *testing.T) {
		ts := newTokenServer(t)
		opener := &capturingOpener{}
		var out bytes.Buffer

		flow, store := newTestFlow(t, ts, func(c *FlowConfig) {
			c.OpenBrowser = true
			c.Opener = opener.open
			c.Output = &out
			c.Listen = func(ctx context.Context, port int, _ *log.Logger) (string, error) {
				if port != 8888 {
					t.Errorf("expected configured port, got %d", port)
				}
				if _, ok := ctx.Deadline(); !ok {
					t.Error("expected callback wait to be bounded")
				}
				return fmt.Sprintf("http://127.0.0.1:8888/callback?code=good-code&state=%s", opener.state(t)), nil
			}
		})

		token, err := flow.Authenticate(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.Secret != "exchanged-token" {
			t.Errorf("expected exchanged token, got %s", token.Secret)
		}
		if ts.exchanges.Load() != 1 {
			t.Errorf("expected exactly one exchange, got %d", ts.exchanges.Load())
		}
		if _, ok := store.Load(); !ok {
			t.Error("expected token to be persisted")
		}
		if !strings.Contains(out.String(), ts.URL+"/authorize") {
			t.Error("expected authorize URL to be printed")
		}

		authURL, _ := url.Parse(opener.url)
		if got := authURL.Query().Get("scope"); got != strings.Join(Scopes, " ") {
			t.Errorf("expected full scope list, got %q", got)
		}
		if got := authURL.Query().Get("redirect_uri"); got != "http://127.0.0.1:8888/callback" {
			t.Errorf("unexpected redirect uri %q", got)
		}
	})

	t.Run("Manual Fallback", func(t *testing.T) {
		ts := newTokenServer(t)
		opener := &capturingOpener{}
		var out bytes.Buffer

		flow, _ := newTestFlow(t, ts, func(c *FlowConfig) {
			c.OpenBrowser = true
			c.Opener = opener.open
			c.Output = &out
			c.Listen = func(context.Context, int, *log.Logger) (string, error) {
				return "", shared.ErrListenerBind
			}
			c.Input = &lazyReader{build: func() string {
				return fmt.Sprintf("http://127.0.0.1:8888/callback?code=good-code&state=%s\n", opener.state(t))
			}}
		})

		token, err := flow.Login(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.Secret != "exchanged-token" {
			t.Errorf("expected exchanged token, got %s", token.Secret)
		}
		if !strings.Contains(out.String(), "Enter the URL you were redirected to:") {
			t.Error("expected manual prompt")
		}
	})

	t.Run("Manual Fallback Bad Input", func(t *testing.T) {
		ts := newTokenServer(t)
		flow, _ := newTestFlow(t, ts, func(c *FlowConfig) {
			c.Listen = func(context.Context, int, *log.Logger) (string, error) {
				return "", shared.ErrTimeout
			}
			c.Input = strings.NewReader("not a url with a code\n")
		})

		_, err := flow.Login(context.Background())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}
		if flow.State() != StateFailed {
			t.Errorf("expected failed state, got %v", flow.State())
		}
		if ts.exchanges.Load() != 0 {
			t.Error("expected no exchange without a code")
		}
	})

	t.Run("Exchange Failure Is Terminal", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.fail.Store(true)
		opener := &capturingOpener{}

		flow, store := newTestFlow(t, ts, func(c *FlowConfig) {
			c.OpenBrowser = true
			c.Opener = opener.open
			c.Listen = func(context.Context, int, *log.Logger) (string, error) {
				return "http://127.0.0.1:8888/callback?code=good-code&state=" + opener.state(t), nil
			}
		})

		_, err := flow.Login(context.Background())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}
		if _, ok := store.Load(); ok {
			t.Error("expected nothing to be persisted")
		}
	})

	t.Run("Real Listener", func(t *testing.T) {
		ts := newTokenServer(t)
		port := tu.FreePort(t)
		opener := &capturingOpener{}

		flow, _ := newTestFlow(t, ts, func(c *FlowConfig) {
			c.Port = port
			c.OpenBrowser = true
			c.Listen = nil
			c.Opener = func(u string) error {
				_ = opener.open(u)
				go redirectBrowser(t, port, opener.state(t))
				return nil
			}
		})

		token, err := flow.Login(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.Secret != "exchanged-token" {
			t.Errorf("expected exchanged token, got %s", token.Secret)
		}
	})
}

// redirectBrowser plays the browser side of the redirect, retrying until the listener is bound.
func redirectBrowser(t *testing.T, port int, state string) {
	target := fmt.Sprintf("http://127.0.0.1:%d/callback?code=good-code&state=%s", port, state)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(target)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("listener never accepted the redirect")
}
