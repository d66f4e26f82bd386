package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/shared"
	tu "github.com/desertthunder/spx/internal/testing"
	"golang.org/x/oauth2"
)

type memoryStore struct {
	mu     sync.Mutex
	cred   *models.Credential
	mints  int
	getErr error
}

func (m *memoryStore) Get(context.Context) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.cred == nil {
		return nil, shared.ErrNoRefreshToken
	}
	return m.cred, nil
}

func (m *memoryStore) Save(_ context.Context, c *models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID() == "" {
		c.SetID("cred-1")
	}
	m.cred = c
	return nil
}

func (m *memoryStore) RecordMint(context.Context, string, time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mints++
	return nil
}

func (m *memoryStore) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	return nil
}

func (m *memoryStore) secret() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return ""
	}
	return m.cred.Secret()
}

type fakeMinter struct {
	rotateTo string
	err      error
	seen     []string
}

func (f *fakeMinter) Mint(_ context.Context, secret string, scopes []string) (*models.AccessToken, error) {
	f.seen = append(f.seen, secret)
	if f.err != nil {
		return nil, f.err
	}
	refresh := secret
	if f.rotateTo != "" {
		refresh = f.rotateTo
	}
	return &models.AccessToken{
		Secret:       "access-for-" + secret,
		Scopes:       scopes,
		Expiry:       time.Now().Add(time.Hour),
		RefreshToken: refresh,
	}, nil
}

func startWorker(t *testing.T, store CredentialStore, minter Minter) *CredentialWorker {
	t.Helper()
	w := NewCredentialWorker(store, minter, tu.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-w.Done()
	})
	return w
}

func requestToken(t *testing.T, w *CredentialWorker) TokenReply {
	t.Helper()
	reply := make(chan TokenReply, 1)
	w.Commands() <- RequestToken{Reply: reply}
	select {
	case r := <-reply:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not reply")
		return TokenReply{}
	}
}

func TestCredentialWorker(t *testing.T) {
	ctx := context.Background()

	t.Run("Seed Then Mint", func(t *testing.T) {
		store := &memoryStore{}
		minter := &fakeMinter{}
		w := startWorker(t, store, minter)

		if err := w.Seed(ctx, "refresh-1", []string{"user-read-private"}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		r := requestToken(t, w)
		if r.Err != nil {
			t.Fatalf("expected token, got %v", r.Err)
		}
		if r.Token.Secret != "access-for-refresh-1" {
			t.Errorf("unexpected token %q", r.Token.Secret)
		}
		if r.Token.RefreshToken != "" {
			t.Error("expected refresh secret to stay inside the worker")
		}
		if store.mints != 1 {
			t.Errorf("expected mint to be recorded, got %d", store.mints)
		}
	})

	t.Run("Rotated Secret Is Stored", func(t *testing.T) {
		store := &memoryStore{}
		minter := &fakeMinter{rotateTo: "refresh-2"}
		w := startWorker(t, store, minter)

		if err := w.Seed(ctx, "refresh-1", nil); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		requestToken(t, w)

		if got := store.secret(); got != "refresh-2" {
			t.Errorf("expected rotated secret, got %q", got)
		}

		minter.rotateTo = ""
		requestToken(t, w)
		if minter.seen[1] != "refresh-2" {
			t.Errorf("expected second mint to use rotated secret, got %q", minter.seen[1])
		}
	})

	t.Run("Missing Credential", func(t *testing.T) {
		w := startWorker(t, &memoryStore{}, &fakeMinter{})

		r := requestToken(t, w)
		if !IsMissingCredential(r.Err) {
			t.Errorf("expected missing credential, got %v", r.Err)
		}
	})

	t.Run("Mint Failure Is Reported", func(t *testing.T) {
		store := &memoryStore{}
		mintErr := errors.New("invalid_grant")
		w := startWorker(t, store, &fakeMinter{err: mintErr})

		if err := w.Seed(ctx, "refresh-1", nil); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		if r := requestToken(t, w); !errors.Is(r.Err, mintErr) {
			t.Errorf("expected mint error, got %v", r.Err)
		}
		if store.mints != 0 {
			t.Error("expected failed mint not to be recorded")
		}
	})

	t.Run("Seed Rejects Blank Secret", func(t *testing.T) {
		w := startWorker(t, &memoryStore{}, &fakeMinter{})

		if err := w.Seed(ctx, "   ", nil); !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected invalid credentials, got %v", err)
		}
	})

	t.Run("Forget Deletes Credential", func(t *testing.T) {
		store := &memoryStore{}
		w := startWorker(t, store, &fakeMinter{})

		if err := w.Seed(ctx, "refresh-1", nil); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		if err := w.Forget(ctx); err != nil {
			t.Fatalf("forget failed: %v", err)
		}
		if store.secret() != "" {
			t.Error("expected credential to be deleted")
		}
	})

	t.Run("Unbuffered Reply Does Not Block", func(t *testing.T) {
		w := startWorker(t, &memoryStore{}, &fakeMinter{})

		w.Commands() <- RequestToken{Reply: make(chan TokenReply)}
		if err := w.Forget(ctx); err != nil {
			t.Errorf("worker stalled on unbuffered reply: %v", err)
		}
	})

	t.Run("Stopped Worker", func(t *testing.T) {
		w := NewCredentialWorker(&memoryStore{}, &fakeMinter{}, tu.NewTestLogger(t))
		wctx, cancel := context.WithCancel(ctx)
		w.Start(wctx)
		cancel()
		<-w.Done()

		if err := w.Seed(ctx, "refresh-1", nil); !errors.Is(err, shared.ErrWorkerStopped) {
			t.Errorf("expected worker stopped, got %v", err)
		}
	})

	t.Run("Serves Refresh Coordinator", func(t *testing.T) {
		store := &memoryStore{}
		w := startWorker(t, store, &fakeMinter{})
		if err := w.Seed(ctx, "refresh-1", nil); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		c := NewRefreshCoordinator(nil, w.Commands(), time.Second, tu.NewTestLogger(t))
		if err := c.Refresh(ctx); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if c.Token().Secret != "access-for-refresh-1" {
			t.Errorf("unexpected token %q", c.Token().Secret)
		}
	})
}

func TestOAuthMinter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
			return
		}
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh-1" {
			t.Errorf("unexpected form %v", r.Form)
		}
		tu.WriteJSON(t, w, map[string]any{
			"access_token":  "fresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "refresh-2",
			"scope":         "user-read-private playlist-read-private",
		})
	}))
	defer server.Close()

	minter := NewOAuthMinter(&oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: server.URL, AuthStyle: oauth2.AuthStyleInHeader},
	})

	token, err := minter.Mint(context.Background(), "refresh-1", nil)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if token.Secret != "fresh" || token.RefreshToken != "refresh-2" {
		t.Errorf("unexpected token %+v", token)
	}
	if len(token.Scopes) != 2 {
		t.Errorf("expected scopes from response, got %v", token.Scopes)
	}
	if token.NeedsRefresh(time.Now()) {
		t.Error("expected a fresh token")
	}
}
