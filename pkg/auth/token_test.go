package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func newTestManager(fetch func(ctx context.Context) (*oauth2.Token, error)) *Manager {
	return &Manager{
		skew:  DefaultExpirySkew,
		fetch: fetch,
		now:   time.Now,
	}
}

func TestNewManager_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"missing client id", Config{ClientSecret: "s", TenantID: "t"}, false},
		{"missing secret", Config{ClientID: "c", TenantID: "t"}, false},
		{"missing tenant and token url", Config{ClientID: "c", ClientSecret: "s"}, false},
		{"tenant derives token url", Config{ClientID: "c", ClientSecret: "s", TenantID: "t"}, true},
		{"explicit token url", Config{ClientID: "c", ClientSecret: "s", TokenURL: "https://example.test/token"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.cfg)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestToken_CachedUntilSkewWindow(t *testing.T) {
	var calls atomic.Int32
	m := newTestManager(func(ctx context.Context) (*oauth2.Token, error) {
		calls.Add(1)
		return &oauth2.Token{
			AccessToken: "tok",
			Expiry:      time.Now().Add(time.Hour),
		}, nil
	})

	for i := 0; i < 5; i++ {
		tok, err := m.Token(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if tok != "tok" {
			t.Fatalf("unexpected token %q", tok)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("fetch called %d times, want 1", got)
	}
}

func TestToken_RefreshesInsideSkewWindow(t *testing.T) {
	var calls atomic.Int32
	m := newTestManager(func(ctx context.Context) (*oauth2.Token, error) {
		n := calls.Add(1)
		expiry := time.Now().Add(4 * time.Minute) // inside the 5m skew
		if n > 1 {
			expiry = time.Now().Add(time.Hour)
		}
		return &oauth2.Token{AccessToken: "tok", Expiry: expiry}, nil
	})

	if _, err := m.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Cached token expires within the skew window, so this refreshes.
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := calls.Load(); got != 2 {
		t.Fatalf("fetch called %d times, want 2", got)
	}
}

func TestToken_SingleRefreshUnderConcurrency(t *testing.T) {
	var calls atomic.Int32
	m := newTestManager(func(ctx context.Context) (*oauth2.Token, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return &oauth2.Token{AccessToken: "tok", Expiry: time.Now().Add(time.Hour)}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Token(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("fetch called %d times under concurrency, want 1", got)
	}
}

func TestToken_AcquisitionFailureSurfaced(t *testing.T) {
	wantErr := errors.New("invalid_client")
	m := newTestManager(func(ctx context.Context) (*oauth2.Token, error) {
		return nil, wantErr
	})

	if _, err := m.Token(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped acquisition error, got %v", err)
	}
}

func TestInvalidate_ForcesRefresh(t *testing.T) {
	var calls atomic.Int32
	m := newTestManager(func(ctx context.Context) (*oauth2.Token, error) {
		calls.Add(1)
		return &oauth2.Token{AccessToken: "tok", Expiry: time.Now().Add(time.Hour)}, nil
	})

	if _, err := m.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	m.Invalidate()
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := calls.Load(); got != 2 {
		t.Fatalf("fetch called %d times, want 2", got)
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("secrettokenvalue"); got != "secr...alue" {
		t.Errorf("Redact = %q", got)
	}
	if got := Redact("short"); got != "*****" {
		t.Errorf("Redact short = %q", got)
	}
}
