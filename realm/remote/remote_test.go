package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	websec "github.com/halcyonsec/websec-go"
)

func TestRealm_Kinds(t *testing.T) {
	r := New(Config{})
	kinds := r.Kinds()
	if len(kinds) != 1 || kinds[0] != websec.KindRemote {
		t.Fatalf("expected [remote], got %v", kinds)
	}
}

func TestRealm_Authenticate(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotToken = r.PostFormValue("access_token")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"open_id":"abc123","name":"Alice","roles":["user"]}`))
	}))
	defer srv.Close()

	r := New(Config{Endpoints: map[websec.Platform]string{websec.PlatformQQ: srv.URL}})

	info, err := r.Authenticate(context.Background(), websec.NewRemoteToken(websec.PlatformQQ, "tok-1"))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if gotToken != "tok-1" {
		t.Errorf("expected access_token tok-1 forwarded, got %q", gotToken)
	}
	if info.Principal.ID != "qq:abc123" {
		t.Errorf("expected principal qq:abc123, got %s", info.Principal.ID)
	}
	if info.Principal.Name != "Alice" {
		t.Errorf("expected name Alice, got %s", info.Principal.Name)
	}
	if len(info.Roles) != 1 || info.Roles[0] != "user" {
		t.Errorf("expected roles [user], got %v", info.Roles)
	}
}

func TestRealm_ProviderRejectsToken(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		r := New(Config{Endpoints: map[websec.Platform]string{websec.PlatformQQ: srv.URL}})
		_, err := r.Authenticate(context.Background(), websec.NewRemoteToken(websec.PlatformQQ, "bad"))
		srv.Close()

		if !errors.Is(err, websec.ErrAuthenticationFailed) {
			t.Errorf("status %d: expected ErrAuthenticationFailed, got %v", status, err)
		}
		if errors.Is(err, websec.ErrRealmUnavailable) {
			t.Errorf("status %d: a rejection is not an outage", status)
		}
	}
}

func TestRealm_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := New(Config{Endpoints: map[websec.Platform]string{websec.PlatformQQ: srv.URL}})
	_, err := r.Authenticate(context.Background(), websec.NewRemoteToken(websec.PlatformQQ, "tok"))
	if !errors.Is(err, websec.ErrRealmUnavailable) {
		t.Fatalf("expected ErrRealmUnavailable on 500, got %v", err)
	}
}

func TestRealm_ProviderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	r := New(Config{
		Endpoints: map[websec.Platform]string{websec.PlatformQQ: srv.URL},
		Timeout:   50 * time.Millisecond,
	})
	_, err := r.Authenticate(context.Background(), websec.NewRemoteToken(websec.PlatformQQ, "tok"))
	if !errors.Is(err, websec.ErrRealmUnavailable) {
		t.Fatalf("expected ErrRealmUnavailable on timeout, got %v", err)
	}
}

func TestRealm_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listening anymore

	r := New(Config{Endpoints: map[websec.Platform]string{websec.PlatformQQ: srv.URL}})
	_, err := r.Authenticate(context.Background(), websec.NewRemoteToken(websec.PlatformQQ, "tok"))
	if !errors.Is(err, websec.ErrRealmUnavailable) {
		t.Fatalf("expected ErrRealmUnavailable on refused connection, got %v", err)
	}
}

func TestRealm_UnknownPlatformEndpoint(t *testing.T) {
	r := New(Config{Endpoints: map[websec.Platform]string{websec.PlatformQQ: "http://example.invalid"}})
	_, err := r.Authenticate(context.Background(), websec.NewRemoteToken(websec.PlatformWeibo, "tok"))
	if !errors.Is(err, websec.ErrRealmUnavailable) {
		t.Fatalf("expected ErrRealmUnavailable for unconfigured platform, got %v", err)
	}
}

func TestRealm_MissingOpenID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"name":"nobody"}`))
	}))
	defer srv.Close()

	r := New(Config{Endpoints: map[websec.Platform]string{websec.PlatformQQ: srv.URL}})
	_, err := r.Authenticate(context.Background(), websec.NewRemoteToken(websec.PlatformQQ, "tok"))
	if !errors.Is(err, websec.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for empty open_id, got %v", err)
	}
}
