package local

import (
	"context"
	"errors"
	"testing"

	websec "github.com/halcyonsec/websec-go"
	"github.com/halcyonsec/websec-go/basicauth"
)

type mapDirectory struct {
	accounts map[string]*Account
	err      error
}

func (d *mapDirectory) Lookup(_ context.Context, id string) (*Account, error) {
	if d.err != nil {
		return nil, d.err
	}
	acct, ok := d.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return acct, nil
}

func testDirectory() *mapDirectory {
	return &mapDirectory{accounts: map[string]*Account{
		"alice": {
			Authorization: basicauth.Encode("alice"),
			Principal:     &websec.Principal{ID: "alice", Name: "Alice"},
			Roles:         []string{"admin"},
		},
	}}
}

func TestRealm_Kinds(t *testing.T) {
	r := New(testDirectory())
	kinds := r.Kinds()
	if len(kinds) != 1 || kinds[0] != websec.KindBasic {
		t.Fatalf("expected [basic], got %v", kinds)
	}
}

func TestRealm_Authenticate(t *testing.T) {
	r := New(testDirectory())

	info, err := r.Authenticate(context.Background(), websec.NewBasicCredential(basicauth.Encode("alice")))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if info.Principal.ID != "alice" {
		t.Errorf("expected principal alice, got %s", info.Principal.ID)
	}
	if len(info.Roles) != 1 || info.Roles[0] != "admin" {
		t.Errorf("expected roles [admin], got %v", info.Roles)
	}
}

func TestRealm_UnknownPrincipal(t *testing.T) {
	r := New(testDirectory())

	_, err := r.Authenticate(context.Background(), websec.NewBasicCredential(basicauth.Encode("mallory")))
	if !errors.Is(err, websec.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestRealm_CredentialMismatch(t *testing.T) {
	dir := testDirectory()
	dir.accounts["alice"].Authorization = basicauth.Encode("alice-rotated")
	r := New(dir)

	// presented material decodes to a known id but no longer matches the
	// stored authorization: indistinguishable from an unknown principal
	_, err := r.Authenticate(context.Background(), websec.NewBasicCredential(basicauth.Encode("alice")))
	if !errors.Is(err, websec.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if errors.Is(err, websec.ErrRealmUnavailable) {
		t.Error("a mismatch is not an outage")
	}
}

func TestRealm_MalformedAuthorization(t *testing.T) {
	r := New(testDirectory())

	_, err := r.Authenticate(context.Background(), websec.NewBasicCredential("%%%not-base64%%%"))
	if !errors.Is(err, websec.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for garbage input, got %v", err)
	}
}

func TestRealm_DirectoryOutage(t *testing.T) {
	r := New(&mapDirectory{err: errors.New("connection refused")})

	_, err := r.Authenticate(context.Background(), websec.NewBasicCredential(basicauth.Encode("alice")))
	if !errors.Is(err, websec.ErrRealmUnavailable) {
		t.Fatalf("expected ErrRealmUnavailable, got %v", err)
	}
	if errors.Is(err, websec.ErrAuthenticationFailed) {
		t.Error("an outage must not read as a rejection")
	}
}

func TestRealm_WrongCredentialType(t *testing.T) {
	r := New(testDirectory())

	_, err := r.Authenticate(context.Background(), websec.NewRemoteToken(websec.PlatformQQ, "tok"))
	if err == nil {
		t.Fatal("expected error for non-basic credential")
	}
}
