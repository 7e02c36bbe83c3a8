package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/truxe-io/heimdall/internal/directory"
	apperrors "github.com/truxe-io/heimdall/internal/errors"
)

func newTestSet(t *testing.T) (*Set, *directory.InMemoryDirectory) {
	t.Helper()

	dir := directory.NewInMemoryDirectory()
	return New(dir, dir), dir
}

func activeClient() directory.Client {
	return directory.Client{
		ClientID:      "cl_test",
		Name:          "Test App",
		RedirectURIs:  []string{"https://app.example.com/callback"},
		AllowedScopes: []string{"openid", "email", "profile"},
		TenantID:      "tenant-a",
		Status:        directory.ClientStatusActive,
	}
}

func TestValidateClient(t *testing.T) {
	ctx := context.Background()
	set, dir := newTestSet(t)
	dir.PutClient(activeClient())

	t.Run("active client passes", func(t *testing.T) {
		client, err := set.ValidateClient(ctx, "cl_test")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if client.ClientID != "cl_test" {
			t.Fatalf("unexpected client: %+v", client)
		}
	})

	t.Run("unknown client fails", func(t *testing.T) {
		_, err := set.ValidateClient(ctx, "cl_missing")
		if !apperrors.IsKind(err, apperrors.KindClientNotFound) {
			t.Fatalf("expected client not found, got %v", err)
		}
	})

	t.Run("suspended client fails", func(t *testing.T) {
		suspended := activeClient()
		suspended.ClientID = "cl_suspended"
		suspended.Status = directory.ClientStatusSuspended
		dir.PutClient(suspended)

		_, err := set.ValidateClient(ctx, "cl_suspended")
		if !apperrors.IsKind(err, apperrors.KindClientInactive) {
			t.Fatalf("expected client inactive, got %v", err)
		}
	})
}

func TestValidateRedirectURIForClient(t *testing.T) {
	client := activeClient()

	t.Run("exact match passes", func(t *testing.T) {
		if err := ValidateRedirectURIForClient(client, "https://app.example.com/callback"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	// Byte-exact only: trailing slashes, case changes and prefixes all fail.
	for _, uri := range []string{
		"https://app.example.com/callback/",
		"https://app.example.com/Callback",
		"https://app.example.com/callback?extra=1",
		"https://app.example.com",
		"",
	} {
		t.Run("rejects "+uri, func(t *testing.T) {
			err := ValidateRedirectURIForClient(client, uri)
			if !apperrors.IsKind(err, apperrors.KindInvalidRedirectURI) {
				t.Fatalf("expected invalid redirect URI for %q, got %v", uri, err)
			}
		})
	}
}

func TestValidateScopes(t *testing.T) {
	allowed := []string{"openid", "email"}

	if err := ValidateScopes([]string{"openid"}, allowed); err != nil {
		t.Fatalf("expected subset to pass, got %v", err)
	}

	if err := ValidateScopes(nil, allowed); err != nil {
		t.Fatalf("expected empty request to pass, got %v", err)
	}

	err := ValidateScopes([]string{"openid", "admin", "write"}, allowed)
	if !apperrors.IsKind(err, apperrors.KindScopeNotAllowed) {
		t.Fatalf("expected scope not allowed, got %v", err)
	}

	// Every offending scope is listed, not just the first.
	msg := err.Error()
	if !strings.Contains(msg, "admin") || !strings.Contains(msg, "write") {
		t.Fatalf("expected both offending scopes in message, got %q", msg)
	}
}

func TestValidatePKCE(t *testing.T) {
	challenge := strings.Repeat("c", 43)

	t.Run("required client without challenge fails", func(t *testing.T) {
		client := activeClient()
		client.RequirePKCE = true

		err := ValidatePKCE(client, "", "")
		if !apperrors.IsKind(err, apperrors.KindPKCERequired) {
			t.Fatalf("expected PKCE required, got %v", err)
		}
	})

	t.Run("optional client without challenge passes", func(t *testing.T) {
		if err := ValidatePKCE(activeClient(), "", ""); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("presented challenge is always validated", func(t *testing.T) {
		err := ValidatePKCE(activeClient(), challenge, "S512")
		if !apperrors.IsKind(err, apperrors.KindInvalidChallengeMethod) {
			t.Fatalf("expected invalid challenge method, got %v", err)
		}
	})

	t.Run("well-formed challenge passes", func(t *testing.T) {
		client := activeClient()
		client.RequirePKCE = true

		if err := ValidatePKCE(client, challenge, "S256"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestValidateResponseType(t *testing.T) {
	if err := ValidateResponseType("code"); err != nil {
		t.Fatalf("expected code to pass, got %v", err)
	}

	for _, rt := range []string{"token", "id_token", "", "code token"} {
		err := ValidateResponseType(rt)
		if !apperrors.IsKind(err, apperrors.KindUnsupportedResponse) {
			t.Fatalf("expected unsupported response type for %q, got %v", rt, err)
		}
	}
}

func TestValidateState(t *testing.T) {
	if err := ValidateState("xyz"); err != nil {
		t.Fatalf("expected state to pass, got %v", err)
	}

	if err := ValidateState(""); !apperrors.IsKind(err, apperrors.KindInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestValidateTenantIsolation(t *testing.T) {
	ctx := context.Background()
	set, dir := newTestSet(t)

	userA := uuid.New()
	dir.PutUser(directory.User{ID: userA, TenantID: "tenant-a"})

	if err := set.ValidateTenantIsolation(ctx, userA, "tenant-a"); err != nil {
		t.Fatalf("expected same-tenant access to pass, got %v", err)
	}

	err := set.ValidateTenantIsolation(ctx, userA, "tenant-b")
	if !apperrors.IsKind(err, apperrors.KindCrossTenantAccess) {
		t.Fatalf("expected cross tenant access, got %v", err)
	}
}
