package oauth

import (
	"reflect"
	"testing"
)

func TestSplitScope(t *testing.T) {
	if got := SplitScope("openid  email profile"); !reflect.DeepEqual(got, []string{"openid", "email", "profile"}) {
		t.Fatalf("unexpected split result: %v", got)
	}

	if got := SplitScope(""); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestScopesWithin(t *testing.T) {
	allowed := []string{"openid", "email", "profile"}

	if !ScopesWithin([]string{"openid", "email"}, allowed) {
		t.Fatal("expected subset to be within allowed")
	}

	if !ScopesWithin(nil, allowed) {
		t.Fatal("expected empty request to be within allowed")
	}

	if ScopesWithin([]string{"openid", "admin"}, allowed) {
		t.Fatal("expected request with unknown scope to be rejected")
	}
}

func TestDisallowedScopes(t *testing.T) {
	got := DisallowedScopes([]string{"admin", "openid", "write"}, []string{"openid"})

	// Request order is preserved so error messages stay deterministic.
	if !reflect.DeepEqual(got, []string{"admin", "write"}) {
		t.Fatalf("unexpected disallowed scopes: %v", got)
	}
}
