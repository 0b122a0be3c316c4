package core

import (
	"errors"
	"testing"
)

func TestAllowlistAuthorizerAuthorize(t *testing.T) {
	a := NewAllowlistAuthorizer(map[string][]string{
		"web": {"1001", "1002"},
	})
	if err := a.Authorize(Subject{Source: "web", ID: "1001"}, Action{Module: "shell", Command: "run"}); err != nil {
		t.Fatalf("expected allow, got error: %v", err)
	}
}

func TestAllowlistAuthorizerDenyUnknownID(t *testing.T) {
	a := NewAllowlistAuthorizer(map[string][]string{
		"web": {"1001"},
	})
	err := a.Authorize(Subject{Source: "web", ID: "9999"}, Action{Module: "shell", Command: "run"})
	if err == nil {
		t.Fatalf("expected deny")
	}
	if !IsAccessDenied(err) {
		t.Fatalf("expected access denied, got %v", err)
	}
}

func TestAllowlistAuthorizerDenyUnknownSource(t *testing.T) {
	a := NewAllowlistAuthorizer(map[string][]string{
		"web": {"1001"},
	})
	if err := a.Authorize(Subject{Source: "chat", ID: "1001"}, Action{Module: "shell", Command: "run"}); err == nil {
		t.Fatalf("expected deny")
	}
}

func TestAllowlistAuthorizerWildcard(t *testing.T) {
	a := NewAllowlistAuthorizer(map[string][]string{
		"cli": {Wildcard},
	})
	if err := a.Authorize(Subject{Source: "cli", ID: "alice"}, Action{Module: "files", Command: "read"}); err != nil {
		t.Fatalf("expected wildcard allow, got error: %v", err)
	}
	if err := a.Authorize(Subject{Source: "web", ID: "alice"}, Action{Module: "files", Command: "read"}); err == nil {
		t.Fatalf("expected deny for source without allowlist")
	}
}

func TestAllowlistAuthorizerEmptySubject(t *testing.T) {
	a := NewAllowlistAuthorizer(map[string][]string{"cli": {Wildcard}})
	err := a.Authorize(Subject{Source: "cli"}, Action{Module: "files", Command: "read"})
	if !errors.Is(err, errInvalidArguments) {
		t.Fatalf("expected errInvalidArguments, got %v", err)
	}
}
