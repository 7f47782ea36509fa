package jwt

import (
	"errors"
	"testing"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager("unit-test-key", 1)

	token, err := m.Generate(42, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateRejectsWrongKey(t *testing.T) {
	token, err := NewManager("key-one", 1).Generate(1, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := NewManager("key-two", 1).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := NewManager("key-one", 1).Validate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	if _, err := ExtractTokenFromHeader(""); err == nil {
		t.Fatalf("empty header accepted")
	}
	if _, err := ExtractTokenFromHeader("Basic abc"); err == nil {
		t.Fatalf("non-bearer header accepted")
	}
	token, err := ExtractTokenFromHeader("Bearer abc.def.ghi")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if token != "abc.def.ghi" {
		t.Fatalf("wrong token: %q", token)
	}
}
