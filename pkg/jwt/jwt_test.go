package jwt

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	token, err := GenerateToken("s3cret", "alice", "Alice", []string{"cost:revalue"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken("s3cret", token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Actor != "alice" || claims.Name != "Alice" {
		t.Errorf("claims = %+v", claims)
	}
	if len(claims.Privileges) != 1 || claims.Privileges[0] != "cost:revalue" {
		t.Errorf("privileges = %v", claims.Privileges)
	}
}

func TestValidateRejects(t *testing.T) {
	token, err := GenerateToken("s3cret", "alice", "", nil, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	expired, err := GenerateToken("s3cret", "alice", "", nil, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	cases := map[string]struct {
		secret, token string
		want          error
	}{
		"wrong secret": {"other", token, ErrInvalidToken},
		"expired":      {"s3cret", expired, ErrInvalidToken},
		"garbage":      {"s3cret", "not.a.token", ErrInvalidToken},
		"empty":        {"s3cret", "", ErrMissingToken},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ValidateToken(tc.secret, tc.token); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestGenerateRequiresActor(t *testing.T) {
	if _, err := GenerateToken("s", "", "", nil, time.Hour); err == nil {
		t.Fatal("expected error for empty actor")
	}
}
