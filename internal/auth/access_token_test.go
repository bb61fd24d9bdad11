package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{
		DB:        stubDB{},
		Secret:    "test-secret-test-secret-test-secret",
		Issuer:    "nusacamp-test",
		AccessTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)

	token, expiresAt, err := svc.signAccessToken("user-123")
	if err != nil {
		t.Fatalf("signAccessToken: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	subject, err := svc.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if subject != "user-123" {
		t.Fatalf("expected subject user-123, got %q", subject)
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	svc := newTestService(t)
	svc.WithNow(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	token, _, err := svc.signAccessToken("user-123")
	if err != nil {
		t.Fatalf("signAccessToken: %v", err)
	}
	svc.WithNow(time.Now)

	if _, err := svc.ParseAccessToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseAccessTokenRejectsWrongKey(t *testing.T) {
	svc := newTestService(t)

	tok, err := jwt.NewBuilder().
		Subject("user-123").
		Issuer("nusacamp-test").
		Expiration(time.Now().Add(time.Hour)).
		Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("another-secret-another-secret")))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := svc.ParseAccessToken(string(signed)); err == nil {
		t.Fatal("expected token signed with a different key to be rejected")
	}
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t)
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := svc.ParseAccessToken(token); err == nil {
			t.Fatalf("expected token %q to be rejected", token)
		}
	}
}
