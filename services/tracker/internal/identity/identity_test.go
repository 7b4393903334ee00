package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/example/tracksm/services/tracker/internal/store"
)

func newService() *Service {
	return &Service{
		Users:  store.NewMemory(),
		Tokens: Tokens{Secret: []byte("test-jwt-secret-32-bytes-padded!"), AccessTokenTTL: time.Hour},
		Cost:   bcrypt.MinCost,
	}
}

func kindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return 0
}

// ─── Register ────────────────────────────────────────────────────────────────

func TestRegister_HappyPath(t *testing.T) {
	svc := newService()
	sess, err := svc.Register(context.Background(), RegisterInput{Name: " Ana Maria ", Email: " Ana@Example.com ", Password: "secret1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.User.Email != "ana@example.com" {
		t.Fatalf("expected normalized email, got %q", sess.User.Email)
	}
	if sess.User.Name != "Ana Maria" || sess.User.Username != "ana.maria" {
		t.Fatalf("unexpected user: %+v", sess.User)
	}

	claims, err := svc.Tokens.Verifier().Parse(sess.AccessToken)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != sess.User.ID {
		t.Fatalf("expected subject %q, got %q", sess.User.ID, claims.Subject)
	}
}

func TestRegister_Validation(t *testing.T) {
	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"missing name", RegisterInput{Email: "a@b.c", Password: "secret1"}},
		{"email without at", RegisterInput{Name: "A", Email: "ab.c", Password: "secret1"}},
		{"short password", RegisterInput{Name: "A", Email: "a@b.c", Password: "12345"}},
	}
	svc := newService()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.in)
			if kindOf(err) != KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Register(ctx, RegisterInput{Name: "Other", Email: "ANA@example.com", Password: "secret2"})
	if kindOf(err) != KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err.Error() != "email already registered" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

// ─── Login ───────────────────────────────────────────────────────────────────

func TestLogin(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	reg, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sess, err := svc.Login(ctx, LoginInput{Email: "ANA@example.com ", Password: "secret1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.User.ID != reg.User.ID || sess.AccessToken == "" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	_, err = svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: "wrong-pass"})
	if kindOf(err) != KindUnauthorized {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret1"})
	if kindOf(err) != KindUnauthorized {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
	_, err = svc.Login(ctx, LoginInput{Email: "ana@example.com"})
	if kindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// ─── Profile ─────────────────────────────────────────────────────────────────

func TestUpdateProfile(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	reg, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, err := svc.UpdateProfile(ctx, reg.User.ID, ProfileInput{Name: "Ana M", Username: "@@Ana_M", PhotoURL: " https://img/x.png "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Username != "ana_m" || u.PhotoURL != "https://img/x.png" || u.Name != "Ana M" {
		t.Fatalf("unexpected profile: %+v", u)
	}

	if _, err := svc.UpdateProfile(ctx, reg.User.ID, ProfileInput{Name: "Ana", Username: "@"}); kindOf(err) != KindValidation {
		t.Fatalf("expected validation error for empty username, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, reg.User.ID, ProfileInput{Name: "Ana", Username: "ana maria"}); kindOf(err) != KindValidation {
		t.Fatalf("expected validation error for space, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, "missing", ProfileInput{Name: "Ana", Username: "ana"}); kindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUsernameFromName(t *testing.T) {
	cases := map[string]string{
		"Ana Maria":             "ana.maria",
		"  João  Silva ":        "joo.silva",
		"._Zé_.":                "usuario",
		"Al":                    "usuario",
		"":                      "usuario",
		strings.Repeat("x", 40): strings.Repeat("x", 30),
	}
	for in, want := range cases {
		if got := UsernameFromName(in); got != want {
			t.Errorf("UsernameFromName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewAccessToken_MissingSecret(t *testing.T) {
	_, _, err := Tokens{AccessTokenTTL: time.Hour}.NewAccessToken("user-1", "", time.Now())
	if err == nil {
		t.Fatal("expected error when secret is empty")
	}
}
