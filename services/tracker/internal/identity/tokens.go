package identity

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/tracksm/internal/platform/auth"
)

// Tokens issues HS256 access tokens readable by auth.JWTVerifier.
type Tokens struct {
	Secret         []byte
	AccessTokenTTL time.Duration
}

func (t Tokens) NewAccessToken(userID, email string, now time.Time) (string, time.Time, error) {
	if len(t.Secret) == 0 {
		return "", time.Time{}, errors.New("missing jwt secret")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	exp := now.Add(t.AccessTokenTTL)

	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (t Tokens) Verifier() auth.JWTVerifier { return auth.JWTVerifier{Secret: t.Secret} }
