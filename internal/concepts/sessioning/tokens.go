package sessioning

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "tunefriends/internal/errors"
)

const tokenIssuer = "tunefriends"

// Claims binds a token to a stored session.
type Claims struct {
	User string `json:"usr"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies session tokens with HMAC-SHA256. The token id
// is the session id, so ending the session invalidates the token.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

func NewTokens(secret string, now func() time.Time) (*Tokens, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("session secret must be at least 16 bytes")
	}
	if now == nil {
		now = time.Now
	}
	return &Tokens{secret: []byte(secret), now: now}, nil
}

func (t *Tokens) Issue(s Session) (string, error) {
	claims := &Claims{
		User: s.User,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   s.User,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(t.now()),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse verifies a token and returns its session id.
func (t *Tokens) Parse(token string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindUnauthenticated, apperrors.CodeUnauthenticated, "Must be logged in!", err)
	}
	if claims.ID == "" {
		return "", apperrors.Unauthenticated("Must be logged in!")
	}
	return claims.ID, nil
}
