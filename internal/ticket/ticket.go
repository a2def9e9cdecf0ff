// Package ticket signs the round a cat belongs to, so a hit request names
// the round it was aimed at without the client being able to forge one for
// another session.
//
// Tickets are HS256 JWTs. They expire a little after the round's countdown;
// the round controller stays the authority on whether a hit was in time.
package ticket

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Grace keeps a ticket verifiable briefly past the countdown so late hits
// reach the controller and are ignored there rather than rejected here.
const Grace = 5 * time.Second

var (
	ErrExpired = errors.New("ticket expired")
	ErrInvalid = errors.New("invalid ticket")
)

// Claims identifies one round of one session.
type Claims struct {
	Round uint64 `json:"rnd"`
	jwt.RegisteredClaims
}

// Session returns the session id carried in the subject.
func (c *Claims) Session() string { return c.Subject }

// Signer issues and verifies tickets with a shared secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a Signer for secret. An empty secret falls back to a
// development value.
func NewSigner(secret string) *Signer {
	if secret == "" {
		secret = "dev_secret_change_me"
	}
	return &Signer{secret: []byte(secret), now: time.Now}
}

// Issue signs a ticket for round of session valid until deadline+Grace.
func (s *Signer) Issue(session string, round uint64, deadline time.Time) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Round: round,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session,
			ID:        session + ":" + strconv.FormatUint(round, 10),
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(deadline.Add(Grace)),
		},
	})
	return t.SignedString(s.secret)
}

// Verify parses token and returns its claims.
func (s *Signer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.Subject == "" || claims.Round == 0 {
		return nil, ErrInvalid
	}
	return claims, nil
}
