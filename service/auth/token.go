package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/locey/TaskAVS/base/errcode"
)

const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims is the session payload: sub is the identity id.
type Claims struct {
	jwt.RegisteredClaims
	Address string `json:"address"`
}

// Session is what a validated token tells the caller.
type Session struct {
	UserID  string
	Address string
}

type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *TokenIssuer) Issue(userID, address string) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Address: address,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed on sign session token")
	}
	return token, nil
}

// Parse validates signature and expiry.
func (t *TokenIssuer) Parse(token string) (*Session, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, errcode.ErrUnauthorized.Wrap(err, "invalid session token")
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errcode.ErrUnauthorized.WithMsg("invalid session token")
	}
	return &Session{UserID: claims.Subject, Address: claims.Address}, nil
}
