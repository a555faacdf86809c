package core

import (
	"net/mail"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

var ErrInvalidToken = errors.New("invalid or expired session token")

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	IsAdmin  bool     `json:"is_admin,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// Session is the explicit authentication context injected into every service
// that talks to the remote APIs. There are no ambient token lookups; whoever
// constructs the engine owns the session.
type Session struct {
	Token    string
	Username string
	Email    string
	IsAdmin  bool
	Roles    []string
}

// NewSession parses and verifies token against the shared secret and
// materializes the claims it carries.
func NewSession(token string, conf *Config) (Session, error) {
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return []byte(conf.SecretKey), nil
	})
	if err != nil || !parsed.Valid {
		return Session{}, ErrInvalidToken
	}
	return Session{
		Token:    token,
		Username: claims.Username,
		Email:    claims.Email,
		IsAdmin:  claims.IsAdmin,
		Roles:    claims.Roles,
	}, nil
}

func (s Session) IsAnonymous() bool { return s.Username == "" }

func (s Session) EmailAddress() mail.Address {
	return mail.Address{Name: s.Username, Address: s.Email}
}

// GenerateToken signs new session claims; used by the reference ledger's
// login endpoint and by tests.
func GenerateToken(username, email string, isAdmin bool, conf *Config) (string, error) {
	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   strings.ToLower(username),
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: username,
		Email:    email,
		IsAdmin:  isAdmin,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	return ss, errors.Wrap(err, "signing token")
}
