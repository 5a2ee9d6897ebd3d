// Package token mints and verifies HS256 room access tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingIdentity = errors.New("token identity required")

// VideoGrant lists what the bearer may do in a room.
type VideoGrant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

type Claims struct {
	jwt.RegisteredClaims
	Name     string     `json:"name,omitempty"`
	Metadata string     `json:"metadata,omitempty"`
	Video    VideoGrant `json:"video"`
}

// Grant describes one participant's access.
type Grant struct {
	Identity string
	Name     string
	Metadata string
	Room     string
	TTL      time.Duration
}

type Minter struct {
	apiKey string
	secret []byte
	now    func() time.Time
}

func NewMinter(apiKey, secret string) *Minter {
	return &Minter{apiKey: apiKey, secret: []byte(secret), now: time.Now}
}

// Mint signs a token that lets g.Identity join, publish and subscribe in g.Room.
func (m *Minter) Mint(g Grant) (string, error) {
	if g.Identity == "" {
		return "", ErrMissingIdentity
	}
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.apiKey,
			Subject:   g.Identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.TTL)),
		},
		Name:     g.Name,
		Metadata: g.Metadata,
		Video: VideoGrant{
			Room:         g.Room,
			RoomJoin:     true,
			CanPublish:   true,
			CanSubscribe: true,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses raw and checks its signature, issuer and validity window.
func (m *Minter) Verify(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.apiKey),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	return &claims, nil
}
