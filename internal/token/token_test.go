package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedMinter(key, secret string, at time.Time) *Minter {
	m := NewMinter(key, secret)
	m.now = func() time.Time { return at }
	return m
}

func TestMintAndVerify(t *testing.T) {
	at := time.Unix(1700000000, 0)
	m := fixedMinter("devkey", "secret", at)

	raw, err := m.Mint(Grant{Identity: "client-1", Name: "Neo", Room: "test-room", TTL: 24 * time.Hour})
	require.NoError(t, err)

	claims, err := m.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "devkey", claims.Issuer)
	assert.Equal(t, "client-1", claims.Subject)
	assert.Equal(t, "Neo", claims.Name)
	assert.Equal(t, at.Unix(), claims.NotBefore.Unix())
	assert.Equal(t, at.Add(24*time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.Equal(t, VideoGrant{Room: "test-room", RoomJoin: true, CanPublish: true, CanSubscribe: true}, claims.Video)
}

func TestMintRequiresIdentity(t *testing.T) {
	_, err := NewMinter("k", "s").Mint(Grant{Room: "r", TTL: time.Hour})
	require.ErrorIs(t, err, ErrMissingIdentity)
}

func TestVerifyRejects(t *testing.T) {
	at := time.Unix(1700000000, 0)
	raw, err := fixedMinter("devkey", "secret", at).Mint(Grant{Identity: "a", Room: "r", TTL: time.Hour})
	require.NoError(t, err)

	_, err = fixedMinter("devkey", "other", at).Verify(raw)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = fixedMinter("otherkey", "secret", at).Verify(raw)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	_, err = fixedMinter("devkey", "secret", at.Add(2*time.Hour)).Verify(raw)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = fixedMinter("devkey", "secret", at.Add(-time.Minute)).Verify(raw)
	assert.ErrorIs(t, err, jwt.ErrTokenNotValidYet)
}
