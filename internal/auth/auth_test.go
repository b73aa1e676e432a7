package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/jansevak/internal/model"
)

func TestIssueAndAuthenticate(t *testing.T) {
	a := NewJWTAuthenticator([]byte("secret"), "jansevak", time.Hour)
	token, err := a.Issue(model.Actor{ID: "admin-1", Role: model.RoleAdmin})
	require.NoError(t, err)

	actor, err := a.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, model.Actor{ID: "admin-1", Role: model.RoleAdmin}, actor)
}

func TestAuthenticateRejects(t *testing.T) {
	a := NewJWTAuthenticator([]byte("secret"), "jansevak", time.Hour)
	good, err := a.Issue(model.Actor{ID: "u1", Role: model.RoleUser})
	require.NoError(t, err)

	other := NewJWTAuthenticator([]byte("other"), "jansevak", time.Hour)
	foreign, err := other.Issue(model.Actor{ID: "u1", Role: model.RoleAdmin})
	require.NoError(t, err)

	wrongIssuer := NewJWTAuthenticator([]byte("secret"), "someone-else", time.Hour)
	misissued, err := wrongIssuer.Issue(model.Actor{ID: "u1", Role: model.RoleUser})
	require.NoError(t, err)

	expired := NewJWTAuthenticator([]byte("secret"), "jansevak", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := expired.Issue(model.Actor{ID: "u1", Role: model.RoleUser})
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role: "ADMIN",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "jansevak",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"wrong secret": foreign,
		"wrong issuer": misissued,
		"expired":      stale,
		"alg none":     unsigned,
		"tampered":     good + "x",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := a.Authenticate(context.Background(), token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestUnknownRoleClaimIsUser(t *testing.T) {
	a := NewJWTAuthenticator([]byte("secret"), "jansevak", time.Hour)
	token, err := a.Issue(model.Actor{ID: "u1", Role: model.Role("SUPERUSER")})
	require.NoError(t, err)
	actor, err := a.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, actor.Role)
}

func TestIssueRequiresID(t *testing.T) {
	a := NewJWTAuthenticator([]byte("secret"), "jansevak", time.Hour)
	_, err := a.Issue(model.Actor{Role: model.RoleAdmin})
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc"))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken("Bearer"))
	assert.Empty(t, BearerToken(""))
}

func TestDirectoryLogin(t *testing.T) {
	d, err := NewDirectory([]string{"citizen:pw1:USER", "boss:pw2:admin", "plain:pw3"})
	require.NoError(t, err)

	actor, err := d.Login("boss", "pw2")
	require.NoError(t, err)
	assert.Equal(t, model.Actor{ID: "boss", Role: model.RoleAdmin}, actor)

	actor, err = d.Login("plain", "pw3")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, actor.Role)

	_, err = d.Login("citizen", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = d.Login("ghost", "pw1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestDirectoryRejectsMalformedEntry(t *testing.T) {
	_, err := NewDirectory([]string{"nopassword"})
	assert.Error(t, err)
}

func TestDirectoryRegister(t *testing.T) {
	d, err := NewDirectory([]string{"admin:pw:ADMIN"})
	require.NoError(t, err)

	actor, err := d.Register(" ravi ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, model.Actor{ID: "ravi", Role: model.RoleUser}, actor)

	actor, err = d.Login("ravi", "secret1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, actor.Role)

	_, err = d.Register("ravi", "another1")
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, err = d.Register("admin", "takeover")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	actor, err = d.Login("admin", "pw")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, actor.Role)
}

func TestDirectoryRegisterValidation(t *testing.T) {
	d, err := NewDirectory(nil)
	require.NoError(t, err)
	tests := []struct {
		name, username, password, field string
	}{
		{"short username", "ab", "secret1", "username"},
		{"username with colon", "a:b:ADMIN", "secret1", "username"},
		{"username with space", "ravi k", "secret1", "username"},
		{"short password", "ravi", "12345", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Register(tt.username, tt.password)
			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestDirectoryRegisterConcurrentSameName(t *testing.T) {
	d, err := NewDirectory(nil)
	require.NoError(t, err)

	const n = 6
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Register("ravi", "secret1"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRevokeLogsTokenOut(t *testing.T) {
	a := NewJWTAuthenticator([]byte("secret"), "jansevak", time.Hour, WithRevocations(NewMemoryRevocations()))
	first, err := a.Issue(model.Actor{ID: "u1", Role: model.RoleUser})
	require.NoError(t, err)
	second, err := a.Issue(model.Actor{ID: "u1", Role: model.RoleUser})
	require.NoError(t, err)

	require.NoError(t, a.Revoke(context.Background(), first))

	_, err = a.Authenticate(context.Background(), first)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = a.Authenticate(context.Background(), second)
	assert.NoError(t, err)

	assert.ErrorIs(t, a.Revoke(context.Background(), "garbage"), ErrInvalidToken)
}

func TestRevokeWithoutStore(t *testing.T) {
	a := NewJWTAuthenticator([]byte("secret"), "jansevak", time.Hour)
	token, err := a.Issue(model.Actor{ID: "u1"})
	require.NoError(t, err)
	assert.ErrorIs(t, a.Revoke(context.Background(), token), ErrRevocationDisabled)
}

func TestMemoryRevocationsExpire(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemoryRevocations()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Revoke(ctx, "old", now.Add(time.Minute)))
	revoked, err := m.IsRevoked(ctx, "old")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = m.IsRevoked(ctx, "old")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, m.Revoke(ctx, "new", now.Add(time.Minute)))
	assert.NotContains(t, m.until, "old")
}
