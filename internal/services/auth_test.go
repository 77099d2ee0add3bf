package services

import (
	"context"
	"testing"
	"time"

	"portfolio-hub/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func seedAdmin(t *testing.T, f *fixture, email, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	f.gw.Seed("admins", remote.Row{"id": "adm-1", "email": email, "password_hash": string(hash), "role": "owner"})
}

func TestTokenService_RoundTrip(t *testing.T) {
	tokens := NewTokenService("secret", time.Hour)

	token, err := tokens.GenerateToken("u1", "a@example.com", RoleClient)
	require.NoError(t, err)

	claims, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, RoleClient, claims.Role)

	_, err = NewTokenService("other", time.Hour).ValidateToken(token)
	assert.Error(t, err)
	_, err = tokens.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestTokenService_Passwords(t *testing.T) {
	tokens := NewTokenService("secret", 0)
	hash, err := tokens.HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, tokens.CheckPassword(hash, "hunter22"))
	assert.False(t, tokens.CheckPassword(hash, "hunter23"))
}

func TestLoginAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedAdmin(t, f, "admin@example.com", "s3cret!")

	admin, token, err := f.svc.LoginAdmin(ctx, "  Admin@Example.com ", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "adm-1", admin.ID)
	assert.Equal(t, "owner", admin.Role)

	claims, err := f.svc.Tokens().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "admin@example.com", claims.Email)

	current, ok := f.svc.CurrentAdmin(ctx)
	require.True(t, ok)
	assert.Equal(t, "admin@example.com", current.Email)

	require.NoError(t, f.svc.SignOut(ctx))
	_, ok = f.svc.CurrentAdmin(ctx)
	assert.False(t, ok)
}

func TestLoginAdmin_Failures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedAdmin(t, f, "admin@example.com", "s3cret!")

	_, _, err := f.svc.LoginAdmin(ctx, "admin@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = f.svc.LoginAdmin(ctx, "nobody@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	f.gw.SetFailure(errOffline)
	_, _, err = f.svc.LoginAdmin(ctx, "admin@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestPortalSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	token, err := f.svc.PortalSignUp(ctx, "Huda", "Huda@Example.com", "pass1234")
	require.NoError(t, err)
	claims, err := f.svc.Tokens().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleClient, claims.Role)
	assert.Equal(t, "huda@example.com", f.svc.CurrentPortalEmail(ctx))

	leads := f.gw.Rows("leads")
	require.Len(t, leads, 1)
	assert.Equal(t, "huda@example.com", leads[0]["email"])
	assert.Equal(t, RoleClient, leads[0]["role"])

	require.NoError(t, f.svc.SignOut(ctx))
	assert.Empty(t, f.svc.CurrentPortalEmail(ctx))

	_, err = f.svc.PortalSignIn(ctx, "huda@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err = f.svc.PortalSignIn(ctx, "HUDA@example.com", "pass1234")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "huda@example.com", f.svc.CurrentPortalEmail(ctx))
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.svc.EnsureAdmin(ctx, "Owner@Example.com", "first-pass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.svc.EnsureAdmin(ctx, "second@example.com", "other-pass")
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, f.gw.Rows("admins"), 1)

	_, _, err = f.svc.LoginAdmin(ctx, "owner@example.com", "first-pass")
	assert.NoError(t, err)

	created, err = newFixture(t).svc.EnsureAdmin(ctx, "x@example.com", "")
	assert.NoError(t, err)
	assert.False(t, created)
}
