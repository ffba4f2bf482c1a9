package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcp-protocol/authorization"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func TestService_Namespace(t *testing.T) {
	testCases := []struct {
		description string
		token       any
		expect      string
		expectErr   bool
	}{
		{description: "no token", expect: "default"},
		{description: "email claim", token: signed(t, jwt.MapClaims{"email": "Jane@Acme.com", "sub": "123"}), expect: "jane@acme.com"},
		{description: "upn claim", token: &authorization.Token{Token: signed(t, jwt.MapClaims{"upn": "bob@acme.com", "sub": "123"})}, expect: "bob@acme.com"},
		{description: "sub fallback", token: signed(t, jwt.MapClaims{"sub": "123"}), expect: "123"},
		{description: "opaque token", token: "not-a-jwt", expect: "default"},
		{description: "unsupported type", token: 42, expectErr: true},
	}
	svc := New()
	for _, tc := range testCases {
		ctx := context.Background()
		if tc.token != nil {
			ctx = context.WithValue(ctx, authorization.TokenKey, tc.token)
		}
		ns, err := svc.Namespace(ctx)
		if tc.expectErr {
			assert.Error(t, err, tc.description)
			continue
		}
		assert.NoError(t, err, tc.description)
		assert.Equal(t, tc.expect, ns, tc.description)
	}
}

func TestWithClaims(t *testing.T) {
	ctx := context.WithValue(context.Background(), authorization.TokenKey, signed(t, jwt.MapClaims{"email": "jane@acme.com", "oid": "abc"}))
	ns, err := WithClaims("oid").Namespace(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", ns)

	var nilSvc *Service
	ns, err = nilSvc.Namespace(ctx)
	require.NoError(t, err)
	assert.Equal(t, "default", ns)
}
