package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-key"
	testIssuer = "attendease"
)

func TestIssueParse(t *testing.T) {
	sess, err := Issue("stu-1", "101", "Jane Doe", testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)

	claims, err := Parse(sess.Token, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", claims.Subject)
	assert.Equal(t, "101", claims.RollNumber)
	assert.Equal(t, "Jane Doe", claims.Name)
	assert.Equal(t, sess.ID, claims.ID)
}

func TestParseRejects(t *testing.T) {
	valid, err := Issue("stu-1", "101", "Jane Doe", testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	expired, err := Issue("stu-1", "101", "Jane Doe", testIssuer, testKey, -time.Minute)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		key    string
		issuer string
	}{
		{name: "wrong key", token: valid.Token, key: "other", issuer: testIssuer},
		{name: "wrong issuer", token: valid.Token, key: testKey, issuer: "someone-else"},
		{name: "expired", token: expired.Token, key: testKey, issuer: testIssuer},
		{name: "alg none", token: none, key: testKey, issuer: testIssuer},
		{name: "garbage", token: "a.b.c", key: testKey, issuer: testIssuer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.token, tt.key, tt.issuer)
			assert.Error(t, err)
		})
	}
}

func TestMemoryRevoker(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRevoker()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "a", now.Add(time.Hour)))
	require.NoError(t, r.Revoke(ctx, "stale", now.Add(-time.Hour)))

	revoked, _ := r.Revoked(ctx, "a")
	assert.True(t, revoked)
	revoked, _ = r.Revoked(ctx, "stale")
	assert.False(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, _ = r.Revoked(ctx, "a")
	assert.False(t, revoked, "revocation lapses with the token")
}

func TestStudentAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	revoker := NewMemoryRevoker()
	r := gin.New()
	r.GET("/me", StudentAuth(testKey, testIssuer, revoker), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.Subject)
	})

	sess, err := Issue("stu-1", "101", "Jane Doe", testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, do("").Code)
	assert.Equal(t, http.StatusUnauthorized, do("Bearer nope").Code)

	ok := do("Bearer " + sess.Token)
	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, "stu-1", ok.Body.String())

	require.NoError(t, revoker.Revoke(context.Background(), sess.ID, sess.ExpiresAt))
	assert.Equal(t, http.StatusUnauthorized, do("Bearer "+sess.Token).Code)
}
