package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	token, err := Issue("admin", RoleAdmin, "campusattend", "secret", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token.Value)

	claims, err := Parse(token.Value, "secret", "campusattend")
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestParseRejectsWrongKey(t *testing.T) {
	token, err := Issue("admin", RoleAdmin, "campusattend", "secret", time.Hour)
	require.NoError(t, err)

	_, err = Parse(token.Value, "other-secret", "campusattend")
	assert.Error(t, err)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	token, err := Issue("scan-01", RoleStation, "someone-else", "secret", time.Hour)
	require.NoError(t, err)

	_, err = Parse(token.Value, "secret", "campusattend")
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	token, err := Issue("admin", RoleAdmin, "campusattend", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = Parse(token.Value, "secret", "campusattend")
	assert.Error(t, err)
}

func TestCSRFToken(t *testing.T) {
	token := CSRFToken("admin", "csrf-secret")
	assert.True(t, ValidCSRF("admin", "csrf-secret", token))
	assert.False(t, ValidCSRF("admin", "csrf-secret", ""))
	assert.False(t, ValidCSRF("admin", "csrf-secret", token+"x"))
	assert.False(t, ValidCSRF("other", "csrf-secret", token))
	assert.False(t, ValidCSRF("admin", "different-secret", token))
}
