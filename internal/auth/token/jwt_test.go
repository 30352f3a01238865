package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "market/pkg/domain-errors"
)

var jwtService = NewJWTService("test-signing-key", "test-issuer", "test-audience")

func Test_IssueAndValidate(t *testing.T) {
	tok, err := jwtService.Issue("alice", "sess-1", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := jwtService.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Login())
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_Issue_RequiresLogin(t *testing.T) {
	_, err := jwtService.Issue("", "sess-1", time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func Test_Validate_InvalidToken(t *testing.T) {
	_, err := jwtService.Validate("invalid-token-string")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Validate_ExpiredToken(t *testing.T) {
	tok, err := jwtService.Issue("alice", "sess-1", -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.Validate(tok)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func Test_Validate_WrongAudience(t *testing.T) {
	other := NewJWTService("test-signing-key", "test-issuer", "someone-else")
	tok, err := other.Issue("alice", "sess-1", time.Hour)
	require.NoError(t, err)

	_, err = jwtService.Validate(tok)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Validate_WrongKey(t *testing.T) {
	other := NewJWTService("another-key", "test-issuer", "test-audience")
	tok, err := other.Issue("alice", "sess-1", time.Hour)
	require.NoError(t, err)

	_, err = jwtService.Validate(tok)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
