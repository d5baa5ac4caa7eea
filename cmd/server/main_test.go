package main

import (
	"testing"
	"time"

	"github.com/ZanzyTHEbar/contribution-proof/internal/config"
	"github.com/ZanzyTHEbar/contribution-proof/internal/errors"
	"github.com/ZanzyTHEbar/contribution-proof/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueToken(t *testing.T) {
	cfg := config.Default()
	cfg.Server.JWTSecret = "test-secret"

	token, err := issueToken(cfg, "uploader", time.Hour)
	require.NoError(t, err)

	subject, err := security.NewAuthenticator("test-secret").ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "uploader", subject)
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	cfg := config.Default()
	cfg.Server.JWTSecret = ""

	_, err := issueToken(cfg, "uploader", time.Hour)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
