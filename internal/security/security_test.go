package security

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"datasanitizer/internal/config"
	"datasanitizer/internal/reason"
)

func TestSecurityChecks(t *testing.T) {
	assert.NoError(t, SecurityChecks(nil))

	cfg := config.Default()
	cfg.Security.RequireAdmin = true
	err := SecurityChecks(cfg)
	if IsAdmin() {
		assert.NoError(t, err)
		return
	}
	assert.Equal(t, reason.AccessDenied, reason.Of(err))
	assert.NotEmpty(t, reason.Hints(err))
}
