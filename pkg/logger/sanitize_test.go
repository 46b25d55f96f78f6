package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskUsername(t *testing.T) {
	assert.Equal(t, "j***", MaskUsername("jdoe"))
	assert.Equal(t, "a*********************", MaskUsername("alice@example.internal"))
	assert.Equal(t, "x", MaskUsername("x"))
	assert.Equal(t, "", MaskUsername(""))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("client_secret=s3cret&grant_type=password"))
	assert.True(t, SanitizeQueryString("API_KEY=abc"))
	assert.False(t, SanitizeQueryString("domain=acme&username=jdoe"))
	assert.False(t, SanitizeQueryString(""))
}
