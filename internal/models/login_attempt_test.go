package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginAttempt_Expired(t *testing.T) {
	now := time.Now()

	unlocked := &LoginAttempt{}
	assert.False(t, unlocked.Expired(now), "no expiry means never expired")

	past := now.Add(-time.Minute)
	assert.True(t, (&LoginAttempt{ExpireAt: &past}).Expired(now))

	future := now.Add(time.Minute)
	assert.False(t, (&LoginAttempt{ExpireAt: &future}).Expired(now))

	exact := now
	assert.True(t, (&LoginAttempt{ExpireAt: &exact}).Expired(now), "boundary counts as expired")
}
