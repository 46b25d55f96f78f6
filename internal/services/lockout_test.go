package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateLockout_BelowThreshold(t *testing.T) {
	settings := AccountProtectionSettings{
		LoginAttemptsDetectionEnabled: true,
		MaxLoginAttempts:              10,
		AccountBlockedDuration:        2 * time.Hour,
	}

	decision := EvaluateLockout(9, settings)

	assert.False(t, decision.Locked)
	assert.Equal(t, 1, decision.Remaining)
}

func TestEvaluateLockout_AtThreshold(t *testing.T) {
	settings := AccountProtectionSettings{
		LoginAttemptsDetectionEnabled: true,
		MaxLoginAttempts:              10,
		AccountBlockedDuration:        2 * time.Hour,
	}

	decision := EvaluateLockout(10, settings)

	assert.True(t, decision.Locked)
	assert.Equal(t, 0, decision.Remaining)
}

func TestEvaluateLockout_AboveThreshold(t *testing.T) {
	settings := AccountProtectionSettings{
		LoginAttemptsDetectionEnabled: true,
		MaxLoginAttempts:              5,
	}

	decision := EvaluateLockout(17, settings)

	assert.True(t, decision.Locked)
	assert.Equal(t, 0, decision.Remaining, "remaining never goes negative")
}

func TestEvaluateLockout_DetectionDisabled(t *testing.T) {
	settings := AccountProtectionSettings{
		LoginAttemptsDetectionEnabled: false,
		MaxLoginAttempts:              1,
	}

	for _, attempts := range []int{0, 1, 100, 1000000} {
		decision := EvaluateLockout(attempts, settings)
		assert.False(t, decision.Locked, "attempts=%d", attempts)
	}
}

func TestEvaluateLockout_SingleAttemptMax(t *testing.T) {
	settings := AccountProtectionSettings{
		LoginAttemptsDetectionEnabled: true,
		MaxLoginAttempts:              1,
	}

	assert.True(t, EvaluateLockout(1, settings).Locked, "first failure locks when max is 1")
	assert.False(t, EvaluateLockout(0, settings).Locked)
}
