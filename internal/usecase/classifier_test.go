package usecase

import (
	"errors"
	"fmt"
	"testing"

	"cv-generator/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestKeywordClassifier(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		category  Category
		delay     int
		retryable bool
	}{
		{"timeout keyword", errors.New("upstream Timeout while rendering"), CategoryTimeout, 300, true},
		{"timed out", errors.New("tts request timed out"), CategoryTimeout, 300, true},
		{"context deadline", fmt.Errorf("print: %w", errors.New("context deadline exceeded")), CategoryTimeout, 300, true},
		{"generation timeout sentinel", domain.E(domain.KindTimeout, "worker", domain.ErrGenerationTimeout), CategoryTimeout, 300, true},
		{"network", errors.New("NETWORK unreachable"), CategoryNetwork, 120, true},
		{"econnreset", errors.New("read tcp: ECONNRESET"), CategoryNetwork, 120, true},
		{"quota", errors.New("monthly quota exhausted"), CategoryQuota, 900, true},
		{"pool full", errors.New("dispatch queue limit reached"), CategoryQuota, 900, true},
		{"unknown", errors.New("something odd"), CategoryUnknown, 180, true},
		{"permanent template", errors.New("unknown template foo"), CategoryUnknown, 180, false},
		{"permanent schema", errors.New("schema validation failed: summary"), CategoryUnknown, 180, false},
		{"not found kind", domain.E(domain.KindNotFound, "jobs.get", domain.ErrJobNotFound), CategoryUnknown, 180, false},
		{"authorization kind", domain.E(domain.KindAuthorization, "jobs", domain.ErrNotOwner), CategoryUnknown, 180, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := KeywordClassifier{}.Classify(tt.err)
			assert.Equal(t, tt.category, c.Category)
			assert.Equal(t, tt.delay, c.RecommendedDelaySeconds)
			assert.Equal(t, tt.retryable, c.Retryable)
			assert.NotEmpty(t, c.Code)
		})
	}
}

func TestClassification_RecoveryInfo(t *testing.T) {
	c := KeywordClassifier{}.Classify(errors.New("request timed out"))
	info := c.RecoveryInfo(1, 3)
	assert.True(t, info.IsTimeout)
	assert.False(t, info.IsNetworkError)
	assert.True(t, info.Retryable)
	assert.Equal(t, 300, info.RecommendedRetryDelay)

	exhausted := c.RecoveryInfo(3, 3)
	assert.False(t, exhausted.Retryable)
}
