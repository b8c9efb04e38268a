package usecase

import (
	"errors"
	"strings"

	"cv-generator/internal/domain"
)

type Category string

const (
	CategoryTimeout Category = "timeout"
	CategoryNetwork Category = "network"
	CategoryQuota   Category = "quota"
	CategoryUnknown Category = "unknown"
)

// Recommended retry delays in seconds.
var retryDelays = map[Category]int{
	CategoryQuota:   900,
	CategoryTimeout: 300,
	CategoryNetwork: 120,
	CategoryUnknown: 180,
}

var categoryCodes = map[Category]string{
	CategoryTimeout: "GENERATION_TIMEOUT",
	CategoryNetwork: "NETWORK_ERROR",
	CategoryQuota:   "QUOTA_EXCEEDED",
	CategoryUnknown: "UNKNOWN_GENERATION_ERROR",
}

type Classification struct {
	Category                Category
	Code                    string
	Retryable               bool
	RecommendedDelaySeconds int
}

// RecoveryInfo converts the classification into the record stored on a
// failed job.
func (c Classification) RecoveryInfo(retryCount, maxRetries int) domain.RecoveryInfo {
	return domain.RecoveryInfo{
		IsTimeout:             c.Category == CategoryTimeout,
		IsNetworkError:        c.Category == CategoryNetwork,
		IsQuotaError:          c.Category == CategoryQuota,
		Retryable:             c.Retryable && retryCount < maxRetries,
		RecommendedRetryDelay: c.RecommendedDelaySeconds,
		RetryCount:            retryCount,
		MaxRetries:            maxRetries,
	}
}

type ErrorClassifier interface {
	Classify(err error) Classification
}

var (
	timeoutKeywords = []string{"timeout", "timed out", "deadline exceeded"}
	networkKeywords = []string{"network", "econnreset", "connection reset", "connection refused"}
	quotaKeywords   = []string{"quota", "limit"}

	permanentKeywords = []string{"unknown template", "invalid template", "schema validation", "not configured"}
)

// KeywordClassifier classifies by structured error kind first and then by
// case-insensitive keywords in the message.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(err error) Classification {
	if err == nil {
		return classification(CategoryUnknown, true)
	}

	msg := strings.ToLower(err.Error())
	retryable := !containsAny(msg, permanentKeywords)

	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindAuthorization, domain.KindNotFound:
		c := classification(CategoryUnknown, false)
		c.Code = domain.KindOf(err).Code()
		return c
	case domain.KindTimeout:
		return classification(CategoryTimeout, retryable)
	}
	if errors.Is(err, domain.ErrGenerationTimeout) {
		return classification(CategoryTimeout, retryable)
	}

	switch {
	case containsAny(msg, timeoutKeywords):
		return classification(CategoryTimeout, retryable)
	case containsAny(msg, networkKeywords):
		return classification(CategoryNetwork, retryable)
	case containsAny(msg, quotaKeywords):
		return classification(CategoryQuota, retryable)
	}
	return classification(CategoryUnknown, retryable)
}

func classification(c Category, retryable bool) Classification {
	return Classification{
		Category:                c,
		Code:                    categoryCodes[c],
		Retryable:               retryable,
		RecommendedDelaySeconds: retryDelays[c],
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
