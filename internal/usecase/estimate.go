package usecase

import "cv-generator/internal/domain"

const (
	// BaseGenerationTime covers parsing, rendering and persisting.
	BaseGenerationTime = 60
	// MinimumEstimate is the estimate for a job with no features.
	MinimumEstimate = 66
)

// EstimateSeconds returns ceil((60 + sum of feature estimates) * 1.1) using
// integer arithmetic. Unknown ids cost domain.DefaultFeatureEstimate.
func EstimateSeconds(features []domain.FeatureID) int {
	total := BaseGenerationTime
	for _, f := range features {
		total += f.Estimate()
	}
	return (total*11 + 9) / 10
}
