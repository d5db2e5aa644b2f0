package cleaner

import (
	"integralq/internal/dataset"
	"integralq/pkg/contracts/domain"
)

// Inference defaults.
const (
	DefaultSampleSize = 100
	DefaultThreshold  = 0.8
)

// InferColumnType classifies a column from up to sampleSize non-null values.
// A column is numeric when at least threshold of the sample are numbers,
// date when at least threshold match a date pattern, else categorical.
// Exactly meeting the threshold counts. Empty columns are categorical.
func InferColumnType(values []domain.Value, sampleSize int, threshold float64) domain.ColumnType {
	var sampled, numeric, dates int
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if sampled >= sampleSize {
			break
		}
		sampled++

		if _, ok := v.Number(); ok {
			numeric++
			continue
		}
		if s, ok := v.Text(); ok && dataset.LooksLikeDate(s) {
			dates++
		}
	}

	if sampled == 0 {
		return domain.ColumnCategorical
	}
	// Compare counts rather than ratios so 80 of 100 is not lost to rounding.
	need := threshold * float64(sampled)
	switch {
	case float64(numeric) >= need-1e-9:
		return domain.ColumnNumeric
	case float64(dates) >= need-1e-9:
		return domain.ColumnDate
	default:
		return domain.ColumnCategorical
	}
}
