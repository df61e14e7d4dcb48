package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
)

func TestFilterDecide(t *testing.T) {
	f := NewFilter(DefaultFilterConfig(), logger.Nop())

	tests := []struct {
		name       string
		res        models.ConfluenceResult
		wantPassed bool
		wantReason string
	}{
		{
			name:       "passes above both thresholds",
			res:        models.ConfluenceResult{Quality: models.QualityHigh, Confidence: 0.62, Disagreement: 0.01},
			wantPassed: true,
		},
		{
			name:       "passes just over the line",
			res:        models.ConfluenceResult{Quality: models.QualityMedium, Confidence: 0.31, Disagreement: 0.29},
			wantPassed: true,
		},
		{
			name:       "threshold is exclusive at the boundary",
			res:        models.ConfluenceResult{Quality: models.QualityMedium, Confidence: 0.3, Disagreement: 0.3},
			wantPassed: true,
		},
		{
			name:       "low confidence",
			res:        models.ConfluenceResult{Quality: models.QualityMedium, Confidence: 0.29, Disagreement: 0.1},
			wantReason: models.ReasonLowConfidence,
		},
		{
			name:       "high disagreement",
			res:        models.ConfluenceResult{Quality: models.QualityLow, Confidence: 0.5, Disagreement: 0.31},
			wantReason: models.ReasonHighDisagreement,
		},
		{
			name:       "disagreement reported before confidence",
			res:        models.ConfluenceResult{Quality: models.QualityLow, Confidence: 0.01, Disagreement: 0.61},
			wantReason: models.ReasonHighDisagreement,
		},
		{
			name:       "invalid always filtered",
			res:        models.ConfluenceResult{Quality: models.QualityInvalid, Confidence: 0.9, Disagreement: 0.0},
			wantReason: models.ReasonInvalidQuality,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.Decide(&tt.res)
			assert.Equal(t, tt.wantPassed, d.Passed())
			assert.Equal(t, tt.wantReason, d.Reason)
		})
	}
}

func TestFilterCustomThresholds(t *testing.T) {
	f := NewFilter(FilterConfig{ConfidenceThreshold: 0.5, DisagreementThreshold: 0.1}, logger.Nop())

	d := f.Decide(&models.ConfluenceResult{Quality: models.QualityMedium, Confidence: 0.4, Disagreement: 0.05})
	assert.Equal(t, models.ReasonLowConfidence, d.Reason)

	d = f.Decide(&models.ConfluenceResult{Quality: models.QualityMedium, Confidence: 0.6, Disagreement: 0.15})
	assert.Equal(t, models.ReasonHighDisagreement, d.Reason)

	d = f.Decide(&models.ConfluenceResult{Quality: models.QualityMedium, Confidence: 0.6, Disagreement: 0.05})
	assert.True(t, d.Passed())
}
