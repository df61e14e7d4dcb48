// Package quality gates confluence results before they reach downstream
// consumers and keeps the append-only audit trail of every decision.
package quality

import (
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
)

// FilterConfig holds the gate thresholds. Configuration, not constants.
type FilterConfig struct {
	ConfidenceThreshold   float64 `yaml:"confidence_threshold" default:"0.3" validate:"gte=0,lte=1"`
	DisagreementThreshold float64 `yaml:"disagreement_threshold" default:"0.3" validate:"gte=0"`
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{ConfidenceThreshold: 0.3, DisagreementThreshold: 0.3}
}

// Filter is the gatekeeper between the aggregator and any signal consumer.
type Filter struct {
	cfg FilterConfig
	log *logger.Logger
}

func NewFilter(cfg FilterConfig, log *logger.Logger) *Filter {
	if log == nil {
		log = logger.Nop()
	}
	return &Filter{cfg: cfg, log: log}
}

// Decide maps one evaluation to PASSED or FILTERED(reason). Invalid
// quality is always filtered, never passed with invalid data.
// Disagreement is checked before confidence so an extreme indicator split
// is reported as the split rather than as the low confidence it implies.
func (f *Filter) Decide(res *models.ConfluenceResult) models.FilterDecision {
	switch {
	case res.Quality == models.QualityInvalid:
		return f.filtered(res, models.ReasonInvalidQuality)
	case res.Disagreement > f.cfg.DisagreementThreshold:
		return f.filtered(res, models.ReasonHighDisagreement)
	case res.Confidence < f.cfg.ConfidenceThreshold:
		return f.filtered(res, models.ReasonLowConfidence)
	default:
		return models.FilterDecision{Outcome: models.OutcomePassed}
	}
}

func (f *Filter) filtered(res *models.ConfluenceResult, reason string) models.FilterDecision {
	f.log.Debug("signal filtered",
		logger.String("symbol", res.Symbol),
		logger.String("reason", reason),
		logger.Float64("confidence", res.Confidence),
		logger.Float64("disagreement", res.Disagreement))
	return models.FilterDecision{Outcome: models.OutcomeFiltered, Reason: reason}
}
