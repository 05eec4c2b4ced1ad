package alert

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"cryptoalert/internal/models"
)

var (
	ErrUnknownCondition = errors.New("unknown condition type")
	ErrInvalidThreshold = errors.New("invalid threshold")
	ErrInvalidSample    = errors.New("invalid sample")
)

// Sample is one observation of a resource's metric.
type Sample struct {
	Value        decimal.Decimal
	PctChange24h *decimal.Decimal
}

func (s Sample) Validate() error {
	if s.Value.IsNegative() {
		return fmt.Errorf("%w: negative value %s", ErrInvalidSample, s.Value.String())
	}
	return nil
}

// Satisfied evaluates one condition. A percentage condition without a 24h
// change sample is not satisfied. Unknown condition types are never satisfied.
func Satisfied(cond models.ConditionType, threshold, value decimal.Decimal, pctChange24h *decimal.Decimal) bool {
	switch cond {
	case models.ConditionAbove:
		return value.GreaterThanOrEqual(threshold)
	case models.ConditionBelow:
		return value.LessThanOrEqual(threshold)
	case models.ConditionPctUp:
		if pctChange24h == nil {
			return false
		}
		return pctChange24h.GreaterThanOrEqual(threshold)
	case models.ConditionPctDown:
		if pctChange24h == nil {
			return false
		}
		return pctChange24h.LessThanOrEqual(threshold.Neg())
	default:
		return false
	}
}

// Evaluate checks a stored alert against a sample, rejecting records the
// condition logic cannot interpret.
func Evaluate(a models.Alert, s Sample) (bool, error) {
	if !a.ConditionType.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownCondition, a.ConditionType)
	}
	if a.Threshold.IsNegative() {
		return false, fmt.Errorf("%w: %s", ErrInvalidThreshold, a.Threshold.String())
	}
	if err := s.Validate(); err != nil {
		return false, err
	}
	return Satisfied(a.ConditionType, a.Threshold, s.Value, s.PctChange24h), nil
}
