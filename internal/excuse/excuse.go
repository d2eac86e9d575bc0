// Package excuse judges whether a student's absence reason is plausible
// using a generative model.
//
// A Validator never fails: any transport or decoding problem is logged and
// replaced by the fallback verdict, so marking someone absent does not
// depend on the model being reachable.
package excuse

import (
	"context"
	"log/slog"

	"attendease/internal/metrics"
)

// FallbackExplanation is the explanation attached when the model could not be consulted.
const FallbackExplanation = "could not validate"

// Verdict is the structured judgment attached to an absence record.
type Verdict struct {
	IsValid     bool   `json:"isValid"`
	Explanation string `json:"explanation"`
}

// Fallback returns the verdict used whenever validation fails.
func Fallback() Verdict {
	return Verdict{IsValid: false, Explanation: FallbackExplanation}
}

// Label is the short form shown next to a record.
func (v Verdict) Label() string {
	if v.IsValid {
		return "Valid"
	}
	return "Suspicious"
}

// Assessor performs a single model round trip.
type Assessor interface {
	Assess(ctx context.Context, reason string) (Verdict, error)
}

// Validator wraps an Assessor and converts every failure into Fallback.
type Validator struct {
	assessor Assessor
	logger   *slog.Logger
}

// NewValidator creates a validator backed by assessor.
func NewValidator(assessor Assessor, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{assessor: assessor, logger: logger}
}

// Validate returns the model verdict for reason, or Fallback on any error.
func (v *Validator) Validate(ctx context.Context, reason string) Verdict {
	verdict, err := v.assessor.Assess(ctx, reason)
	if err != nil {
		v.logger.WarnContext(ctx, "absence reason validation failed", "error", err)
		metrics.Validations.WithLabelValues("fallback").Inc()
		return Fallback()
	}
	if verdict.IsValid {
		metrics.Validations.WithLabelValues("valid").Inc()
	} else {
		metrics.Validations.WithLabelValues("suspicious").Inc()
	}
	return verdict
}
