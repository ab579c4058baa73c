package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Tuning holds the thresholds, caps and timeouts of the discussion engine.
// Every component receives its section explicitly; nothing reads globals.
type Tuning struct {
	Rounds   RoundConfig    `toml:"rounds"`
	Scoring  ScoringConfig  `toml:"scoring"`
	Revision RevisionConfig `toml:"revision"`
	Gate     GateConfig     `toml:"gate"`
}

// RoundConfig bounds round progression and item ages.
type RoundConfig struct {
	MaxRounds       int           `toml:"max_rounds"`
	PendingTimeout  time.Duration `toml:"pending_timeout"`
	RevisionTimeout time.Duration `toml:"revision_timeout"`
}

// Weights are the composite score coefficients.
type Weights struct {
	Confidence float64 `toml:"confidence"`
	Impact     float64 `toml:"impact"`
	Risk       float64 `toml:"risk"`
	Alignment  float64 `toml:"alignment"`
}

// ScoringConfig configures the manager scorer.
type ScoringConfig struct {
	ApprovalThreshold     float64 `toml:"approval_threshold"`
	MaterialGap           float64 `toml:"material_gap"`
	MinConfidence         float64 `toml:"min_confidence"`
	HighRisk              float64 `toml:"high_risk"`
	HighRiskMinConfidence float64 `toml:"high_risk_min_confidence"`
	ReferenceAmount       float64 `toml:"reference_amount"`
	DefaultConfidence     float64 `toml:"default_confidence"`
	DefaultAlignment      float64 `toml:"default_alignment"`
	Weights               Weights `toml:"weights"`
}

// ApprovalFloor is the lowest score the decision rule still approves.
func (c ScoringConfig) ApprovalFloor() float64 {
	return c.ApprovalThreshold - c.MaterialGap
}

// RevisionConfig configures the worker revision protocol.
type RevisionConfig struct {
	MaxRevisions      int     `toml:"max_revisions"`
	ConfidencePenalty float64 `toml:"confidence_penalty"`
}

// GateConfig configures discussion admission.
type GateConfig struct {
	ConfidenceThreshold float64       `toml:"confidence_threshold"`
	MinInterval         time.Duration `toml:"min_interval"`
}

// DefaultTuning returns the stock engine settings.
func DefaultTuning() Tuning {
	return Tuning{
		Rounds: RoundConfig{
			MaxRounds:       2,
			PendingTimeout:  5 * time.Minute,
			RevisionTimeout: 10 * time.Minute,
		},
		Scoring: ScoringConfig{
			ApprovalThreshold:     70,
			MaterialGap:           20,
			MinConfidence:         10,
			HighRisk:              80,
			HighRiskMinConfidence: 50,
			ReferenceAmount:       10000,
			DefaultConfidence:     50,
			DefaultAlignment:      60,
			Weights: Weights{
				Confidence: 0.35,
				Impact:     0.30,
				Risk:       0.20,
				Alignment:  0.15,
			},
		},
		Revision: RevisionConfig{
			MaxRevisions:      2,
			ConfidencePenalty: 5,
		},
		Gate: GateConfig{
			ConfidenceThreshold: 65,
			MinInterval:         time.Minute,
		},
	}
}

// LoadTuning decodes a TOML file over the defaults. An empty path returns
// the defaults unchanged.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}
	if _, err := toml.DecodeFile(path, &t); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Tuning{}, fmt.Errorf("tuning file %s: %w", path, err)
		}
		return Tuning{}, fmt.Errorf("decode tuning file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return t, nil
}

// Validate checks that the settings can drive a terminating engine.
func (t Tuning) Validate() error {
	var errs []error
	if t.Rounds.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("rounds.max_rounds must be at least 1, got %d", t.Rounds.MaxRounds))
	}
	if t.Rounds.PendingTimeout <= 0 {
		errs = append(errs, fmt.Errorf("rounds.pending_timeout must be positive"))
	}
	if t.Rounds.RevisionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("rounds.revision_timeout must be positive"))
	}
	if t.Revision.MaxRevisions < 0 {
		errs = append(errs, fmt.Errorf("revision.max_revisions must not be negative"))
	}
	if t.Scoring.ReferenceAmount <= 0 {
		errs = append(errs, fmt.Errorf("scoring.reference_amount must be positive"))
	}
	w := t.Scoring.Weights
	if sum := w.Confidence + w.Impact + w.Risk + w.Alignment; math.Abs(sum-1) > 0.001 {
		errs = append(errs, fmt.Errorf("scoring.weights must sum to 1, got %.3f", sum))
	}
	if t.Gate.ConfidenceThreshold < 0 || t.Gate.ConfidenceThreshold > 100 {
		errs = append(errs, fmt.Errorf("gate.confidence_threshold must be between 0 and 100"))
	}
	return errors.Join(errs...)
}
