// Package orchestrate wires the validator, a primary solver, an
// optional one-shot fallback, and the evaluator into a single control
// flow: configuration is read once at construction, and the algorithm
// name can still be switched per call via WithStrategy without
// re-reading configuration.
package orchestrate

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/nlevy/classrooms-go/internal/apperrors"
	"github.com/nlevy/classrooms-go/internal/cso"
	"github.com/nlevy/classrooms-go/internal/engine"
	"github.com/nlevy/classrooms-go/internal/evaluate"
	"github.com/nlevy/classrooms-go/internal/greedy"
	"github.com/nlevy/classrooms-go/internal/roster"
	"github.com/nlevy/classrooms-go/internal/validate"
)

// Config is read once when the Orchestrator is constructed.
type Config struct {
	Algorithm       string
	TimeoutSeconds  int
	FallbackEnabled bool
	MinClassSize    int
	Weights         engine.Weights
}

// DefaultConfig returns the package's default configuration.
func DefaultConfig() Config {
	return Config{
		Algorithm:       "cso",
		TimeoutSeconds:  30,
		FallbackEnabled: true,
		MinClassSize:    2,
		Weights:         engine.DefaultWeights(),
	}
}

// ConfigFromEnv overlays DefaultConfig with CLASSROOMS_* environment
// variables, read once via plain os.Getenv calls.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("CLASSROOMS_ALGORITHM"); v != "" {
		cfg.Algorithm = v
	}
	if v := os.Getenv("CLASSROOMS_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("CLASSROOMS_FALLBACK_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.FallbackEnabled = b
		}
	}
	if v := os.Getenv("CLASSROOMS_MIN_CLASS_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinClassSize = n
		}
	}
	if v := os.Getenv("CLASSROOMS_W_F"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Weights.Friendship = f
		}
	}
	if v := os.Getenv("CLASSROOMS_W_G"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Weights.Gender = f
		}
	}
	if v := os.Getenv("CLASSROOMS_W_A"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Weights.Academic = f
		}
	}
	if v := os.Getenv("CLASSROOMS_W_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Weights.Behavior = f
		}
	}
	if v := os.Getenv("CLASSROOMS_W_C"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Weights.Cluster = f
		}
	}
	return cfg
}

// ParseAlgorithm maps backward-compatible algorithm aliases --
// "cp_sat"/"cpsat" for the constraint solver, "legacy"/"legacy_greedy"
// for the heuristic -- onto this package's two canonical strategy
// names.
func ParseAlgorithm(name string) string {
	switch name {
	case "cso", "cp_sat", "cpsat":
		return "cso"
	case "greedy", "legacy", "legacy_greedy":
		return "greedy"
	default:
		return name
	}
}

// Result is everything one Assign call returns: the roster (for name
// lookups by callers), the assignment, its evaluation, and any
// non-fatal warnings collected while building the roster.
type Result struct {
	Roster     *roster.Roster
	Assignment engine.Assignment
	Evaluation evaluate.Record
	Warnings   []roster.Warning
	Strategy   string
	Diagnostics engine.Diagnostics
	FellBack   bool
}

// Orchestrator runs the full validate -> solve -> fallback -> evaluate
// pipeline.
type Orchestrator struct {
	cfg        Config
	strategies map[string]engine.Strategy
}

// New constructs an Orchestrator from a Config read once by the
// caller.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg: cfg,
		strategies: map[string]engine.Strategy{
			"greedy": greedy.New(),
			"cso":    cso.New(),
		},
	}
}

// WithStrategy returns a copy of the Orchestrator configured to use a
// different primary algorithm for this call only, leaving the
// original's configuration untouched.
func (o *Orchestrator) WithStrategy(name string) *Orchestrator {
	cfg := o.cfg
	cfg.Algorithm = name
	return &Orchestrator{cfg: cfg, strategies: o.strategies}
}

// Assign runs the five-step pipeline: validate the
// roster, run the primary solver under a deadline, fall back to
// Greedy once if the primary solver fails and fallback is enabled,
// evaluate whatever assignment results, and attach the evaluation
// record. A validator failure or an unrecoverable solver failure is
// returned as the error; any other outcome is a populated Result.
func (o *Orchestrator) Assign(ctx context.Context, raw []roster.RawStudent, k int) (Result, error) {
	r, warnings, err := validate.Validate(raw, k, validate.Config{MinClassSize: o.cfg.MinClassSize})
	if err != nil {
		return Result{}, err
	}

	primaryName := ParseAlgorithm(o.cfg.Algorithm)
	primary, ok := o.strategies[primaryName]
	if !ok {
		return Result{}, apperrors.New(apperrors.ErrInternal, map[string]any{"algorithm": o.cfg.Algorithm}, "unknown algorithm")
	}

	deadline := time.Duration(o.cfg.TimeoutSeconds) * time.Second
	solveCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	solveCfg := engine.SolveConfig{Weights: o.cfg.Weights}
	assignment, diag, solveErr := primary.Solve(solveCtx, r, k, solveCfg)

	fellBack := false
	strategyUsed := primary.Name()
	if solveErr != nil {
		if !o.cfg.FallbackEnabled || primaryName == "greedy" {
			return Result{Roster: r, Warnings: warnings}, solveErr
		}
		fallback := o.strategies["greedy"]
		fallbackCtx, fallbackCancel := context.WithTimeout(ctx, deadline)
		assignment, diag, solveErr = fallback.Solve(fallbackCtx, r, k, solveCfg)
		fallbackCancel()
		if solveErr != nil {
			return Result{Roster: r, Warnings: warnings}, solveErr
		}
		fellBack = true
		strategyUsed = fallback.Name()
	}

	record := evaluate.Evaluate(r, assignment, k, o.cfg.Weights)

	return Result{
		Roster:      r,
		Assignment:  assignment,
		Evaluation:  record,
		Warnings:    warnings,
		Strategy:    strategyUsed,
		Diagnostics: diag,
		FellBack:    fellBack,
	}, nil
}
