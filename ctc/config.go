package ctc

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidConfig is returned for decoder settings that cannot be used.
	ErrInvalidConfig = errors.New("invalid decoder config")
	// ErrDimensionMismatch is returned when a matrix does not match the class count.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNegativeLength is returned for a negative declared sequence length.
	ErrNegativeLength = errors.New("negative sequence length")
	// ErrInvalidLabel is returned when a label sequence holds the blank or an unknown class.
	ErrInvalidLabel = errors.New("invalid label")
	// ErrNoAlignment is returned when a label sequence cannot be aligned to a matrix.
	ErrNoAlignment = errors.New("no alignment")
)

// Config holds beam search parameters. It applies uniformly to a batch.
type Config struct {
	BeamSize     int     `json:"beam_size" yaml:"beam_size"`         // hypotheses kept per timestep and returned per item
	NumProcesses int     `json:"num_processes" yaml:"num_processes"` // batch workers
	CutoffProb   float64 `json:"cutoff_prob" yaml:"cutoff_prob"`     // cumulative probability budget per timestep, in (0, 1]
	CutoffTopN   int     `json:"cutoff_top_n" yaml:"cutoff_top_n"`   // max classes expanded per timestep
	BlankID      int     `json:"blank_id" yaml:"blank_id"`
	LogInput     bool    `json:"log_input" yaml:"log_input"` // matrix values are log-probabilities
}

// DefaultConfig returns reasonable default parameters.
func DefaultConfig() Config {
	return Config{
		BeamSize:     100,
		NumProcesses: 4,
		CutoffProb:   1.0,
		CutoffTopN:   40,
		BlankID:      0,
		LogInput:     false,
	}
}

// Validate checks the config against the number of classes in a matrix row.
func (c Config) Validate(numClasses int) error {
	switch {
	case numClasses <= 0:
		return fmt.Errorf("%w: %d classes", ErrInvalidConfig, numClasses)
	case c.BeamSize <= 0:
		return fmt.Errorf("%w: beam_size must be positive, got %d", ErrInvalidConfig, c.BeamSize)
	case math.IsNaN(c.CutoffProb) || c.CutoffProb <= 0 || c.CutoffProb > 1:
		return fmt.Errorf("%w: cutoff_prob must be in (0, 1], got %g", ErrInvalidConfig, c.CutoffProb)
	case c.CutoffTopN <= 0:
		return fmt.Errorf("%w: cutoff_top_n must be positive, got %d", ErrInvalidConfig, c.CutoffTopN)
	case c.BlankID < 0 || c.BlankID >= numClasses:
		return fmt.Errorf("%w: blank_id %d outside [0, %d)", ErrInvalidConfig, c.BlankID, numClasses)
	}
	return nil
}
