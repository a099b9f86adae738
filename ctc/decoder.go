package ctc

import "fmt"

// Decoder runs prefix beam search over single probability matrices.
// A Decoder holds no per-sequence state and is safe for concurrent use.
type Decoder struct {
	cfg        Config
	numClasses int
}

// NewDecoder creates a decoder for matrices with numClasses columns.
func NewDecoder(cfg Config, numClasses int) (*Decoder, error) {
	if err := cfg.Validate(numClasses); err != nil {
		return nil, err
	}
	return &Decoder{cfg: cfg, numClasses: numClasses}, nil
}

// Config returns the decoder configuration.
func (d *Decoder) Config() Config {
	return d.cfg
}

// NumClasses returns the expected width of every matrix row.
func (d *Decoder) NumClasses() int {
	return d.numClasses
}

// Decode returns up to BeamSize hypotheses for the first seqLen timesteps of
// probs, best first. A seqLen beyond the matrix is clamped to its length.
//
// An empty sequence yields one empty hypothesis with score 0. A matrix in
// which no path has non-zero probability yields no hypotheses.
func (d *Decoder) Decode(probs [][]float64, seqLen int) ([]Output, error) {
	T, err := checkSequence(probs, seqLen, d.numClasses)
	if err != nil {
		return nil, err
	}

	b := newBeam()
	logProbs := make([]float64, d.numClasses)
	classes := make([]int, 0, d.numClasses)
	for t := range T {
		logRow(logProbs, probs[t], d.cfg.LogInput)
		classes = candidates(logProbs, d.cfg.CutoffProb, d.cfg.CutoffTopN, classes)
		b.extend(t, logProbs, classes, d.cfg.BlankID)
		b.prune(d.cfg.BeamSize)
	}
	return b.outputs(d.cfg.BeamSize), nil
}

// checkSequence clamps seqLen to the matrix and checks the rows it covers.
func checkSequence(probs [][]float64, seqLen, numClasses int) (int, error) {
	if seqLen < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeLength, seqLen)
	}
	T := min(seqLen, len(probs))
	for t := range T {
		if len(probs[t]) != numClasses {
			return 0, fmt.Errorf("%w: timestep %d has %d classes, want %d",
				ErrDimensionMismatch, t, len(probs[t]), numClasses)
		}
	}
	return T, nil
}
