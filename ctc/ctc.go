// Package ctc implements decoding for Connectionist Temporal Classification.
//
// The input of every decoder is a probability matrix: one row per timestep,
// one column per class, where one class is the reserved blank. Rows hold
// either probabilities or log-probabilities (see Config.LogInput).
package ctc

// Output is a decoded hypothesis.
type Output struct {
	Tokens    []int   `json:"tokens"`    // class indices, blank excluded
	Timesteps []int   `json:"timesteps"` // frame at which each token was first emitted
	Score     float64 `json:"score"`     // log-probability
}

// Alignment is a forced alignment of a label sequence to a probability matrix.
type Alignment struct {
	Timesteps []int   `json:"timesteps"` // first frame of each label
	Path      []int   `json:"path"`      // class emitted at every frame
	Score     float64 `json:"score"`     // log-probability of the best path
}
