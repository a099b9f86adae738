package ctc

import "fmt"

// Align finds the most probable path through the first seqLen timesteps of
// probs that collapses to labels (Viterbi forced alignment).
func Align(probs [][]float64, seqLen int, labels []int, blankID int, logInput bool) (*Alignment, error) {
	if len(probs) > 0 && seqLen > 0 {
		if err := checkLabels(labels, blankID, len(probs[0])); err != nil {
			return nil, err
		}
	}
	T, err := checkSequence(probs, seqLen, rowWidth(probs))
	if err != nil {
		return nil, err
	}
	if T == 0 {
		if len(labels) == 0 {
			return &Alignment{Timesteps: []int{}, Path: []int{}}, nil
		}
		return nil, fmt.Errorf("%w: %d labels in an empty sequence", ErrNoAlignment, len(labels))
	}

	S := 2*len(labels) + 1
	class := func(s int) int {
		if s%2 == 0 {
			return blankID
		}
		return labels[s/2]
	}

	// delta[t][s] = best score ending at time t in position s
	delta := make([][]float64, T)
	// psi[t][s] = best previous position for backtracking
	psi := make([][]int, T)

	delta[0] = make([]float64, S)
	psi[0] = make([]int, S)
	for s := range S {
		delta[0][s] = LogZero
	}
	delta[0][0] = logProb(probs[0][blankID], logInput)
	if S > 1 {
		delta[0][1] = logProb(probs[0][labels[0]], logInput)
	}

	for t := 1; t < T; t++ {
		delta[t] = make([]float64, S)
		psi[t] = make([]int, S)
		for s := range S {
			bestScore := delta[t-1][s]
			bestPrev := s
			if s > 0 && delta[t-1][s-1] > bestScore {
				bestScore = delta[t-1][s-1]
				bestPrev = s - 1
			}
			if s > 1 && s%2 == 1 && labels[s/2] != labels[s/2-1] && delta[t-1][s-2] > bestScore {
				bestScore = delta[t-1][s-2]
				bestPrev = s - 2
			}
			delta[t][s] = bestScore + logProb(probs[t][class(s)], logInput)
			psi[t][s] = bestPrev
		}
	}

	// Find best final position
	end := S - 1
	if S > 1 && delta[T-1][S-2] > delta[T-1][end] {
		end = S - 2
	}
	bestScore := delta[T-1][end]
	if bestScore == LogZero {
		return nil, fmt.Errorf("%w: %d labels in %d timesteps", ErrNoAlignment, len(labels), T)
	}

	// Backtrack
	states := make([]int, T)
	states[T-1] = end
	for t := T - 1; t > 0; t-- {
		states[t-1] = psi[t][states[t]]
	}

	a := &Alignment{
		Timesteps: make([]int, len(labels)),
		Path:      make([]int, T),
		Score:     bestScore,
	}
	for t, s := range states {
		a.Path[t] = class(s)
		if s%2 == 1 && (t == 0 || states[t-1] != s) {
			a.Timesteps[s/2] = t
		}
	}
	return a, nil
}
