package ctc

import "fmt"

// LogLikelihood computes log P(labels | probs) over the first seqLen timesteps
// with the CTC forward algorithm, summing over every alignment that collapses
// to labels. It returns LogZero when labels cannot be emitted in time.
func LogLikelihood(probs [][]float64, seqLen int, labels []int, blankID int, logInput bool) (float64, error) {
	if len(probs) > 0 && seqLen > 0 {
		if err := checkLabels(labels, blankID, len(probs[0])); err != nil {
			return LogZero, err
		}
	}
	T, err := checkSequence(probs, seqLen, rowWidth(probs))
	if err != nil {
		return LogZero, err
	}
	if T == 0 {
		if len(labels) == 0 {
			return 0, nil
		}
		return LogZero, nil
	}

	// Positions of the blank-extended label: blank, l0, blank, l1, ..., blank.
	S := 2*len(labels) + 1
	class := func(s int) int {
		if s%2 == 0 {
			return blankID
		}
		return labels[s/2]
	}

	alpha := make([]float64, S)
	next := make([]float64, S)
	for s := range S {
		alpha[s] = LogZero
	}
	alpha[0] = logProb(probs[0][blankID], logInput)
	if S > 1 {
		alpha[1] = logProb(probs[0][labels[0]], logInput)
	}

	for t := 1; t < T; t++ {
		for s := range S {
			sum := alpha[s]
			if s > 0 {
				sum = LogAdd(sum, alpha[s-1])
			}
			if s > 1 && s%2 == 1 && labels[s/2] != labels[s/2-1] {
				sum = LogAdd(sum, alpha[s-2])
			}
			next[s] = sum + logProb(probs[t][class(s)], logInput)
		}
		alpha, next = next, alpha
	}

	// Valid paths end on the last label or the trailing blank.
	return LogSumExp(alpha[max(S-2, 0):]), nil
}

// checkLabels verifies that every label is a non-blank class.
func checkLabels(labels []int, blankID, numClasses int) error {
	if blankID < 0 || blankID >= numClasses {
		return fmt.Errorf("%w: blank_id %d outside [0, %d)", ErrInvalidConfig, blankID, numClasses)
	}
	for i, l := range labels {
		if l == blankID || l < 0 || l >= numClasses {
			return fmt.Errorf("%w: label %d at position %d", ErrInvalidLabel, l, i)
		}
	}
	return nil
}

func rowWidth(probs [][]float64) int {
	if len(probs) == 0 {
		return 0
	}
	return len(probs[0])
}
