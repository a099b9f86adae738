package ctc

// GreedyDecode returns the best path through the first seqLen timesteps of
// probs: the most probable class at every frame, with repeats collapsed and
// blanks removed. The score is the log-probability of that single path.
func GreedyDecode(probs [][]float64, seqLen, blankID int, logInput bool) Output {
	T := min(max(seqLen, 0), len(probs))
	out := Output{Tokens: []int{}, Timesteps: []int{}}
	prev := -1
	for t := range T {
		best := argmax(probs[t])
		if best < 0 {
			prev = -1
			continue
		}
		out.Score += logProb(probs[t][best], logInput)
		if best != blankID && best != prev {
			out.Tokens = append(out.Tokens, best)
			out.Timesteps = append(out.Timesteps, t)
		}
		prev = best
	}
	return out
}

// argmax returns the index of the largest value, the first one on ties, or -1
// for an empty row.
func argmax(row []float64) int {
	best := -1
	for i, v := range row {
		if best < 0 || v > row[best] {
			best = i
		}
	}
	return best
}
