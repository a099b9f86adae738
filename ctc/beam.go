package ctc

import (
	"math"
	"slices"
	"sort"
)

// beam is the ranked set of active prefixes, deduplicated by token sequence.
type beam struct {
	items []*prefix
	index map[string]*prefix
}

func newBeam() *beam {
	p := emptyPrefix()
	return &beam{
		items: []*prefix{p},
		index: map[string]*prefix{p.key: p},
	}
}

// candidates returns the classes expanded at one timestep, most probable first.
// Classes are kept until their cumulative probability reaches cutoffProb, and
// never more than cutoffTopN of them. Impossible classes are never expanded.
func candidates(logProbs []float64, cutoffProb float64, cutoffTopN int, buf []int) []int {
	classes := buf[:0]
	for c, lp := range logProbs {
		if !math.IsInf(lp, -1) && !math.IsNaN(lp) {
			classes = append(classes, c)
		}
	}
	sort.SliceStable(classes, func(i, j int) bool {
		return logProbs[classes[i]] > logProbs[classes[j]]
	})

	n := len(classes)
	if cutoffProb < 1.0 {
		var cum float64
		for i, c := range classes {
			cum += math.Exp(logProbs[c])
			if cum >= cutoffProb {
				n = i + 1
				break
			}
		}
	}
	return classes[:min(n, cutoffTopN)]
}

// extend expands every prefix of the beam by the given classes at timestep t.
// Expansions landing on the same token sequence are merged into one prefix.
func (b *beam) extend(t int, logProbs []float64, classes []int, blankID int) {
	active := len(b.items)
	for _, p := range b.items[:active] {
		last := p.last()
		for _, c := range classes {
			lp := logProbs[c]
			if c == blankID {
				p.addBlank(lp)
				continue
			}
			if c == last {
				p.addRepeat(lp)
			}
			b.childOf(p, c, t).addEmission(p, c, lp)
		}
	}
}

// childOf returns the prefix p+c, creating it at timestep t if the beam does
// not hold it yet. An existing prefix keeps the timesteps of its first emission.
func (b *beam) childOf(p *prefix, c, t int) *prefix {
	key := p.childKey(c)
	if child, ok := b.index[key]; ok {
		return child
	}
	child := p.child(key, c, t)
	b.index[key] = child
	b.items = append(b.items, child)
	return child
}

// prune commits the current timestep and keeps the beamSize best prefixes.
// Prefixes that can no longer be reached are dropped.
func (b *beam) prune(beamSize int) {
	kept := b.items[:0]
	for _, p := range b.items {
		p.commit()
		if math.IsInf(p.score, -1) || math.IsNaN(p.score) {
			delete(b.index, p.key)
			continue
		}
		kept = append(kept, p)
	}
	sort.Slice(kept, func(i, j int) bool {
		return ranksBefore(kept[i], kept[j])
	})
	if len(kept) > beamSize {
		for _, p := range kept[beamSize:] {
			delete(b.index, p.key)
		}
		clear(kept[beamSize:])
		kept = kept[:beamSize]
	}
	b.items = kept
}

// ranksBefore orders prefixes by score, then shorter first, then by tokens.
func ranksBefore(a, b *prefix) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if len(a.tokens) != len(b.tokens) {
		return len(a.tokens) < len(b.tokens)
	}
	return slices.Compare(a.tokens, b.tokens) < 0
}

// outputs returns the n best hypotheses.
func (b *beam) outputs(n int) []Output {
	n = min(n, len(b.items))
	out := make([]Output, n)
	for i, p := range b.items[:n] {
		out[i] = p.output()
	}
	return out
}
