package ctc

import "encoding/binary"

// prefix is one candidate output within a beam. Its probability mass is split
// between paths ending in blank and paths ending in its last token.
type prefix struct {
	key       string // varint encoding of tokens
	tokens    []int
	timesteps []int

	// log mass up to the previous timestep
	blank    float64
	nonBlank float64
	score    float64

	// log mass accumulated for the current timestep
	nextBlank    float64
	nextNonBlank float64
}

func newPrefix(key string, tokens, timesteps []int) *prefix {
	return &prefix{
		key:          key,
		tokens:       tokens,
		timesteps:    timesteps,
		blank:        LogZero,
		nonBlank:     LogZero,
		score:        LogZero,
		nextBlank:    LogZero,
		nextNonBlank: LogZero,
	}
}

// emptyPrefix is the starting point of every search: no tokens, probability one.
func emptyPrefix() *prefix {
	p := newPrefix("", []int{}, []int{})
	p.blank = 0
	p.score = 0
	return p
}

// last returns the final token, or -1 for the empty prefix.
func (p *prefix) last() int {
	if len(p.tokens) == 0 {
		return -1
	}
	return p.tokens[len(p.tokens)-1]
}

// childKey returns the key of p extended by class c.
func (p *prefix) childKey(c int) string {
	buf := make([]byte, 0, len(p.key)+binary.MaxVarintLen64)
	buf = append(buf, p.key...)
	return string(binary.AppendUvarint(buf, uint64(c)))
}

// child builds p extended by class c, emitted at timestep t.
func (p *prefix) child(key string, c, t int) *prefix {
	n := len(p.tokens)
	tokens := make([]int, n+1)
	copy(tokens, p.tokens)
	tokens[n] = c
	timesteps := make([]int, n+1)
	copy(timesteps, p.timesteps)
	timesteps[n] = t
	return newPrefix(key, tokens, timesteps)
}

// addBlank accumulates a path that stays on p by emitting blank.
func (p *prefix) addBlank(lp float64) {
	p.nextBlank = LogAdd(p.nextBlank, lp+p.score)
}

// addRepeat accumulates a path that stays on p by repeating its last token
// without an intervening blank.
func (p *prefix) addRepeat(lp float64) {
	p.nextNonBlank = LogAdd(p.nextNonBlank, lp+p.nonBlank)
}

// addEmission accumulates a path that reaches p from parent by emitting p's
// last token. A repeated token only counts after a blank.
func (p *prefix) addEmission(parent *prefix, c int, lp float64) {
	from := parent.score
	if c == parent.last() {
		from = parent.blank
	}
	p.nextNonBlank = LogAdd(p.nextNonBlank, lp+from)
}

// commit moves the accumulated mass of the current timestep into place.
func (p *prefix) commit() {
	p.blank, p.nonBlank = p.nextBlank, p.nextNonBlank
	p.nextBlank, p.nextNonBlank = LogZero, LogZero
	p.score = LogAdd(p.blank, p.nonBlank)
}

func (p *prefix) output() Output {
	out := Output{
		Tokens:    make([]int, len(p.tokens)),
		Timesteps: make([]int, len(p.timesteps)),
		Score:     p.score,
	}
	copy(out.Tokens, p.tokens)
	copy(out.Timesteps, p.timesteps)
	return out
}
