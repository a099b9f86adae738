package ctc

import (
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Vocabulary and matrices of the reference beam search test suite.
var (
	refVocab = []string{"'", " ", "a", "b", "c", "d", "_"}
	refBlank = 6

	refProbs1 = [][]float64{
		{0.06390443, 0.21124858, 0.27323887, 0.06870235, 0.0361254, 0.18184413, 0.16493624},
		{0.03309247, 0.22866108, 0.24390638, 0.09699597, 0.31895462, 0.0094893, 0.06890021},
		{0.218104, 0.19992557, 0.18245131, 0.08503348, 0.14903535, 0.08424043, 0.08120984},
		{0.12094152, 0.19162472, 0.01473646, 0.28045061, 0.24246305, 0.05206269, 0.09772094},
		{0.1333387, 0.00550838, 0.00301669, 0.21745861, 0.20803985, 0.41317442, 0.01946335},
		{0.16468227, 0.1980699, 0.1906545, 0.18963251, 0.19860937, 0.04377724, 0.01457421},
	}
	refProbs2 = [][]float64{
		{0.08034842, 0.22671944, 0.05799633, 0.36814645, 0.11307441, 0.04468023, 0.10903471},
		{0.09742457, 0.12959763, 0.09435383, 0.21889204, 0.15113123, 0.10219457, 0.20640612},
		{0.45033529, 0.09091417, 0.15333208, 0.07939558, 0.08649316, 0.12298585, 0.01654384},
		{0.02512238, 0.22079203, 0.19664364, 0.11906379, 0.07816055, 0.22538587, 0.13483174},
		{0.17928453, 0.06065261, 0.41153005, 0.1172041, 0.11880313, 0.07113197, 0.04139363},
		{0.15882358, 0.1235788, 0.23376776, 0.20510435, 0.00279306, 0.05294827, 0.22298418},
	}
)

func refString(tokens []int) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(refVocab[tok])
	}
	return sb.String()
}

func toLog(probs [][]float64) [][]float64 {
	out := make([][]float64, len(probs))
	for t, row := range probs {
		out[t] = logs(row...)
	}
	return out
}

func newTestDecoder(t *testing.T, cfg Config, numClasses int) *Decoder {
	t.Helper()
	d, err := NewDecoder(cfg, numClasses)
	require.NoError(t, err)
	return d
}

func refConfig() Config {
	cfg := DefaultConfig()
	cfg.BeamSize = 20
	cfg.BlankID = refBlank
	return cfg
}

func TestDecodeReferenceVectors(t *testing.T) {
	d := newTestDecoder(t, refConfig(), len(refVocab))

	out, err := d.Decode(refProbs1, len(refProbs1))
	require.NoError(t, err)
	require.Len(t, out, 20)
	assert.Equal(t, "acdc", refString(out[0].Tokens))

	out, err = d.Decode(refProbs2, len(refProbs2))
	require.NoError(t, err)
	assert.Equal(t, "b'a", refString(out[0].Tokens))
	assert.Equal(t, []int{0, 1, 3}, out[0].Timesteps)
}

func TestDecodeLogInput(t *testing.T) {
	linear := newTestDecoder(t, refConfig(), len(refVocab))
	cfg := refConfig()
	cfg.LogInput = true
	logd := newTestDecoder(t, cfg, len(refVocab))

	for _, probs := range [][][]float64{refProbs1, refProbs2} {
		want, err := linear.Decode(probs, len(probs))
		require.NoError(t, err)
		got, err := logd.Decode(toLog(probs), len(probs))
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Tokens, got[i].Tokens)
			assert.InDelta(t, want[i].Score, got[i].Score, 1e-9)
		}
	}
}

func TestDecodeEndToEnd(t *testing.T) {
	// vocabulary {a, b}, blank = 2
	probs := [][]float64{
		{0.9, 0.05, 0.05},
		{0.05, 0.05, 0.9},
		{0.9, 0.05, 0.05},
	}
	cfg := Config{BeamSize: 5, NumProcesses: 1, CutoffProb: 1.0, CutoffTopN: 3, BlankID: 2}
	d := newTestDecoder(t, cfg, 3)

	out, err := d.Decode(probs, len(probs))
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, []int{0, 0}, out[0].Tokens)
	assert.Equal(t, []int{0, 2}, out[0].Timesteps)
	// a-blank-a is the only path collapsing to [a a]
	assert.InDelta(t, math.Log(0.729), out[0].Score, 1e-12)
}

func TestDecodeRepeatCollapse(t *testing.T) {
	// dominant path: a, a, blank, a
	probs := [][]float64{
		{0.9, 0.05, 0.05},
		{0.9, 0.05, 0.05},
		{0.05, 0.05, 0.9},
		{0.9, 0.05, 0.05},
	}
	cfg := DefaultConfig()
	cfg.BeamSize = 5
	cfg.BlankID = 2
	d := newTestDecoder(t, cfg, 3)

	out, err := d.Decode(probs, len(probs))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, out[0].Tokens)
	assert.Equal(t, []int{0, 3}, out[0].Timesteps)
}

func TestDecodeEmptySequence(t *testing.T) {
	d := newTestDecoder(t, refConfig(), len(refVocab))

	for _, probs := range [][][]float64{nil, refProbs1} {
		out, err := d.Decode(probs, 0)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Empty(t, out[0].Tokens)
		assert.NotNil(t, out[0].Tokens)
		assert.Equal(t, 0.0, out[0].Score)
	}
}

func TestDecodeDegenerateInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlankID = 2
	d := newTestDecoder(t, cfg, 3)

	out, err := d.Decode([][]float64{{0.5, 0.5, 0}, {0, 0, 0}}, 2)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDecodeLengthClamping(t *testing.T) {
	d := newTestDecoder(t, refConfig(), len(refVocab))

	want, err := d.Decode(refProbs1, len(refProbs1))
	require.NoError(t, err)
	got, err := d.Decode(refProbs1, 1000)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	short, err := d.Decode(refProbs1, 2)
	require.NoError(t, err)
	prefix, err := d.Decode(refProbs1[:2], 2)
	require.NoError(t, err)
	assert.Equal(t, prefix, short)
	for _, o := range short {
		for _, ts := range o.Timesteps {
			assert.Less(t, ts, 2)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	d := newTestDecoder(t, refConfig(), len(refVocab))

	_, err := d.Decode(refProbs1, -1)
	assert.ErrorIs(t, err, ErrNegativeLength)

	bad := [][]float64{refProbs1[0], {0.5, 0.5}}
	_, err = d.Decode(bad, 2)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	// rows past the declared length are never read
	_, err = d.Decode(bad, 1)
	assert.NoError(t, err)
}

func TestNewDecoderRejectsConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero beam", func(c *Config) { c.BeamSize = 0 }},
		{"zero cutoff prob", func(c *Config) { c.CutoffProb = 0 }},
		{"cutoff prob above one", func(c *Config) { c.CutoffProb = 1.5 }},
		{"nan cutoff prob", func(c *Config) { c.CutoffProb = math.NaN() }},
		{"zero top n", func(c *Config) { c.CutoffTopN = 0 }},
		{"blank out of range", func(c *Config) { c.BlankID = 7 }},
		{"negative blank", func(c *Config) { c.BlankID = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := refConfig()
			tt.modify(&cfg)
			_, err := NewDecoder(cfg, len(refVocab))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestDecodeProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	cfg := DefaultConfig()
	cfg.BeamSize = 8
	cfg.CutoffTopN = 4
	cfg.BlankID = 3
	d := newTestDecoder(t, cfg, 5)

	for range 20 {
		probs := randomMatrix(rng, 1+rng.IntN(12), 5)
		out, err := d.Decode(probs, len(probs))
		require.NoError(t, err)
		require.NotEmpty(t, out)
		require.LessOrEqual(t, len(out), cfg.BeamSize)

		seen := make(map[string]bool)
		for i, o := range out {
			if i > 0 {
				assert.GreaterOrEqual(t, out[i-1].Score, o.Score)
			}
			assert.NotContains(t, o.Tokens, cfg.BlankID)
			require.Len(t, o.Timesteps, len(o.Tokens))
			for j := 1; j < len(o.Timesteps); j++ {
				assert.Less(t, o.Timesteps[j-1], o.Timesteps[j])
			}
			key := refString(o.Tokens)
			assert.False(t, seen[key], "duplicate hypothesis %v", o.Tokens)
			seen[key] = true
		}
	}
}

func TestCutoffNarrowingNeverImprovesBestScore(t *testing.T) {
	// A beam wide enough to hold every prefix isolates the effect of the cutoffs.
	base := refConfig()
	base.BeamSize = 1000

	best := func(cfg Config) float64 {
		d := newTestDecoder(t, cfg, len(refVocab))
		out, err := d.Decode(refProbs1, len(refProbs1))
		require.NoError(t, err)
		require.NotEmpty(t, out)
		return out[0].Score
	}

	prev := math.Inf(1)
	for _, topN := range []int{7, 5, 3, 2, 1} {
		cfg := base
		cfg.CutoffTopN = topN
		score := best(cfg)
		assert.LessOrEqual(t, score, prev, "cutoff_top_n=%d", topN)
		prev = score
	}

	prev = math.Inf(1)
	for _, p := range []float64{1.0, 0.9, 0.7, 0.5, 0.3} {
		cfg := base
		cfg.CutoffProb = p
		score := best(cfg)
		assert.LessOrEqual(t, score, prev, "cutoff_prob=%g", p)
		prev = score
	}
}
