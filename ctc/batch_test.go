package ctc

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBatch(rng *rand.Rand, n, numClasses int) ([][][]float64, []int) {
	probs := make([][][]float64, n)
	seqLens := make([]int, n)
	for i := range probs {
		probs[i] = randomMatrix(rng, 1+rng.IntN(10), numClasses)
		seqLens[i] = rng.IntN(len(probs[i]) + 2)
	}
	return probs, seqLens
}

func TestDecodeBatchIndependentOfWorkers(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	probs, seqLens := randomBatch(rng, 24, 6)

	cfg := DefaultConfig()
	cfg.BeamSize = 10
	cfg.CutoffTopN = 4
	cfg.BlankID = 5

	cfg.NumProcesses = 1
	want, err := DecodeBatch(probs, seqLens, cfg, 6)
	require.NoError(t, err)

	for _, workers := range []int{2, 8, 64} {
		cfg.NumProcesses = workers
		got, err := DecodeBatch(probs, seqLens, cfg, 6)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestDecodeBatchMatchesSingleDecode(t *testing.T) {
	d := newTestDecoder(t, refConfig(), len(refVocab))

	results, err := d.DecodeBatch([][][]float64{refProbs1, refProbs2}, []int{6, 6})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for i, probs := range [][][]float64{refProbs1, refProbs2} {
		want, err := d.Decode(probs, len(probs))
		require.NoError(t, err)
		require.NoError(t, results[i].Err)
		assert.Equal(t, want, results[i].Outputs)
	}
	assert.Equal(t, "acdc", refString(results[0].Outputs[0].Tokens))
	assert.Equal(t, "b'a", refString(results[1].Outputs[0].Tokens))
}

func TestDecodeBatchItemErrors(t *testing.T) {
	d := newTestDecoder(t, refConfig(), len(refVocab))

	probs := [][][]float64{refProbs1, {{0.5, 0.5}}, refProbs2}
	results, err := d.DecodeBatch(probs, []int{6, 1, -3})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.NotEmpty(t, results[0].Outputs)
	assert.ErrorIs(t, results[1].Err, ErrDimensionMismatch)
	assert.Nil(t, results[1].Outputs)
	assert.ErrorIs(t, results[2].Err, ErrNegativeLength)
}

func TestDecodeBatchNilLengths(t *testing.T) {
	d := newTestDecoder(t, refConfig(), len(refVocab))

	full, err := d.DecodeBatch([][][]float64{refProbs1}, nil)
	require.NoError(t, err)
	want, err := d.Decode(refProbs1, len(refProbs1))
	require.NoError(t, err)
	assert.Equal(t, want, full[0].Outputs)
}

func TestDecodeBatchErrors(t *testing.T) {
	cfg := refConfig()
	cfg.BeamSize = 0
	results, err := DecodeBatch([][][]float64{refProbs1}, nil, cfg, len(refVocab))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, results)

	d := newTestDecoder(t, refConfig(), len(refVocab))
	_, err = d.DecodeBatch([][][]float64{refProbs1, refProbs2}, []int{6})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestDecodeBatchEmpty(t *testing.T) {
	d := newTestDecoder(t, refConfig(), len(refVocab))
	results, err := d.DecodeBatch(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDecodeBatchProgress(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	probs, seqLens := randomBatch(rng, 16, 4)

	cfg := DefaultConfig()
	cfg.BeamSize = 4
	cfg.BlankID = 0
	cfg.NumProcesses = 4

	var mu sync.Mutex
	var seen []int
	_, err := DecodeBatch(probs, seqLens, cfg, 4, WithProgress(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 16, total)
		seen = append(seen, done)
	}))
	require.NoError(t, err)

	require.Len(t, seen, 16)
	for i, done := range seen {
		assert.Equal(t, i+1, done)
	}
}
