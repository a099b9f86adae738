package ctcdecode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/ctcdecode/ctc"
)

func writeTestFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// newDataset writes a two item dataset over {a, b, |} with the blank last.
func newDataset(t *testing.T, withConfig bool) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"labels.txt": "a\nb\n|\n_\n",
		"index.json": `{
			"utt2": {"probs": "utt2.json", "reference": "B"},
			"utt1": {"probs": "utt1.json", "reference": "A  B"}
		}`,
		"utt1.json": `[[0.7, 0.1, 0.1, 0.1], [0.1, 0.1, 0.7, 0.1], [0.1, 0.7, 0.1, 0.1]]`,
		"utt2.json": `[[0.8, 0.1, 0.05, 0.05]]`,
	}
	if withConfig {
		files["config.yaml"] = "beam_size: 8\nnum_processes: 2\nblank_id: 3\n"
	}
	for name, content := range files {
		require.NoError(t, writeTestFile(filepath.Join(dir, name), content))
	}
	return dir
}

func TestEvaluate(t *testing.T) {
	for _, greedy := range []bool{false, true} {
		dir := newDataset(t, true)
		out := filepath.Join(t.TempDir(), "trn")

		calls := 0
		result, err := Evaluate(dir, &EvalConfig{
			OutputDir:     out,
			WordDelimiter: "|",
			Greedy:        greedy,
			Progress:      func(done, total int) { calls++ },
		})
		require.NoError(t, err, "greedy=%v", greedy)

		assert.Equal(t, 2, result.Items)
		assert.Equal(t, 0, result.Failed)
		assert.Equal(t, 1, result.CharErrors)
		assert.Equal(t, 4, result.CharTotal)
		assert.Equal(t, 1, result.WordErrors)
		assert.Equal(t, 3, result.WordTotal)
		assert.InDelta(t, 0.25, result.CER, 1e-12)
		assert.InDelta(t, 1.0/3, result.WER, 1e-12)
		assert.InDelta(t, 0.5, result.MeanCER, 1e-12)
		assert.Equal(t, 2, calls)

		hyp, err := os.ReadFile(filepath.Join(out, "hyp.trn"))
		require.NoError(t, err)
		assert.Equal(t, "a b (utt1)\na (utt2)\n", string(hyp))
		ref, err := os.ReadFile(filepath.Join(out, "ref.trn"))
		require.NoError(t, err)
		assert.Equal(t, "a b (utt1)\nb (utt2)\n", string(ref))
	}
}

func TestEvaluateConfigOverride(t *testing.T) {
	dir := newDataset(t, false)

	// without config.yaml the default blank 0 makes "a" the blank:
	// "a b" decodes as "|b" and "b" as ""
	result, err := Evaluate(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.CharErrors)

	cfg := ctc.DefaultConfig()
	cfg.BlankID = 3
	result, err = Evaluate(dir, &EvalConfig{Config: &cfg, WordDelimiter: "|"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CharErrors)
}

func TestEvaluateErrors(t *testing.T) {
	_, err := Evaluate(t.TempDir(), nil)
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, writeTestFile(filepath.Join(dir, "labels.txt"), "a\n_\n"))
	require.NoError(t, writeTestFile(filepath.Join(dir, "index.json"), "{}"))
	_, err = Evaluate(dir, nil)
	assert.Error(t, err)
}
