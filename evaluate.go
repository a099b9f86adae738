package ctcdecode

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"gonum.org/v1/gonum/stat"

	"github.com/happyhackingspace/ctcdecode/ctc"
	"github.com/happyhackingspace/ctcdecode/internal/storage"
	"github.com/happyhackingspace/ctcdecode/internal/textutil"
)

// EvalConfig holds configuration for evaluation.
type EvalConfig struct {
	// Config overrides the config.yaml of the data folder.
	Config *ctc.Config
	// OutputDir receives hyp.trn and ref.trn when set.
	OutputDir     string
	WordDelimiter string
	Greedy        bool
	Progress      func(done, total int)
}

// EvalResult holds error rates over an evaluation dataset.
type EvalResult struct {
	Items      int
	// Failed counts items that produced no hypothesis.
	Failed     int
	CharErrors int
	CharTotal  int
	WordErrors int
	WordTotal  int
	CER        float64
	WER        float64
	// MeanCER averages the per-item character error rates.
	MeanCER  float64
	Duration time.Duration
}

// Evaluate decodes every item of a data folder and scores the best
// hypotheses against the reference transcripts.
//
// The folder holds labels.txt, index.json mapping item IDs to probability
// files and references, and optionally config.yaml.
func Evaluate(dataDir string, config *EvalConfig) (*EvalResult, error) {
	var ec EvalConfig
	if config != nil {
		ec = *config
	}

	store := storage.NewStorage(dataDir)
	labels, err := store.GetLabels()
	if err != nil {
		return nil, fmt.Errorf("ctcdecode: %w", err)
	}
	cfg := ec.Config
	if cfg == nil {
		if path := store.ConfigPath(); path != "" {
			if cfg, err = LoadConfig(path); err != nil {
				return nil, err
			}
		}
	}
	d, err := New(labels, cfg)
	if err != nil {
		return nil, err
	}

	items, err := store.IterItems()
	if err != nil {
		return nil, fmt.Errorf("ctcdecode: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("ctcdecode: no items found in %s", dataDir)
	}

	start := time.Now()
	hyps, err := d.decodeItems(items, ec)
	if err != nil {
		return nil, err
	}

	result := &EvalResult{Items: len(items), Duration: time.Since(start)}
	hypTRN := make([]storage.TRNEntry, len(items))
	refTRN := make([]storage.TRNEntry, len(items))
	cers := make([]float64, 0, len(items))
	for i, item := range items {
		hyp, ok := hyps[i]
		if !ok {
			result.Failed++
		}
		ref := textutil.Normalize(item.Reference)
		hypText := textutil.Normalize(hyp.Text(ec.WordDelimiter))

		charErrs := textutil.CharErrors(ref, hypText)
		refChars := utf8.RuneCountInString(ref)
		wordErrs, refWords := textutil.WordErrors(ref, hypText)
		result.CharErrors += charErrs
		result.CharTotal += refChars
		result.WordErrors += wordErrs
		result.WordTotal += refWords
		if refChars > 0 {
			cers = append(cers, float64(charErrs)/float64(refChars))
		}

		hypTRN[i] = storage.TRNEntry{ID: item.ID, Text: hypText}
		refTRN[i] = storage.TRNEntry{ID: item.ID, Text: ref}
		slog.Debug("Item decoded", "id", item.ID, "hyp", hypText, "char_errors", charErrs)
	}

	if result.CharTotal > 0 {
		result.CER = float64(result.CharErrors) / float64(result.CharTotal)
	}
	if result.WordTotal > 0 {
		result.WER = float64(result.WordErrors) / float64(result.WordTotal)
	}
	if len(cers) > 0 {
		result.MeanCER = stat.Mean(cers, nil)
	}

	if ec.OutputDir != "" {
		if err := writeTranscripts(ec.OutputDir, hypTRN, refTRN); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// decodeItems returns the best hypothesis of every item that decoded.
func (d *Decoder) decodeItems(items []storage.Item, ec EvalConfig) (map[int]Hypothesis, error) {
	hyps := make(map[int]Hypothesis, len(items))

	if ec.Greedy {
		for i, item := range items {
			h, err := d.DecodeGreedy(item.Probs, len(item.Probs))
			if ec.Progress != nil {
				ec.Progress(i+1, len(items))
			}
			if err != nil {
				slog.Warn("Cannot decode item", "id", item.ID, "error", err)
				continue
			}
			hyps[i] = h
		}
		return hyps, nil
	}

	probs := make([][][]float64, len(items))
	for i, item := range items {
		probs[i] = item.Probs
	}
	var opts []ctc.BatchOption
	if ec.Progress != nil {
		opts = append(opts, ctc.WithProgress(ec.Progress))
	}
	results, err := d.Decode(probs, nil, opts...)
	if err != nil {
		return nil, err
	}
	for i, r := range results {
		if r.Err != nil {
			slog.Warn("Cannot decode item", "id", items[i].ID, "error", r.Err)
			continue
		}
		if best, ok := r.Best(); ok {
			hyps[i] = best
		}
	}
	return hyps, nil
}

func writeTranscripts(dir string, hyp, ref []storage.TRNEntry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ctcdecode: create output dir: %w", err)
	}
	if err := storage.WriteTRN(filepath.Join(dir, "hyp.trn"), hyp); err != nil {
		return fmt.Errorf("ctcdecode: %w", err)
	}
	if err := storage.WriteTRN(filepath.Join(dir, "ref.trn"), ref); err != nil {
		return fmt.Errorf("ctcdecode: %w", err)
	}
	return nil
}
