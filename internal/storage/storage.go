// Package storage reads and writes the files around a decoding run: label
// vocabularies, probability matrices, evaluation datasets and trn transcripts.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Dataset file names inside a data folder.
const (
	LabelsFile = "labels.txt"
	IndexFile  = "index.json"
	ConfigFile = "config.yaml"
)

// Storage wraps an evaluation data folder.
type Storage struct {
	Folder string
}

// NewStorage creates a Storage for the given data folder.
func NewStorage(folder string) *Storage {
	return &Storage{Folder: folder}
}

// IndexEntry is a single entry of index.json.
type IndexEntry struct {
	Probs     string `json:"probs"`
	Reference string `json:"reference"`
}

// Item is one decodable utterance of a dataset.
type Item struct {
	ID        string
	Reference string
	Probs     [][]float64
}

// Batch is the JSON input of a decoding run.
type Batch struct {
	Probs   [][][]float64 `json:"probs"`
	SeqLens []int         `json:"seq_lens,omitempty"`
}

// TRNEntry is one line of a trn file.
type TRNEntry struct {
	ID   string
	Text string
}

// GetIndex reads the index file.
func (s *Storage) GetIndex() (map[string]IndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(s.Folder, IndexFile))
	if err != nil {
		return nil, err
	}
	var index map[string]IndexEntry
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse %s: %w", IndexFile, err)
	}
	return index, nil
}

// GetLabels reads the label vocabulary of the data folder.
func (s *Storage) GetLabels() ([]string, error) {
	return ReadLabels(filepath.Join(s.Folder, LabelsFile))
}

// ConfigPath returns the decoder config path of the data folder, or "" if
// the folder has none.
func (s *Storage) ConfigPath() string {
	path := filepath.Join(s.Folder, ConfigFile)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// IterItems loads every item of the index, sorted by ID. Items whose
// probability file cannot be read are skipped with a warning.
func (s *Storage) IterItems() ([]Item, error) {
	index, err := s.GetIndex()
	if err != nil {
		return nil, fmt.Errorf("get index: %w", err)
	}

	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		entry := index[id]
		probs, err := ReadMatrix(filepath.Join(s.Folder, entry.Probs))
		if err != nil {
			slog.Warn("Cannot read probability file", "id", id, "path", entry.Probs, "error", err)
			continue
		}
		items = append(items, Item{ID: id, Reference: entry.Reference, Probs: probs})
	}
	return items, nil
}

// ReadLabels reads a vocabulary with one label per line. A line may hold a
// single space, which is kept as the label. Lines in fairseq dictionary form
// ("label count") keep only the label.
func ReadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return parseLabels(f)
}

func parseLabels(r io.Reader) ([]string, error) {
	var labels []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		if fields := strings.Fields(line); len(fields) == 2 && isCount(fields[1]) {
			line = fields[0]
		}
		labels = append(labels, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels found")
	}
	return labels, nil
}

func isCount(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// FairseqSpecials are the symbols fairseq places before the dictionary
// entries; "<pad>" doubles as the CTC blank.
var FairseqSpecials = []string{"<s>", "<pad>", "</s>", "<unk>"}

// ReadFairseqDict reads a fairseq dictionary (dict.ltr.txt) and returns the
// full model vocabulary, special symbols first.
func ReadFairseqDict(path string) ([]string, error) {
	labels, err := ReadLabels(path)
	if err != nil {
		return nil, err
	}
	return append(append([]string{}, FairseqSpecials...), labels...), nil
}

// ReadMatrix reads a single timesteps x classes probability matrix from JSON.
func ReadMatrix(path string) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m [][]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// ReadBatch decodes a batch from r. A bare matrix is accepted as a batch of one.
func ReadBatch(r io.Reader) (*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var m [][]float64
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse batch: %w", err)
		}
		return &Batch{Probs: [][][]float64{m}}, nil
	}

	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse batch: %w", err)
	}
	if b.SeqLens != nil && len(b.SeqLens) != len(b.Probs) {
		return nil, fmt.Errorf("parse batch: %d seq_lens for %d items", len(b.SeqLens), len(b.Probs))
	}
	return &b, nil
}

// WriteTRN writes entries as "text (id)" lines.
func WriteTRN(path string, entries []TRNEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s (%s)\n", e.Text, e.ID); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadTRN parses a trn file written by WriteTRN.
func ReadTRN(path string) ([]TRNEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []TRNEntry
	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		open := strings.LastIndex(line, " (")
		if open < 0 || !strings.HasSuffix(line, ")") {
			return nil, fmt.Errorf("%s:%d: missing utterance id", filepath.Base(path), n+1)
		}
		entries = append(entries, TRNEntry{
			ID:   line[open+2 : len(line)-1],
			Text: line[:open],
		})
	}
	return entries, nil
}
