// Package ctcdecode decodes CTC model outputs into label sequences.
//
// A Decoder binds a label vocabulary to a beam search configuration and turns
// a batch of per-timestep probability matrices into ranked hypotheses:
//
//	d, _ := ctcdecode.New([]string{"a", "b"}, &ctc.Config{BeamSize: 5, CutoffProb: 1, CutoffTopN: 3, BlankID: 2})
//	results, _ := d.Decode(probs, nil)
//	best := results[0].Hypotheses[0]
//	fmt.Println(best.Labels)    // [a a]
//	fmt.Println(best.Timesteps) // [0 2]
package ctcdecode

import (
	"fmt"

	"github.com/happyhackingspace/ctcdecode/ctc"
	"github.com/happyhackingspace/ctcdecode/internal/textutil"
)

// Decoder decodes probability matrices over a fixed label vocabulary.
type Decoder struct {
	labels     []string
	cfg        ctc.Config
	numClasses int
	dec        *ctc.Decoder
}

// Hypothesis is one decoded candidate sequence.
type Hypothesis struct {
	Labels    []string `json:"labels"`
	Tokens    []int    `json:"tokens"`
	Timesteps []int    `json:"timesteps"`
	Score     float64  `json:"score"`
}

// Result holds the hypotheses of one batch item, best first, or the error
// that stopped it.
type Result struct {
	Hypotheses []Hypothesis `json:"hypotheses"`
	Err        error        `json:"-"`
}

// Alignment is a forced alignment of a transcript.
type Alignment struct {
	Labels    []string `json:"labels"`
	Timesteps []int    `json:"timesteps"`
	Path      []int    `json:"path"`
	Score     float64  `json:"score"`
}

// New creates a Decoder for labels. A nil cfg uses ctc.DefaultConfig().
//
// When cfg.BlankID equals len(labels) the blank is implicit and matrices carry
// len(labels)+1 classes; otherwise the blank is one of the labels.
func New(labels []string, cfg *ctc.Config) (*Decoder, error) {
	c := ctc.DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("ctcdecode: %w: empty label vocabulary", ctc.ErrInvalidConfig)
	}
	if c.BlankID < 0 || c.BlankID > len(labels) {
		return nil, fmt.Errorf("ctcdecode: %w: blank_id %d outside a vocabulary of %d labels",
			ctc.ErrInvalidConfig, c.BlankID, len(labels))
	}

	numClasses := classCount(len(labels), c.BlankID)
	dec, err := ctc.NewDecoder(c, numClasses)
	if err != nil {
		return nil, fmt.Errorf("ctcdecode: %w", err)
	}
	return &Decoder{
		labels:     append([]string(nil), labels...),
		cfg:        c,
		numClasses: numClasses,
		dec:        dec,
	}, nil
}

func classCount(numLabels, blankID int) int {
	if blankID == numLabels {
		return numLabels + 1
	}
	return numLabels
}

// Labels returns the label vocabulary.
func (d *Decoder) Labels() []string { return d.labels }

// Config returns the decoder configuration.
func (d *Decoder) Config() ctc.Config { return d.cfg }

// NumClasses returns the matrix width the decoder expects.
func (d *Decoder) NumClasses() int { return d.numClasses }

// Decode runs beam search over every item of probs (batch x timesteps x
// classes). seqLens gives the number of valid timesteps per item; nil decodes
// every item in full. Item failures are reported in Result.Err.
func (d *Decoder) Decode(probs [][][]float64, seqLens []int, opts ...ctc.BatchOption) ([]Result, error) {
	items, err := d.dec.DecodeBatch(probs, seqLens, opts...)
	if err != nil {
		return nil, fmt.Errorf("ctcdecode: %w", err)
	}

	results := make([]Result, len(items))
	for i, item := range items {
		if item.Err != nil {
			results[i].Err = fmt.Errorf("ctcdecode: item %d: %w", i, item.Err)
			continue
		}
		hyps := make([]Hypothesis, len(item.Outputs))
		for j, out := range item.Outputs {
			hyps[j] = d.hypothesis(out)
		}
		results[i].Hypotheses = hyps
	}
	return results, nil
}

// DecodeGreedy returns the best-path hypothesis of a single matrix.
func (d *Decoder) DecodeGreedy(probs [][]float64, seqLen int) (Hypothesis, error) {
	if seqLen < 0 {
		return Hypothesis{}, fmt.Errorf("ctcdecode: %w: %d", ctc.ErrNegativeLength, seqLen)
	}
	if err := d.checkWidth(probs, seqLen); err != nil {
		return Hypothesis{}, err
	}
	return d.hypothesis(ctc.GreedyDecode(probs, seqLen, d.cfg.BlankID, d.cfg.LogInput)), nil
}

// Align force-aligns text against a single matrix. The text is split into
// labels by longest match; spaces map to wordDelimiter when it is set.
func (d *Decoder) Align(probs [][]float64, seqLen int, text, wordDelimiter string) (*Alignment, error) {
	tokens, err := d.Encode(text, wordDelimiter)
	if err != nil {
		return nil, err
	}
	if err := d.checkWidth(probs, seqLen); err != nil {
		return nil, err
	}
	a, err := ctc.Align(probs, seqLen, tokens, d.cfg.BlankID, d.cfg.LogInput)
	if err != nil {
		return nil, fmt.Errorf("ctcdecode: %w", err)
	}
	return &Alignment{
		Labels:    d.Tokens(tokens),
		Timesteps: a.Timesteps,
		Path:      a.Path,
		Score:     a.Score,
	}, nil
}

// LogLikelihood returns log P(text | probs) summed over all alignments.
func (d *Decoder) LogLikelihood(probs [][]float64, seqLen int, text, wordDelimiter string) (float64, error) {
	tokens, err := d.Encode(text, wordDelimiter)
	if err != nil {
		return ctc.LogZero, err
	}
	if err := d.checkWidth(probs, seqLen); err != nil {
		return ctc.LogZero, err
	}
	ll, err := ctc.LogLikelihood(probs, seqLen, tokens, d.cfg.BlankID, d.cfg.LogInput)
	if err != nil {
		return ctc.LogZero, fmt.Errorf("ctcdecode: %w", err)
	}
	return ll, nil
}

// Encode maps text onto token indices. The blank is never produced.
func (d *Decoder) Encode(text, wordDelimiter string) ([]int, error) {
	vocab := make(map[string]int, len(d.labels))
	for i, l := range d.labels {
		if i == d.cfg.BlankID || l == "" {
			continue
		}
		if _, dup := vocab[l]; !dup {
			vocab[l] = i
		}
	}
	tokens, err := textutil.SplitLabels(text, vocab, wordDelimiter)
	if err != nil {
		return nil, fmt.Errorf("ctcdecode: %w: %v", ctc.ErrInvalidLabel, err)
	}
	return tokens, nil
}

// Tokens maps token indices to their labels.
func (d *Decoder) Tokens(tokens []int) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		if tok >= 0 && tok < len(d.labels) {
			out[i] = d.labels[tok]
		}
	}
	return out
}

// Text joins the hypothesis labels into a transcript, turning wordDelimiter
// into spaces.
func (h Hypothesis) Text(wordDelimiter string) string {
	return textutil.JoinLabels(h.Labels, wordDelimiter)
}

// Best returns the top hypothesis, if any.
func (r Result) Best() (Hypothesis, bool) {
	if len(r.Hypotheses) == 0 {
		return Hypothesis{}, false
	}
	return r.Hypotheses[0], true
}

func (d *Decoder) hypothesis(out ctc.Output) Hypothesis {
	return Hypothesis{
		Labels:    d.Tokens(out.Tokens),
		Tokens:    out.Tokens,
		Timesteps: out.Timesteps,
		Score:     out.Score,
	}
}

func (d *Decoder) checkWidth(probs [][]float64, seqLen int) error {
	for t := range min(max(seqLen, 0), len(probs)) {
		if len(probs[t]) != d.numClasses {
			return fmt.Errorf("ctcdecode: %w: timestep %d has %d classes, want %d",
				ctc.ErrDimensionMismatch, t, len(probs[t]), d.numClasses)
		}
	}
	return nil
}
