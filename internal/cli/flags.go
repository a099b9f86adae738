package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/happyhackingspace/ctcdecode"
	"github.com/happyhackingspace/ctcdecode/ctc"
	"github.com/happyhackingspace/ctcdecode/internal/storage"
)

// decoderFlags holds the flags shared by every command that builds a decoder.
type decoderFlags struct {
	configPath string
	labelsPath string
	fairseq    bool
	cfg        ctc.Config
}

func (f *decoderFlags) register(cmd *cobra.Command, withLabels bool) {
	def := ctc.DefaultConfig()
	fs := cmd.Flags()
	if withLabels {
		fs.StringVar(&f.labelsPath, "labels", "labels.txt", "Path to the label vocabulary (one label per line)")
		fs.BoolVar(&f.fairseq, "fairseq", false, "Read --labels as a fairseq dict.ltr.txt")
	}
	fs.StringVar(&f.configPath, "config", "", "Path to a YAML decoder config")
	fs.IntVar(&f.cfg.BeamSize, "beam-size", def.BeamSize, "Number of prefixes kept per timestep")
	fs.IntVar(&f.cfg.NumProcesses, "num-processes", def.NumProcesses, "Number of parallel decoding workers")
	fs.Float64Var(&f.cfg.CutoffProb, "cutoff-prob", def.CutoffProb, "Cumulative probability cutoff for candidate classes")
	fs.IntVar(&f.cfg.CutoffTopN, "cutoff-top-n", def.CutoffTopN, "Maximum candidate classes per timestep")
	fs.IntVar(&f.cfg.BlankID, "blank-id", def.BlankID, "Class index of the CTC blank")
	fs.BoolVar(&f.cfg.LogInput, "log-input", def.LogInput, "Input holds log-probabilities")
}

// resolve merges --config with the decoder flags set on the command line.
// It returns nil when neither was given.
func (f *decoderFlags) resolve(cmd *cobra.Command) (*ctc.Config, error) {
	var cfg *ctc.Config
	if f.configPath != "" {
		var err error
		if cfg, err = ctcdecode.LoadConfig(f.configPath); err != nil {
			return nil, err
		}
	}

	overrides := []struct {
		flag string
		set  func(*ctc.Config)
	}{
		{"beam-size", func(c *ctc.Config) { c.BeamSize = f.cfg.BeamSize }},
		{"num-processes", func(c *ctc.Config) { c.NumProcesses = f.cfg.NumProcesses }},
		{"cutoff-prob", func(c *ctc.Config) { c.CutoffProb = f.cfg.CutoffProb }},
		{"cutoff-top-n", func(c *ctc.Config) { c.CutoffTopN = f.cfg.CutoffTopN }},
		{"blank-id", func(c *ctc.Config) { c.BlankID = f.cfg.BlankID }},
		{"log-input", func(c *ctc.Config) { c.LogInput = f.cfg.LogInput }},
	}
	for _, o := range overrides {
		if !cmd.Flags().Changed(o.flag) {
			continue
		}
		if cfg == nil {
			def := ctc.DefaultConfig()
			cfg = &def
		}
		o.set(cfg)
	}
	return cfg, nil
}

// newDecoder loads the label vocabulary and builds a decoder from the flags.
func (f *decoderFlags) newDecoder(cmd *cobra.Command) (*ctcdecode.Decoder, error) {
	cfg, err := f.resolve(cmd)
	if err != nil {
		return nil, err
	}
	read := storage.ReadLabels
	if f.fairseq {
		read = storage.ReadFairseqDict
	}
	labels, err := read(f.labelsPath)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	d, err := ctcdecode.New(labels, cfg)
	if err != nil {
		return nil, err
	}
	dc := d.Config()
	slog.Debug("Decoder ready", "labels", len(labels), "classes", d.NumClasses(),
		"beam_size", dc.BeamSize, "cutoff_prob", dc.CutoffProb, "cutoff_top_n", dc.CutoffTopN, "blank_id", dc.BlankID)
	return d, nil
}

func isStdinTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// readBatch reads a batch from the file named in args, or from stdin.
func readBatch(cmd *cobra.Command, args []string) (*storage.Batch, error) {
	var r io.Reader
	source := "stdin"
	if len(args) == 0 {
		if isStdinTerminal() {
			return nil, cmd.Help()
		}
		r = os.Stdin
	} else {
		source = args[0]
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	counter := &countingReader{r: r}
	batch, err := storage.ReadBatch(counter)
	if err != nil {
		return nil, err
	}
	slog.Debug("Batch read", "source", source, "items", len(batch.Probs), "size", humanize.Bytes(uint64(counter.n)))
	return batch, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
