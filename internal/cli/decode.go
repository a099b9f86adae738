package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/happyhackingspace/ctcdecode"
	"github.com/happyhackingspace/ctcdecode/ctc"
)

// itemOutput is the JSON form of one decoded batch item.
type itemOutput struct {
	Item       int                    `json:"item"`
	Text       string                 `json:"text"`
	Hypotheses []ctcdecode.Hypothesis `json:"hypotheses,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

func (c *CLI) newDecodeCommand() *cobra.Command {
	var flags decoderFlags
	var top int
	var greedy bool
	var wordDelimiter string

	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode a batch of CTC probability matrices from a JSON file or stdin",
		Args:  cobra.MaximumNArgs(1),
		Example: `  # Decode a batch file ({"probs": [[[...]]], "seq_lens": [...]})
  ctcdecode decode batch.json --labels labels.txt

  # Pipe a single matrix from stdin
  cat matrix.json | ctcdecode decode --labels labels.txt

  # wav2vec2 model output with a fairseq dictionary
  ctcdecode decode out.json --labels dict.ltr.txt --fairseq --word-delimiter "|" --log-input

  # Wider beam, tighter candidate pruning
  ctcdecode decode batch.json --beam-size 200 --cutoff-prob 0.8 --cutoff-top-n 20

  # Best path only
  ctcdecode decode batch.json --greedy

  # Settings from a YAML file, flags override it
  ctcdecode decode batch.json --config decoder.yaml --num-processes 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readBatch(cmd, args)
			if err != nil || batch == nil {
				return err
			}
			d, err := flags.newDecoder(cmd)
			if err != nil {
				return err
			}

			start := time.Now()
			var outputs []itemOutput
			if greedy {
				outputs = decodeGreedy(d, batch.Probs, batch.SeqLens, wordDelimiter)
			} else {
				bar := c.newProgressBar(len(batch.Probs), "Decoding")
				results, err := d.Decode(batch.Probs, batch.SeqLens, ctc.WithProgress(func(done, total int) {
					if bar != nil {
						_ = bar.Set(done)
					}
				}))
				if bar != nil {
					_ = bar.Finish()
				}
				if err != nil {
					return err
				}
				outputs = toItemOutputs(results, top, wordDelimiter)
			}
			slog.Info("Decoded", "items", humanize.Comma(int64(len(outputs))), "duration", time.Since(start))

			output, err := json.MarshalIndent(outputs, "", "  ")
			if err != nil {
				return fmt.Errorf("encode output: %w", err)
			}
			fmt.Println(string(output))
			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().IntVar(&top, "top", 1, "Number of hypotheses printed per item (0 prints all)")
	cmd.Flags().BoolVar(&greedy, "greedy", false, "Use best-path decoding instead of beam search")
	cmd.Flags().StringVar(&wordDelimiter, "word-delimiter", "", "Label printed as a space (e.g. \"|\")")
	return cmd
}

func toItemOutputs(results []ctcdecode.Result, top int, wordDelimiter string) []itemOutput {
	outputs := make([]itemOutput, len(results))
	for i, r := range results {
		outputs[i].Item = i
		if r.Err != nil {
			outputs[i].Error = r.Err.Error()
			continue
		}
		hyps := r.Hypotheses
		if top > 0 && len(hyps) > top {
			hyps = hyps[:top]
		}
		outputs[i].Hypotheses = hyps
		if best, ok := r.Best(); ok {
			outputs[i].Text = best.Text(wordDelimiter)
		}
	}
	return outputs
}

func decodeGreedy(d *ctcdecode.Decoder, probs [][][]float64, seqLens []int, wordDelimiter string) []itemOutput {
	outputs := make([]itemOutput, len(probs))
	for i, m := range probs {
		outputs[i].Item = i
		seqLen := len(m)
		if seqLens != nil {
			seqLen = seqLens[i]
		}
		h, err := d.DecodeGreedy(m, seqLen)
		if err != nil {
			outputs[i].Error = err.Error()
			continue
		}
		outputs[i].Hypotheses = []ctcdecode.Hypothesis{h}
		outputs[i].Text = h.Text(wordDelimiter)
	}
	return outputs
}

// newProgressBar returns nil when progress would only add noise.
func (c *CLI) newProgressBar(total int, description string) *progressbar.ProgressBar {
	if c.silent || total < 2 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
