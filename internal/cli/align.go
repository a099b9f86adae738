package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/ctcdecode"
)

type alignOutput struct {
	*ctcdecode.Alignment
	LogLikelihood float64 `json:"log_likelihood"`
}

func (c *CLI) newAlignCommand() *cobra.Command {
	var flags decoderFlags
	var text string
	var item int
	var wordDelimiter string

	cmd := &cobra.Command{
		Use:   "align [file]",
		Short: "Force-align a transcript against one item of a probability batch",
		Args:  cobra.MaximumNArgs(1),
		Example: `  ctcdecode align batch.json --labels labels.txt --text "acdc"
  ctcdecode align out.json --labels dict.ltr.txt --fairseq --word-delimiter "|" --text "HELLO WORLD" --item 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readBatch(cmd, args)
			if err != nil || batch == nil {
				return err
			}
			if item < 0 || item >= len(batch.Probs) {
				return fmt.Errorf("item %d outside a batch of %d", item, len(batch.Probs))
			}
			d, err := flags.newDecoder(cmd)
			if err != nil {
				return err
			}

			probs := batch.Probs[item]
			seqLen := len(probs)
			if batch.SeqLens != nil {
				seqLen = batch.SeqLens[item]
			}
			a, err := d.Align(probs, seqLen, text, wordDelimiter)
			if err != nil {
				return err
			}
			ll, err := d.LogLikelihood(probs, seqLen, text, wordDelimiter)
			if err != nil {
				return err
			}

			output, err := json.MarshalIndent(alignOutput{Alignment: a, LogLikelihood: ll}, "", "  ")
			if err != nil {
				return fmt.Errorf("encode output: %w", err)
			}
			fmt.Println(string(output))
			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVar(&text, "text", "", "Transcript to align")
	cmd.Flags().IntVar(&item, "item", 0, "Batch item to align")
	cmd.Flags().StringVar(&wordDelimiter, "word-delimiter", "", "Label written for a space (e.g. \"|\")")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}
