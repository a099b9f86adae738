package cli

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/happyhackingspace/ctcdecode"
)

func (c *CLI) newEvaluateCommand() *cobra.Command {
	var flags decoderFlags
	var dataFolder string
	var outputDir string
	var wordDelimiter string
	var greedy bool

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Decode a labelled dataset and report character and word error rates",
		Example: `  ctcdecode evaluate --data-folder data
  ctcdecode evaluate --data-folder data --output-dir out --word-delimiter "|" --cutoff-prob 0.8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve(cmd)
			if err != nil {
				return err
			}

			slog.Info("Evaluating", "data-folder", dataFolder, "greedy", greedy)
			var bar *progressbar.ProgressBar
			result, err := ctcdecode.Evaluate(dataFolder, &ctcdecode.EvalConfig{
				Config:        cfg,
				OutputDir:     outputDir,
				WordDelimiter: wordDelimiter,
				Greedy:        greedy,
				Progress: func(done, total int) {
					if bar == nil {
						bar = c.newProgressBar(total, "Evaluating")
					}
					if bar != nil {
						_ = bar.Set(done)
					}
				},
			})
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return err
			}
			slog.Debug("Evaluation completed", "items", humanize.Comma(int64(result.Items)), "duration", result.Duration)

			fmt.Printf("Character error rate: %.2f%% (%d/%d)\n",
				result.CER*100, result.CharErrors, result.CharTotal)
			fmt.Printf("Word error rate: %.2f%% (%d/%d words)\n",
				result.WER*100, result.WordErrors, result.WordTotal)
			fmt.Printf("Mean item CER: %.2f%% over %d items\n", result.MeanCER*100, result.Items)
			if result.Failed > 0 {
				fmt.Printf("Items without a hypothesis: %d\n", result.Failed)
			}
			if outputDir != "" {
				slog.Info("Transcripts written", "dir", outputDir)
			}
			return nil
		},
	}

	flags.register(cmd, false)
	cmd.Flags().StringVar(&dataFolder, "data-folder", "data", "Path to the evaluation data folder")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Folder for hyp.trn and ref.trn")
	cmd.Flags().StringVar(&wordDelimiter, "word-delimiter", "|", "Label printed as a space")
	cmd.Flags().BoolVar(&greedy, "greedy", false, "Use best-path decoding instead of beam search")
	return cmd
}
