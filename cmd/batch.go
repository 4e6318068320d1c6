package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/tilemerge/internal/job"
)

var batchCmd = &cobra.Command{
	Use:   "batch <manifest.yaml>",
	Short: "Merge every frame listed in a manifest",
	Long: `Merge independent frames concurrently. The manifest lists one job per
frame with the same options as the merge command:

  concurrency: 4
  jobs:
    - strategy: add
      output: frame_0001.exr
      inputs: [pass1.exr, pass2.exr]
    - strategy: paste
      width: 1920
      height: 1080
      order: reverse
      output: frame_0002.exr
      inputs: [band0.exr, band1.exr, band0.Alpha.exr]

Examples:
  tilemerge batch frames.yaml --concurrency 8`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntP("concurrency", "j", 0, "frames merged in parallel (default from manifest, else 1)")

	viper.BindPFlag("batch.concurrency", batchCmd.Flags().Lookup("concurrency"))
}

func runBatch(cmd *cobra.Command, args []string) error {
	manifest, err := job.LoadManifest(args[0])
	if err != nil {
		return err
	}

	limit := viper.GetInt("batch.concurrency")
	if limit <= 0 {
		limit = manifest.Concurrency
	}

	jobs := manifest.Jobs
	marker := viper.GetString("alpha-marker")
	for i := range jobs {
		if jobs[i].AlphaMarker == "" {
			jobs[i].AlphaMarker = marker
		}
	}

	runner := job.NewRunner()
	var bar *progressPrinter
	if viper.GetBool("progress") {
		bar = newProgressPrinter(cmd.ErrOrStderr())
		runner.Progress = bar.Update
	}

	ctx, cancel := signalContext()
	defer cancel()

	reports := runner.RunAll(ctx, jobs, limit)
	if bar != nil {
		bar.Done()
	}

	failed := 0
	for _, r := range reports {
		printReport(cmd, r)
		if r.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(reports))
	}
	return nil
}
