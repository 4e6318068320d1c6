package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/tilemerge/internal/collector"
	"github.com/kiesman99/tilemerge/internal/job"
)

var cfgFile string

// version is overridden at build time with -ldflags "-X github.com/kiesman99/tilemerge/cmd.version=..."
var version = "1.0.0"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tilemerge <strategy> [<width> <height>] <outputfile> <inputfile1> [<inputfile2> ...]",
	Short: "Merge rendered tiles into a single HDR frame",
	Long: `tilemerge combines the partial results of a distributed render into one
32-bit float image.

Two strategies are available. "add" sums full-frame sample tiles cell by cell
and folds the alpha tiles into the alpha channel. "paste" places horizontal
bands one below the other; an optional width and height fix the output size.

Inputs whose path contains the alpha marker ("Alpha" by default) are alpha
tiles. For "paste", and for "add" with --split-alpha, they are merged into a
second frame written next to the output as <name>.Alpha.exr.

The output format follows the extension: .exr (OpenEXR) or .pfm.

Examples:
  # Sum four sample passes
  tilemerge add frame.exr pass1.exr pass2.exr pass3.exr pass4.exr

  # Stack bands into a 1920x1080 frame, first band at the bottom
  tilemerge paste 1920 1080 frame.exr band_*.exr --order reverse

  # Merge many frames described in a manifest
  tilemerge batch frames.yaml

  # Start HTTP server
  tilemerge serve --port 8080`,
	Version: version,
	Args:    cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no args, show help
		if len(args) == 0 {
			return cmd.Help()
		}
		return runMerge(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tilemerge.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log every merge step")
	rootCmd.PersistentFlags().Bool("progress", false, "show a progress bar on stderr")
	rootCmd.PersistentFlags().String("alpha-marker", "Alpha", "path fragment that marks alpha tiles")

	// Merge options
	rootCmd.Flags().String("order", "forward", "band order for paste (forward|reverse)")
	rootCmd.Flags().Bool("split-alpha", false, "write alpha tiles to a separate frame for add as well")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("progress", rootCmd.PersistentFlags().Lookup("progress"))
	viper.BindPFlag("alpha-marker", rootCmd.PersistentFlags().Lookup("alpha-marker"))
	viper.BindPFlag("order", rootCmd.Flags().Lookup("order"))
	viper.BindPFlag("split-alpha", rootCmd.Flags().Lookup("split-alpha"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// a missing .env file is not an error
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".tilemerge" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tilemerge")
	}

	viper.SetEnvPrefix("TILEMERGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	setupLogger()
}

// setupLogger routes merge logs to stderr; debug output only with --verbose
func setupLogger() {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	collector.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// signalContext is canceled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runMerge(cmd *cobra.Command, args []string) error {
	j, err := job.ParseArgs(args)
	if err != nil {
		return err
	}
	j.Order = viper.GetString("order")
	j.SplitAlpha = viper.GetBool("split-alpha")
	j.AlphaMarker = viper.GetString("alpha-marker")

	runner := job.NewRunner()
	var bar *progressPrinter
	if viper.GetBool("progress") {
		bar = newProgressPrinter(cmd.ErrOrStderr())
		runner.Progress = bar.Update
	}

	ctx, cancel := signalContext()
	defer cancel()

	report, err := runner.Run(ctx, j)
	if bar != nil {
		bar.Done()
	}
	if err != nil {
		return err
	}

	printReport(cmd, report)
	if report.Failed() {
		return report.Error()
	}
	return nil
}

// printReport writes a summary of one job to stderr
func printReport(cmd *cobra.Command, r *job.Report) {
	w := cmd.ErrOrStderr()
	for _, p := range r.Rejected {
		fmt.Fprintf(w, "Can't add file: %s\n", p)
	}
	if r.Err != nil {
		fmt.Fprintf(w, "%s: %v\n", r.Output, r.Err)
	} else {
		fmt.Fprintf(w, "Wrote %s (%d tiles)\n", r.Output, r.Primary)
	}
	if r.AlphaOutput == "" {
		return
	}
	if r.AlphaErr != nil {
		fmt.Fprintf(w, "%s: %v\n", r.AlphaOutput, r.AlphaErr)
	} else {
		fmt.Fprintf(w, "Wrote %s (%d alpha tiles)\n", r.AlphaOutput, r.Alpha)
	}
}
