package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/tilemerge/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Merge uploaded tiles over HTTP",
	Long: `Run tilemerge as an HTTP service.

Render nodes post their tiles as multipart/form-data to /api/v1/merge and get
the merged frame back as OpenEXR. The query selects the strategy and, for
stacking, the band order and output size.

Examples:
  # Listen on localhost:8080
  tilemerge serve

  # Listen on every interface and allow slow merges
  tilemerge serve --bind 0.0.0.0 --timeout 5m

  # Sum two sample passes
  curl -F tiles=@pass1.exr -F tiles=@pass2.exr \
    'http://localhost:8080/api/v1/merge?strategy=add' -o frame.exr

  # Stack bands bottom-up into a 1920x1080 frame
  curl -F tiles=@band_0.exr -F tiles=@band_1.exr \
    'http://localhost:8080/api/v1/merge?strategy=paste&order=reverse&width=1920&height=1080' -o frame.exr`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "limit for reading a request and merging its tiles")
	serveCmd.Flags().Int64("max-upload", server.DefaultMaxUpload, "bytes of an upload kept in memory before spilling to disk")

	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("server.max-upload", serveCmd.Flags().Lookup("max-upload"))
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := net.JoinHostPort(viper.GetString("server.bind"), strconv.Itoa(viper.GetInt("server.port")))
	timeout := viper.GetDuration("server.timeout")
	maxUpload := viper.GetInt64("server.max-upload")

	apiServer := server.NewServer(version).WithMaxUpload(maxUpload)
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     server.NewRouter(apiServer, timeout),
		ReadTimeout: timeout,

		// the response is written after the merge, which may take the whole timeout
		WriteTimeout: 2 * timeout,
	}

	ctx, stop := signalContext()
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- httpServer.ListenAndServe()
	}()

	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "tilemerge %s listening on %s\n", version, addr)
	fmt.Fprintf(out, "  merge:  POST http://%s%s/merge\n", addr, server.APIPrefix)
	fmt.Fprintf(out, "  health: GET  http://%s%s/health\n", addr, server.APIPrefix)
	fmt.Fprintf(out, "  uploads above %s spill to disk\n", humanize.IBytes(uint64(maxUpload)))

	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	fmt.Fprintln(out, "Shutting down, waiting for running merges...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
