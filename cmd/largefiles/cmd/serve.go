package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aweris/largefiles/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the repository store over HTTP",
	Long:  "Expose the repository's largefile store to remote clients using the largefiles wire protocol.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8000", "listen address")
	viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
	serveCmd.Flags().Int64("max-blob-size", server.DefaultMaxBlobSize, "largest upload accepted, in bytes")
	viper.BindPFlag("serve.max_blob_size", serveCmd.Flags().Lookup("max-blob-size"))
}

func runServe(ctx context.Context) (err error) {
	repo, log, err := openRepo()
	if err != nil {
		return err
	}
	defer closeAll(&err, repo, nil, log)

	opts := []server.Option{
		server.WithLogger(log),
		server.WithName(filepath.Base(repo.Root())),
		server.WithMaxBlobSize(viper.GetInt64("serve.max_blob_size")),
	}
	if c := repo.UserCache(); c != nil {
		opts = append(opts, server.WithUserCache(c))
	}
	srv := server.New(repo.Store(), opts...)

	gin.SetMode(gin.ReleaseMode)
	hs := &http.Server{
		Addr:              viper.GetString("serve.addr"),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdown); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	fmt.Fprintf(os.Stderr, "serving %s on %s\n", repo.Root(), hs.Addr)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
