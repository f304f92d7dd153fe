package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aweris/largefiles"
	"github.com/aweris/largefiles/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "largefiles",
	Short:         "Track large files by reference",
	Long:          "Store large files out of band, keep standin pointers in the working copy and sync contents with remote stores.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "abort: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ~/.config/largefiles/config.yaml)")
	flags.StringP("repository", "R", ".", "working copy root")
	flags.String("usercache", "", "user cache directory (default: ~/.cache/largefiles)")
	flags.Int64("minsize", 0, "files of at least this many bytes are large (0 disables)")
	flags.StringSlice("patterns", nil, "glob patterns of large files")
	flags.String("remote", "", "default remote store (http(s)://, oci:// or path)")
	flags.Int("concurrency", largefiles.DefaultConcurrency, "parallel transfers")
	flags.Int("compression", 0, "zstd level for new store entries (0 stores raw)")
	flags.String("log-level", logger.LevelNone, "log level (none, debug, info, warn, error)")

	viper.BindPFlag("repository", flags.Lookup("repository"))
	viper.BindPFlag("usercache", flags.Lookup("usercache"))
	viper.BindPFlag("minsize", flags.Lookup("minsize"))
	viper.BindPFlag("patterns", flags.Lookup("patterns"))
	viper.BindPFlag("remote", flags.Lookup("remote"))
	viper.BindPFlag("concurrency", flags.Lookup("concurrency"))
	viper.BindPFlag("compression", flags.Lookup("compression"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LARGEFILES")
	viper.AutomaticEnv()
	viper.SetDefault("usercache", largefiles.DefaultUserCacheDir())

	viper.ReadInConfig()
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "largefiles")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "largefiles")
	}
	return ".largefiles"
}

func openRepo() (*largefiles.Repo, *zap.Logger, error) {
	log, err := logger.Get(viper.GetString("log_level"))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	repo, err := largefiles.Open(viper.GetString("repository"),
		largefiles.WithUserCache(viper.GetString("usercache")),
		largefiles.WithMinSize(viper.GetInt64("minsize")),
		largefiles.WithPatterns(viper.GetStringSlice("patterns")...),
		largefiles.WithConcurrency(viper.GetInt("concurrency")),
		largefiles.WithCompression(viper.GetInt("compression")),
		largefiles.WithLogger(log),
		largefiles.WithOutput(os.Stderr),
	)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	return repo, log, nil
}

// openRemote connects to the remote named in args, falling back to the configured one.
func openRemote(ctx context.Context, repo *largefiles.Repo, args []string, required bool) (largefiles.RemoteStore, error) {
	url := viper.GetString("remote")
	if len(args) > 0 {
		url = args[0]
	}
	if url == "" {
		if required {
			return nil, fmt.Errorf("no remote given and none configured")
		}
		return nil, nil
	}
	return repo.OpenRemote(ctx, url)
}

// closeAll is deferred by every command that opened a repository.
func closeAll(err *error, repo *largefiles.Repo, rs largefiles.RemoteStore, log *zap.Logger) {
	if rs != nil {
		if cerr := rs.Close(); cerr != nil && *err == nil {
			*err = cerr
		}
	}
	if cerr := repo.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
	_ = log.Sync()
}
