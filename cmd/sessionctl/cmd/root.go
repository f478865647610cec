package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/storage"
)

var (
	configPath string
	endpoint   string
	redisAddr  string
	storeFile  string
	logLevel   string

	// cfg is resolved once per invocation in PersistentPreRunE.
	cfg goSession.Config
)

var rootCmd = &cobra.Command{
	Use:   "sessionctl",
	Short: "ERP session client",
	Long: `sessionctl signs in to the ERP GraphQL API and keeps the session alive.

The renewal credential is persisted (file or Redis) so later invocations
resume the session; the access credential only ever lives in memory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		resolved, err := resolveConfig()
		if err != nil {
			return err
		}
		cfg = resolved
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", goSession.GetEnv("GOSESSION_CONFIG", ""), "YAML config file")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "GraphQL endpoint URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address for session storage instead of a file")
	rootCmd.PersistentFlags().StringVar(&storeFile, "store-file", "", "session file (default ~/.gosession/<key>.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, statusCmd, queryCmd, watchCmd, serveCmd)
}

func resolveConfig() (goSession.Config, error) {
	c := goSession.DefaultConfig()
	if configPath != "" {
		loaded, err := goSession.LoadConfigFile(configPath)
		if err != nil {
			return c, err
		}
		c = loaded
	}
	if err := goSession.ApplyEnv(&c); err != nil {
		return c, err
	}
	if endpoint != "" {
		c.Endpoint.URL = endpoint
	}
	if storeFile != "" {
		c.Storage.FilePath = storeFile
	}
	if c.Storage.FilePath == "" && redisAddr == "" {
		path, err := storage.DefaultFilePath(c.Storage.Key)
		if err != nil {
			return c, err
		}
		c.Storage.FilePath = path
	}
	return c, nil
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

// openEngine builds and starts an engine. Start restores any persisted
// session before returning. The caller must call the returned close func.
func openEngine(ctx context.Context, configure func(*goSession.Builder)) (*goSession.Engine, func(), error) {
	b := goSession.New().WithConfig(cfg).WithLogger(newLogger())

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
		b.WithRedis(rdb)
	}
	if configure != nil {
		configure(b)
	}

	closeAll := func() {
		if rdb != nil {
			_ = rdb.Close()
		}
	}

	engine, err := b.Build()
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	if err := engine.Start(ctx); err != nil {
		engine.Close()
		closeAll()
		return nil, nil, err
	}
	return engine, func() {
		engine.Close()
		closeAll()
	}, nil
}

// userError prints the end-user text for err and returns err for the exit
// status.
func userError(err error) error {
	return fmt.Errorf("%s (%w)", goSession.UserMessage(err), err)
}
