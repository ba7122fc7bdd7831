package main

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/live-sub-translator/internal/config"
	"github.com/MimeLyc/live-sub-translator/pkg/log"
)

const defaultEnvFile = ".env"

type commandContext struct {
	envFile  *string
	logLevel *string
	dataDir  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(envFile, logLevel, dataDir *string) *commandContext {
	return &commandContext{
		envFile:  envFile,
		logLevel: logLevel,
		dataDir:  dataDir,
	}
}

// setup loads the env file and configures logging. It runs before any
// subcommand.
func (c *commandContext) setup() error {
	if path := strings.TrimSpace(*c.envFile); path != "" {
		// A missing default .env is fine; a named one must exist.
		err := godotenv.Load(path)
		if err != nil && !(errors.Is(err, fs.ErrNotExist) && path == defaultEnvFile) {
			return err
		}
	}

	level := strings.TrimSpace(*c.logLevel)
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	log.InitLogger(log.ParseLevel(level))
	// stdout belongs to command output.
	log.GetLogger().SetOutput(os.Stderr)
	return nil
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.NewFromEnv(config.WithDataDir(strings.TrimSpace(*c.dataDir)))
	})
	return c.config, c.configErr
}

func newRootCommand() *cobra.Command {
	var (
		envFile  string
		logLevel string
		dataDir  string
	)
	ctx := newCommandContext(&envFile, &logLevel, &dataDir)

	rootCmd := &cobra.Command{
		Use:           "livesub",
		Short:         "Live caption translation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "Environment file to load")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for the settings database; overrides DATA_DIR")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newTranslateCommand(ctx))
	rootCmd.AddCommand(newSettingsCommand(ctx))

	return rootCmd
}
