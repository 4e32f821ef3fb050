// Package cmd holds the meetscribe CLI.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/audioscribelab/meetscribe/internal/apperr"
	"github.com/audioscribelab/meetscribe/internal/config"
	"github.com/audioscribelab/meetscribe/internal/service"
)

var (
	cfg          *config.Config
	cfgFile      string
	verboseLevel int
	log          *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "meetscribe",
	Short: "Record meetings and transcribe them locally",
	Long: `MeetScribe records meeting audio from a microphone, stores the
recordings in a local library and transcribes them with whisper, either
as a local subprocess or through an OpenAI-compatible API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env next to the binary is convenient for the API key.
		_ = godotenv.Load()

		setupLogging(verboseLevel)

		if cfgFile == "" {
			cfgFile = defaultConfigPath()
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, userMessage(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/meetscribe.yaml)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(configCmd)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "meetscribe.yaml"
	}
	return filepath.Join(home, ".config", "meetscribe.yaml")
}

// setupLogging configures zap based on the verbose level. Console output
// goes to stderr so command output stays pipeable.
func setupLogging(level int) {
	zapLevel := zapcore.InfoLevel
	if level >= 1 {
		zapLevel = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zapLevel,
	)
	log = zap.New(core).Sugar()
}

// newService builds the application service for commands that need it.
// The caller is responsible for Close.
func newService() (service.Service, error) {
	svc, err := service.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return svc, nil
}

// userMessage strips internal detail from errors whose cause should stay
// out of terminal output, such as paths in config errors.
func userMessage(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Sanitized()
	}
	return err.Error()
}
