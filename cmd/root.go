package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"invertix/internal/config"
	"invertix/internal/log"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	logFile   string
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:   "invertix",
	Short: "Invert elastix registration chains and map artifacts back through them",
	Long: `Invertix inverts multi-stage elastix registrations and applies the
inverted chains to labelmaps, image volumes, meshes, and ROI masks.

build-inverse-transforms walks a forward registration tree and computes a
per-stage inverse transform tree. The remaining modes read that tree's
inversion order document (invert.yaml) and push artifacts back through
the chain, one stage directory at a time.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "settings", "",
		"settings file (default: ~/.invertix/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"enable debug logging (also via INVERTIX_DEBUG)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "",
		"debug log file (default: invertix.log, also via INVERTIX_LOG)")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("workers", defaults.Workers)
	viper.SetDefault("engine.registration_binary", defaults.Engine.RegistrationBinary)
	viper.SetDefault("engine.transformation_binary", defaults.Engine.TransformationBinary)
	viper.SetDefault("ledger.filename", defaults.Ledger.Filename)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		viper.AddConfigPath(filepath.Join(home, ".invertix"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("INVERTIX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// No settings file anywhere: write the default one so the next
		// run has something to edit.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			if home, homeErr := os.UserHomeDir(); homeErr == nil {
				defaultPath := filepath.Join(home, ".invertix", "config.yaml")
				if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
					viper.SetConfigFile(defaultPath)
					_ = viper.ReadInConfig()
				}
			}
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// setupLogging turns on the debug log when requested via --debug or
// INVERTIX_DEBUG. The returned cleanup is a no-op when logging stays off.
func setupLogging() (func(), error) {
	debug := os.Getenv("INVERTIX_DEBUG") != "" || debugFlag
	if !debug {
		return func() {}, nil
	}

	path := logFile
	if path == "" {
		path = os.Getenv("INVERTIX_LOG")
	}
	if path == "" {
		path = "invertix.log"
	}

	cleanup, err := log.Init(path)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	log.Info(log.CatConfig, "invertix starting", "version", version, "logPath", path)
	return cleanup, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
