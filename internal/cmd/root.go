package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/docgate/docgate/internal/appid"
	"github.com/docgate/docgate/internal/config"
	"github.com/docgate/docgate/internal/observability"
)

var (
	cfgFile   string
	verbose   bool
	traceFile string

	appIdentity *appid.Identity

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the app identity.
func GetAppIdentity() *appid.Identity {
	if appIdentity == nil {
		appIdentity, _ = appid.Get(context.Background())
	}
	return appIdentity
}

var rootCmd = &cobra.Command{
	Use:           "docgate",
	Short:         "Rate-limited document submission client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Commands other than serve must not emit metrics to stdout.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	identity := GetAppIdentity()
	rootCmd.Use = identity.BinaryName
	rootCmd.Short = identity.Description
	rootCmd.Long = fmt.Sprintf(`%s - %s

Documents are admitted through a fixed-window quota: at most gate.limit
submissions start per gate.period, and the rest wait for the next window.`,
		identity.BinaryName, identity.Description)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace", "", "trace registration service requests/responses to an NDJSON file")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("transport.trace_file", rootCmd.PersistentFlags().Lookup("trace"))
}

// initConfig layers defaults, the config file, and DOCGATE_* variables.
func initConfig() {
	identity := GetAppIdentity()
	observability.InitCLILogger(identity.BinaryName, verbose)

	configureViper(viper.GetViper(), identity, cfgFile)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			observability.CLILogger.Debug("No config file found, using defaults and environment variables")
		} else if cfgFile != "" {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to read config file", err)
		} else {
			observability.CLILogger.Warn("Error reading config file", zap.Error(err))
		}
		return
	}
	observability.CLILogger.Debug("Using config file", zap.String("path", viper.ConfigFileUsed()))
}

func configureViper(v *viper.Viper, identity *appid.Identity, explicitFile string) {
	config.SetDefaults(v)

	if explicitFile != "" {
		v.SetConfigFile(explicitFile)
	} else {
		if dir := gfconfig.GetAppConfigDir(identity.ConfigName); dir != "" {
			v.AddConfigPath(dir)
		} else if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(strings.TrimSuffix(identity.EnvPrefix, "_"))
	v.SetEnvKeyReplacer(config.EnvKeyReplacer())
	v.AutomaticEnv()
}

// loadConfig decodes and validates the effective configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}
