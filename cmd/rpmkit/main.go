package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/open-edge-platform/rpmkit/internal/utils/config"
	"github.com/open-edge-platform/rpmkit/internal/utils/logger"
)

// Version information, set at build time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
)

// Global command line flags
var (
	configFile string
	logLevel   string
	verbose    bool
)

// globalConfig is loaded by the pre-run hook of every subcommand.
var globalConfig = config.DefaultGlobalConfig()

func main() {
	root := createRootCommand()
	if err := root.Execute(); err != nil {
		logger.Logger().Errorf("%v", err)
		os.Exit(1)
	}
}

// createRootCommand creates the rpmkit root command with all subcommands
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rpmkit",
		Short: "Build, sign and verify RPM packages",
		Long: `rpmkit reads, writes, signs and verifies RPM package files without
relying on rpm or rpmbuild. It can also copy incoming packages to several
destinations while checking their digests in the same pass.`,
		Version:       fmt.Sprintf("%s (%s)", Version, CommitSHA),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Path to the global configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.AddCommand(createBuildCommand())
	rootCmd.AddCommand(createSignCommand())
	rootCmd.AddCommand(createVerifyCommand())
	rootCmd.AddCommand(createInspectCommand())
	rootCmd.AddCommand(createProcessCommand())
	rootCmd.AddCommand(createKeygenCommand())

	attachLoggingHooks(rootCmd)
	return rootCmd
}

// attachLoggingHooks makes every subcommand load the configuration and set
// up logging before it runs.
func attachLoggingHooks(root *cobra.Command) {
	for _, cmd := range root.Commands() {
		cmd.PersistentPreRunE = setupCommand
	}
}

func setupCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadGlobalConfig(configFile)
	if err != nil {
		return err
	}
	level := resolveRequestedLogLevel(cmd)
	if level == "" {
		level = cfg.Logging.Level
	}
	if err := logger.Setup(level, cfg.Logging.File); err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	globalConfig = cfg
	logger.Logger().Debugf("using configuration %q with %d workers", configFile, cfg.Workers)
	return nil
}

// resolveRequestedLogLevel returns the level asked for on the command line:
// --log-level wins, --verbose means debug, otherwise empty.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd == nil {
		return ""
	}
	if flagEnabled(cmd.Flags(), "verbose") {
		return "debug"
	}
	return ""
}

// flagEnabled reports whether the boolean flag name was set to true on the
// command line.
func flagEnabled(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Changed && f.Value.String() == "true"
}

// commandContext returns the command's context, or a background context
// when the command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
