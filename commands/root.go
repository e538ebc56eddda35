package commands

import (
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/notwillk/optload/internal/config"
	"github.com/notwillk/optload/internal/version"
)

var (
	showVersion bool
	configPath  string
	logLevel    string
	logFormat   string
	backendName string
)

var rootCmd = &cobra.Command{
	Use:   "optload",
	Short: "Load, inspect and convert configuration files",
	Long: `optload reads configuration documents (JSON, YAML, TOML, HJSON, plist, XML),
detecting the format from the extension or the content, and applies a
configurable policy to missing, empty, malformed and non-collection files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Fprintf(cmd.OutOrStdout(), "optload %s\n", version.Version)
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Print version and exit")

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", config.DefaultFile, "Config file")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error, none")
	pf.StringVar(&logFormat, "log-format", "", "Log format: logfmt, json")
	pf.StringVar(&backendName, "backend", "", "YAML backend: native, library")

	rootCmd.AddCommand(loadCmd, parseCmd, convertCmd, mergeCmd, watchCmd, configSchemaCmd)
}

// setup loads the config file and applies the persistent flag overrides.
func setup(cmd *cobra.Command) (*config.Config, log.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	cfg = cfg.WithLog(logLevel, logFormat).WithBackend(backendName)
	return cfg, cfg.Logger(cmd.ErrOrStderr()), nil
}

// Execute runs the root cobra command and returns an exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
