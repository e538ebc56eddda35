package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/notwillk/optload/internal/config"
	"github.com/notwillk/optload/internal/jsonschema"
)

var configSchemaCmd = &cobra.Command{
	Use:   "config-schema",
	Short: "Generate a JSON Schema for optload.yaml",
	Long: `Output a JSON Schema document that validates the optload.yaml configuration
file. With --check, validate the file named by --config instead.`,
	Args: cobra.NoArgs,
	RunE: runConfigSchema,
}

var (
	configSchemaOutputFile string
	configSchemaCheck      bool
)

func init() {
	configSchemaCmd.Flags().StringVarP(&configSchemaOutputFile, "output-file", "o", "", "Output file (default: stdout)")
	configSchemaCmd.Flags().BoolVar(&configSchemaCheck, "check", false, "Validate the config file and report the result")
}

func runConfigSchema(cmd *cobra.Command, args []string) error {
	if configSchemaCheck {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("checking config: %w", err)
		}
		if _, err := config.Load(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", configPath)
		return nil
	}

	data, err := jsonschema.GenerateConfigSchema()
	if err != nil {
		return fmt.Errorf("generating config schema: %w", err)
	}

	if configSchemaOutputFile != "" {
		if err := os.WriteFile(configSchemaOutputFile, data, 0644); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config schema written to %s\n", configSchemaOutputFile)
		return nil
	}

	_, err = cmd.OutOrStdout().Write(append(data, '\n'))
	return err
}
