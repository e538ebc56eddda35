package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notwillk/optload/internal/validator"
)

var loadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load a configuration file and print it",
	Long: `Detect the format of a file, parse it under the configured error policy
and print the document. A failure that the policy does not make fatal prints
nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

var (
	loadOutput  string
	loadSchema  string
	loadInvalid string
)

func init() {
	loadCmd.Flags().StringVarP(&loadOutput, "output", "o", outputJSON, "Output format: json, yaml")
	loadCmd.Flags().StringVar(&loadSchema, "schema", "", "JSON Schema file to validate the document against")
	loadCmd.Flags().StringVar(&loadInvalid, "invalid", "", "Behavior on validation failure: silent, warn, fail (default: fail)")
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	cfg = cfg.WithInvalid(loadInvalid)
	flags, err := cfg.Flags()
	if err != nil {
		return err
	}

	path := args[0]
	doc, err := cfg.Loader(logger).Load(path, flags)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	schema, err := readSchema(loadSchema)
	if err != nil {
		return err
	}
	if schema != nil {
		v, err := validator.New(schema, cfg.InvalidPolicy(), logger)
		if err != nil {
			return fmt.Errorf("loading schema: %w", err)
		}
		if err := v.Validate(path, doc); err != nil {
			return err
		}
	}

	return writeDoc(cmd.OutOrStdout(), doc, loadOutput, cfg, logger)
}
