package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Convert a configuration file to JSON or YAML",
	Long: `Load any supported file and write it as JSON or YAML, chosen by the
output file extension. A missing input is always an error.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	format, err := formatFor(out)
	if err != nil {
		return err
	}
	flags, err := cfg.IntoFlags()
	if err != nil {
		return err
	}

	doc, err := cfg.Loader(logger).Load(in, flags)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("nothing to convert in %s", in)
	}

	if format == outputYAML {
		y, err := newYAML(cfg, logger)
		if err != nil {
			return err
		}
		if err := y.EmitFile(out, doc); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
	} else {
		data, err := render(doc, format, cfg, logger)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Converted %s to %s\n", in, out)
	return nil
}
