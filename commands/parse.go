package commands

import (
	"github.com/spf13/cobra"

	"github.com/notwillk/optload/internal/yamlfront"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a YAML stream with the YAML adapter",
	Long: `Parse a YAML file with the configured backend and print one document, or
every document with --doc -1 (library backend only).`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

var (
	parseDoc    int
	parseOutput string
)

func init() {
	parseCmd.Flags().IntVar(&parseDoc, "doc", 0, "Zero-based document index; -1 for all documents")
	parseCmd.Flags().StringVarP(&parseOutput, "output", "o", outputJSON, "Output format: json, yaml")
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	y, err := newYAML(cfg, logger)
	if err != nil {
		return err
	}
	doc, err := y.ParseFile(args[0], yamlfront.ParseOptions{Doc: parseDoc})
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	return writeDoc(cmd.OutOrStdout(), doc, parseOutput, cfg, logger)
}
