package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/notwillk/optload/internal/config"
	"github.com/notwillk/optload/internal/merge"
	"github.com/notwillk/optload/internal/validator"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <dir>",
	Short: "Merge a directory of configuration fragments",
	Long: `Load every supported file under a directory, in lexical order, into one
document. Hidden files and the optload config file are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runMerge,
}

var (
	mergeOverwrite bool
	mergeOutput    string
	mergeSchema    string
	mergeInvalid   string
)

func init() {
	mergeCmd.Flags().BoolVar(&mergeOverwrite, "overwrite", false, "Let later files replace keys set by earlier ones")
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", outputJSON, "Output format: json, yaml")
	mergeCmd.Flags().StringVar(&mergeSchema, "schema", "", "JSON Schema file each fragment is validated against")
	mergeCmd.Flags().StringVar(&mergeInvalid, "invalid", "", "Behavior on validation failure: silent, warn, fail (default: fail)")
}

func mergeOptions(dir string, cfg *config.Config, logger log.Logger) (merge.Options, error) {
	flags, err := cfg.IntoFlags()
	if err != nil {
		return merge.Options{}, err
	}
	opts := merge.Options{
		RootDir:   dir,
		Overwrite: mergeOverwrite,
		Flags:     flags,
		Loader:    cfg.Loader(logger),
		Skip:      []string{filepath.Base(configPath)},
		Logger:    logger,
	}

	schema, err := readSchema(mergeSchema)
	if err != nil {
		return merge.Options{}, err
	}
	if schema != nil {
		v, err := validator.New(schema, cfg.InvalidPolicy(), logger)
		if err != nil {
			return merge.Options{}, fmt.Errorf("loading schema: %w", err)
		}
		opts.Validator = v
	}
	return opts, nil
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	cfg = cfg.WithInvalid(mergeInvalid)

	opts, err := mergeOptions(args[0], cfg, logger)
	if err != nil {
		return err
	}
	result, err := merge.Merge(context.Background(), opts)
	if err != nil {
		return err
	}

	if err := writeDoc(cmd.OutOrStdout(), result.Options, mergeOutput, cfg, logger); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Merged %d files in %s\n", result.FilesLoaded, result.Duration)
	return nil
}
