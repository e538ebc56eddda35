package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/notwillk/optload/internal/config"
	"github.com/notwillk/optload/internal/merge"
	"github.com/notwillk/optload/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch <path>...",
	Short: "Print configuration files and reprint them on change",
	Long: `Load each file (or merge each directory) and print the result, then watch
the paths and print them again whenever they change.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

var (
	watchDebounce time.Duration
	watchOutput   string
)

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "Quiet period before reloading")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", outputJSON, "Output format: json, yaml")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	reload := func(ctx context.Context) error {
		for _, path := range args {
			doc, err := watchLoad(ctx, path, cfg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", path)
			if doc == nil {
				continue
			}
			if err := writeDoc(cmd.OutOrStdout(), doc, watchOutput, cfg, logger); err != nil {
				return err
			}
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := reload(ctx); err != nil {
		return err
	}

	w, err := watcher.New(args, watchDebounce, reload, logger)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	fmt.Fprintln(cmd.ErrOrStderr(), "Watching for changes (press Ctrl+C to stop)")
	return w.Start(ctx)
}

func watchLoad(ctx context.Context, path string, cfg *config.Config, logger log.Logger) (any, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		opts, err := mergeOptions(path, cfg, logger)
		if err != nil {
			return nil, err
		}
		result, err := merge.Merge(ctx, opts)
		if err != nil {
			return nil, err
		}
		return result.Options, nil
	}
	flags, err := cfg.Flags()
	if err != nil {
		return nil, err
	}
	return cfg.Loader(logger).Load(path, flags)
}
