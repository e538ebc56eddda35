// Package merge combines a directory of configuration fragments (a conf.d
// layout) into one document.
package merge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/notwillk/optload/internal/loader"
	"github.com/notwillk/optload/internal/validator"
)

// Options configures a merge run.
type Options struct {
	RootDir string
	// Overwrite lets later files replace keys set by earlier ones. Without
	// it the first file to set a key wins.
	Overwrite bool
	Flags     loader.Flags
	Loader    *loader.Loader
	// Validator, when set, checks each fragment before it is merged.
	Validator *validator.Validator
	// Skip lists file names that are never merged.
	Skip   []string
	Logger log.Logger
}

// Result holds the outcome of a merge.
type Result struct {
	Options     map[string]any
	Files       []string // relative paths, in merge order
	FilesLoaded int
	Duration    time.Duration
}

// Merge walks opts.RootDir in lexical order and loads every supported file
// into one map. Hidden files and directories are skipped.
func Merge(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	l := opts.Loader
	if l == nil {
		l = loader.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "component", "merge")

	skip := make(map[string]struct{}, len(opts.Skip))
	for _, name := range opts.Skip {
		skip[name] = struct{}{}
	}

	result := &Result{Options: make(map[string]any)}
	err := filepath.WalkDir(opts.RootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		hidden := strings.HasPrefix(d.Name(), ".") && path != opts.RootDir
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden {
			return nil
		}
		if _, ok := skip[d.Name()]; ok {
			return nil
		}
		if !l.IsSupported(path) {
			return nil
		}

		relPath, err := filepath.Rel(opts.RootDir, path)
		if err != nil {
			return err
		}

		fragment := make(map[string]any)
		if err := l.LoadInto(path, fragment, true, opts.Flags); err != nil {
			return fmt.Errorf("loading %q: %w", relPath, err)
		}
		if len(fragment) == 0 {
			level.Debug(logger).Log("msg", "nothing loaded", "file", relPath)
			return nil
		}
		if opts.Validator != nil {
			if err := opts.Validator.Validate(relPath, fragment); err != nil {
				return err
			}
		}

		for k, v := range fragment {
			if _, exists := result.Options[k]; exists && !opts.Overwrite {
				continue
			}
			result.Options[k] = v
		}
		result.Files = append(result.Files, relPath)
		result.FilesLoaded++
		level.Debug(logger).Log("msg", "merged", "file", relPath, "keys", len(fragment))
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("merging %s: %w", opts.RootDir, err)
	}

	result.Duration = time.Since(start)
	return result, nil
}
