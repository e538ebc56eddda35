package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"

	"github.com/notwillk/optload/internal/config"
	"github.com/notwillk/optload/internal/yamlfront"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

func newYAML(cfg *config.Config, logger log.Logger) (*yamlfront.YAML, error) {
	opts := cfg.YAMLOptions()
	opts.Logger = logger
	return yamlfront.New(opts)
}

func render(doc any, format string, cfg *config.Config, logger log.Logger) ([]byte, error) {
	switch strings.ToLower(format) {
	case outputJSON, "":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case outputYAML, "yml":
		y, err := newYAML(cfg, logger)
		if err != nil {
			return nil, err
		}
		return y.Emit(doc)
	}
	return nil, fmt.Errorf("unknown output format %q (want json or yaml)", format)
}

func writeDoc(w io.Writer, doc any, format string, cfg *config.Config, logger log.Logger) error {
	data, err := render(doc, format, cfg, logger)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// formatFor picks the output format from a file extension.
func formatFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return outputJSON, nil
	case ".yaml", ".yml":
		return outputYAML, nil
	}
	return "", fmt.Errorf("cannot write %q: output must end in .json, .yaml or .yml", path)
}

func readSchema(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	return data, nil
}
