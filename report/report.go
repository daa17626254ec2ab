// Package report assembles flow results into persistable and human-readable
// artifacts: a JSON document, a self-contained HTML report and a terminal
// summary. Assembly is pure; the only side effect is serialization.
package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"go.beacon.dev/beacon/flow"
)

// JSON encodes a flow result as an indented JSON document: an ordered array
// of step entries, each tagged with its mode.
func JSON(result *flow.FlowResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

// WriteJSON persists the flow result as JSON at path on the given
// filesystem, creating parent directories as needed.
func WriteJSON(fs afero.Fs, path string, result *flow.FlowResult) error {
	data, err := JSON(result)
	if err != nil {
		return fmt.Errorf("encoding flow result: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("writing flow result: %w", err)
	}
	return nil
}

// WriteHTML persists the rendered HTML report at path on the given
// filesystem.
func WriteHTML(fs afero.Fs, path string, result *flow.FlowResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()
	return RenderHTML(f, result)
}
