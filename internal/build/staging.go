package build

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/pagebrew/internal/logfields"
)

const (
	stagingInfix = ".staging-"
	backupInfix  = ".prev-"
)

// IsOutputPath reports whether abs lies in the output root or one of its
// staging and backup siblings.
func IsOutputPath(outputRoot, abs string) bool {
	outputRoot = filepath.Clean(outputRoot)
	abs = filepath.Clean(abs)
	within := func(dir string) bool {
		return abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator))
	}
	if within(outputRoot) {
		return true
	}
	rel, err := filepath.Rel(filepath.Dir(outputRoot), abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	base := filepath.Base(outputRoot)
	return strings.HasPrefix(first, base+stagingInfix) || strings.HasPrefix(first, base+backupInfix)
}

// beginStaging creates the sibling directory the build writes into.
func beginStaging(outputRoot, id string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(outputRoot), 0o750); err != nil {
		return "", err
	}
	stage := outputRoot + stagingInfix + id
	if err := os.MkdirAll(stage, 0o750); err != nil {
		return "", err
	}
	slog.Debug("Initialized staging directory", slog.String("staging", stage), logfields.Path(outputRoot))
	return stage, nil
}

// promoteStaging moves the current output aside, renames the staging
// directory into place and removes the old output in the background.
func promoteStaging(stage, outputRoot, id string) error {
	if _, err := os.Stat(stage); err != nil {
		return fmt.Errorf("staging directory missing: %w", err)
	}
	prev := outputRoot + backupInfix + id
	if _, err := os.Stat(outputRoot); err == nil {
		if err := os.Rename(outputRoot, prev); err != nil {
			return fmt.Errorf("backup existing output: %w", err)
		}
	}
	if err := os.Rename(stage, outputRoot); err != nil {
		// put the old output back so readers still see a complete tree
		if _, statErr := os.Stat(prev); statErr == nil {
			_ = os.Rename(prev, outputRoot)
		}
		return fmt.Errorf("promote staging: %w", err)
	}
	go func(p string) {
		if err := os.RemoveAll(p); err != nil {
			slog.Warn("Failed to remove previous backup", logfields.Path(p), logfields.Error(err))
		}
	}(prev)
	slog.Debug("Promoted staging directory", logfields.Path(outputRoot))
	return nil
}

// abortStaging removes a staging directory after a failed build.
func abortStaging(stage string) {
	if stage == "" {
		return
	}
	if err := os.RemoveAll(stage); err != nil {
		slog.Warn("Failed to remove staging directory after abort", slog.String("staging", stage), logfields.Error(err))
		return
	}
	slog.Debug("Removed staging directory after abort", slog.String("staging", stage))
}
