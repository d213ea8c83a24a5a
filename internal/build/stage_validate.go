package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/templates"
	"git.home.luguber.info/inful/pagebrew/internal/themes"
)

// stageValidate checks everything that can be checked without writing, then
// opens the staging directory. Nothing under the output root is touched
// before it succeeds.
func stageValidate(ctx context.Context, st *State) error {
	info, err := os.Stat(st.ContentRoot)
	if err != nil || !info.IsDir() {
		return ferrors.ValidationError("content root does not exist").
			WithCause(err).WithContext("path", st.ContentRoot).Build()
	}
	if contains(st.OutputRoot, st.ContentRoot) {
		return ferrors.ValidationError("output directory must not contain the content root").
			WithContext("output", st.OutputRoot).WithContext("path", st.ContentRoot).Build()
	}
	if err := resolveTheme(ctx, st); err != nil {
		return err
	}
	if _, err := st.builder.resolver.Resolve(templates.KeyBase, st.Theme); err != nil {
		return err
	}

	stage, err := beginStaging(st.OutputRoot, st.Report.ID)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create staging directory").
			Fatal().WithContext("path", st.OutputRoot).Build()
	}
	st.StageDir = stage
	return nil
}

// resolveTheme loads the active theme into st.
func resolveTheme(_ context.Context, st *State) error {
	theme, err := themes.Get(st.builder.themeName(st.Config))
	if err != nil {
		return err
	}
	st.Theme = theme
	st.Report.Theme = theme.Name
	return nil
}

// contains reports whether dir is p or one of its ancestors.
func contains(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
