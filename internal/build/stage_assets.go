package build

import (
	"context"
	"os"

	"git.home.luguber.info/inful/pagebrew/internal/assets"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
)

func stageAssets(ctx context.Context, st *State) error {
	res, err := st.builder.pipeline(st).CopyImages(ctx, st.StageDir)
	st.Report.ImagesCopied = res.Copied
	st.Report.ImagesFailed = res.Failed
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		st.warnf("%d image(s) could not be copied: %v", res.Failed, res.Failures)
	}
	return nil
}

func stageStyles(ctx context.Context, st *State) error {
	return st.buildStylesheet(ctx, st.StageDir)
}

// buildStylesheet runs the stylesheet builder under the stage timeout. In
// watch mode a timeout keeps the previously published stylesheet.
func (st *State) buildStylesheet(ctx context.Context, outputRoot string) error {
	sctx, cancel := st.stageContext(ctx)
	defer cancel()
	err := st.builder.pipeline(st).BuildStylesheet(sctx, outputRoot, st.Theme)
	if err == nil || st.Mode != ModeWatch || !timedOut(ctx, err) {
		return err
	}
	st.warnf("stylesheet build timed out")
	st.logger.Warn("Stylesheet build timed out; keeping previous stylesheet", logfields.Error(err))
	if outputRoot == st.OutputRoot {
		return nil
	}
	prev, readErr := os.ReadFile(assets.StylesheetPath(st.OutputRoot))
	if readErr != nil {
		return nil
	}
	return writePage(outputRoot, assets.CSSDir+"/"+assets.StylesheetName, prev)
}
