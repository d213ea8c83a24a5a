package build

import (
	"context"
	"errors"

	"git.home.luguber.info/inful/pagebrew/internal/content"
	"git.home.luguber.info/inful/pagebrew/internal/gitinfo"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
	"git.home.luguber.info/inful/pagebrew/internal/markdown"
)

func stageIndex(ctx context.Context, st *State) error {
	cfg := st.Config
	renderer := markdown.New(markdown.Options{Highlight: cfg.Build.Highlight, Sanitize: cfg.Build.Sanitize})
	ix := &content.Indexer{
		Root:    st.ContentRoot,
		Cache:   content.NewParseCache(st.ContentRoot, renderer, st.Now),
		Skip:    st.skip,
		Workers: cfg.Build.Workers,
		Logger:  st.logger,
	}
	if cfg.Build.GitDates {
		dates, err := gitinfo.Open(st.ContentRoot)
		switch {
		case errors.Is(err, gitinfo.ErrNotRepository):
			st.logger.Debug("Content root is not in a git repository; no last-modified dates")
		case err != nil:
			st.warnf("git dates unavailable: %v", err)
			st.logger.Warn("Git dates unavailable", logfields.Error(err))
		default:
			ix.Dates = dates
		}
	}

	site, err := ix.Index(ctx, content.IndexOptions{
		Site: content.SiteMetadata{
			Name:        cfg.Name,
			Description: cfg.Description,
			Footer:      cfg.EffectiveFooter(st.Now.Year()),
		},
		HasBlogListing: st.builder.resolver.HasBlogListing(st.Theme),
	})
	if err != nil {
		return err
	}
	st.Site = site
	for _, w := range site.Warnings {
		st.warnf("%s", w)
	}

	persisted, ok := st.builder.opts.Store.Menu()
	st.Menu, st.MenuDerived = content.ResolveMenu(persisted, ok, site.Pages)

	st.Report.Documents = len(site.Documents)
	st.Report.Posts = len(site.Posts)
	for _, d := range site.Documents {
		st.Report.Fingerprints[d.Path] = d.Fingerprint
	}
	st.logger.Info("Content indexed",
		logfields.Count(len(site.Documents)),
		logfields.Path(st.ContentRoot))
	return nil
}
