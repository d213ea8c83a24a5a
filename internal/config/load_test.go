package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
)

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("PAGEBREW_TEST_NAME", "From Env")
	cfg, err := Parse([]byte("name: ${PAGEBREW_TEST_NAME}\nbuild:\n  stage_timeout: 30s\nwatch:\n  debounce: 50ms\n"))
	require.NoError(t, err)
	require.Equal(t, "From Env", cfg.Name)
	require.Equal(t, 30*time.Second, cfg.Build.StageTimeoutDuration())
	require.Equal(t, 50*time.Millisecond, cfg.Watch.DebounceDuration())
	require.Equal(t, DefaultMaxDelay, cfg.Watch.MaxDelayDuration())
	require.Zero(t, cfg.Watch.ResyncDuration())
}

func TestParse_ZeroStageTimeout(t *testing.T) {
	cfg, err := Parse([]byte("build:\n  stage_timeout: 0s\n"))
	require.NoError(t, err)
	require.Zero(t, cfg.Build.StageTimeoutDuration())
	require.Equal(t, DefaultStageTimeout, BuildConfig{}.StageTimeoutDuration())
}

func TestParse_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad duration": "watch:\n  debounce: soon\n",
		"bad port":     "server:\n  port: 70000\n",
		"menu no url":  "menu:\n  - title: Broken\n",
		"bad yaml":     "theme: [unterminated\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
		})
	}
}

func TestEffectiveFooterDefault(t *testing.T) {
	cfg := Config{Name: "Brew"}
	require.Equal(t, "© 2025 Brew. All rights reserved.", cfg.EffectiveFooter(2025))
}

func TestSiteNameFromDir(t *testing.T) {
	require.Equal(t, "Pagebrew Demo", SiteNameFromDir("/tmp/pagebrew-demo"))
	require.Equal(t, "My Blog", SiteNameFromDir("/srv/my_blog"))
}

func TestServerConfig_LiveReloadDefaultsOn(t *testing.T) {
	require.True(t, ServerConfig{}.LiveReloadEnabled())
	off := false
	require.False(t, ServerConfig{LiveReload: &off}.LiveReloadEnabled())
}
