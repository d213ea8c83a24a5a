// Package build is the build orchestrator. A build runs the stages
// validate, index, render, assets and styles in order against a staging
// directory and promotes it over the output root only when every stage
// succeeded. Builder serializes full builds, stylesheet-only rebuilds and
// single asset syncs so their writes never interleave.
package build
