package config_test

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestWithDefault(t *testing.T) {
	cfg, err := config.WithDefault(mustURL(t, "HTTPS://Example.org/docs/intro#top")).Build()
	require.NoError(t, err)

	seed := cfg.SeedURL()
	assert.Equal(t, "https://example.org/docs/intro", seed.String())
	assert.Equal(t, "", cfg.ScopePrefix())
	assert.Equal(t, config.ScopeModePrefix, cfg.ScopeMode())
	assert.Empty(t, cfg.Exclusions())
	assert.Equal(t, 0, cfg.Limit())
	assert.Equal(t, 1, cfg.Workers())
	assert.Equal(t, "load", cfg.WaitCondition().String())
	assert.Equal(t, 90*time.Second, cfg.PageTimeout())
	assert.False(t, cfg.Scroll())
	assert.Equal(t, 30*time.Second, cfg.ScrollCeiling())
	assert.Equal(t, 5*time.Second, cfg.SettleDelay())
	assert.Equal(t, 10*time.Second, cfg.ProbeTimeout())
	assert.Equal(t, "http://localhost:8080", cfg.ProxyServer())
	assert.Equal(t, "/output", cfg.OutputDir())
	assert.Equal(t, "example.org", cfg.Name())
	assert.Equal(t, "warc2zim", cfg.PackagerBinary())
	assert.Equal(t, 3, cfg.MaxAttempt())
}

func TestBuild_InvalidSeed(t *testing.T) {
	tests := []struct {
		name string
		seed url.URL
	}{
		{name: "empty", seed: url.URL{}},
		{name: "relative", seed: url.URL{Path: "/docs"}},
		{name: "ftp", seed: url.URL{Scheme: "ftp", Host: "example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.WithDefault(tt.seed).Build()
			assert.ErrorIs(t, err, config.ErrInvalidSeed)
		})
	}
}

func TestBuild_Validation(t *testing.T) {
	seed := mustURL(t, "https://example.com/")

	tests := []struct {
		name    string
		builder *config.Config
	}{
		{name: "zero workers", builder: config.WithDefault(seed).WithWorkers(0)},
		{name: "negative limit", builder: config.WithDefault(seed).WithLimit(-1)},
		{name: "zero page timeout", builder: config.WithDefault(seed).WithPageTimeout(0)},
		{name: "zero probe timeout", builder: config.WithDefault(seed).WithProbeTimeout(0)},
		{name: "negative settle delay", builder: config.WithDefault(seed).WithSettleDelay(-time.Second)},
		{name: "port out of range", builder: config.WithDefault(seed).WithCapturePort(70000)},
		{name: "empty capture host", builder: config.WithDefault(seed).WithCaptureHost("")},
		{name: "bad exclusion", builder: config.WithDefault(seed).WithExclusions([]string{"("})},
		{name: "zero attempts", builder: config.WithDefault(seed).WithMaxAttempt(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}

	_, err := config.WithDefault(seed).WithScopeMode("everything").Build()
	assert.ErrorIs(t, err, config.ErrInvalidScopeMode)

	_, err = config.WithDefault(seed).WithWaitCondition(config.WaitCondition{}).Build()
	assert.ErrorIs(t, err, config.ErrInvalidWaitCondition)
}

func TestBuilderOverrides(t *testing.T) {
	cfg, err := config.WithDefault(mustURL(t, "https://example.com/a")).
		WithScopePrefix("https://example.com/").
		WithScopeMode(config.ScopeModeHost).
		WithExclusions([]string{`\.pdf$`, `/private/`}).
		WithLimit(25).
		WithWorkers(4).
		WithWaitCondition(config.MustParseWaitCondition("load,networkidle2")).
		WithPageTimeout(30 * time.Second).
		WithScroll(true).
		WithSettleDelay(time.Second).
		WithUserAgent("bot/1.0").
		WithAdminEmail("ops@example.com").
		WithCaptureHost("proxy").
		WithCapturePort(9000).
		WithRateLimit(2, 4).
		WithName("example").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/", cfg.ScopePrefix())
	assert.Equal(t, config.ScopeModeHost, cfg.ScopeMode())
	assert.Equal(t, []string{`\.pdf$`, `/private/`}, cfg.ExclusionPatterns())
	require.Len(t, cfg.Exclusions(), 2)
	assert.True(t, cfg.Exclusions()[0].MatchString("https://example.com/doc.pdf"))
	assert.Equal(t, 25, cfg.Limit())
	assert.Equal(t, 4, cfg.Workers())
	assert.Equal(t, []config.WaitEvent{config.WaitLoad, config.WaitNetworkIdle2}, cfg.WaitCondition().Events())
	assert.Equal(t, 30*time.Second, cfg.PageTimeout())
	assert.True(t, cfg.Scroll())
	assert.Equal(t, time.Second, cfg.SettleDelay())
	assert.Equal(t, "bot/1.0 +capture-crawler ops@example.com", cfg.UserAgent())
	assert.Equal(t, "http://proxy:9000", cfg.ProxyServer())
	assert.Equal(t, 2.0, cfg.RateLimit())
	assert.Equal(t, 4, cfg.RateBurst())
	assert.Equal(t, "example", cfg.Name())
}

func TestExclusionsAreCopied(t *testing.T) {
	cfg, err := config.WithDefault(mustURL(t, "https://example.com/")).
		WithExclusions([]string{"a"}).
		Build()
	require.NoError(t, err)

	got := cfg.Exclusions()
	got[0] = nil
	assert.NotNil(t, cfg.Exclusions()[0])
}

func TestWithConfigFile_FileDoesNotExist(t *testing.T) {
	_, err := config.WithConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, config.ErrFileDoesNotExist)
}

func TestWithConfigFile_YAML(t *testing.T) {
	path := writeConfigFile(t, "crawl.yaml", `
seed: https://example.com/docs/
workers: 3
limit: 10
waitUntil: domcontentloaded
timeout: 45s
scroll: true
scopeType: host
exclude:
  - \.zip$
proxyHost: relay
proxyPort: 8081
settleDelay: 2s
name: docs
title: Example Docs
`)

	cfg, err := config.WithConfigFile(path)
	require.NoError(t, err)

	seed := cfg.SeedURL()
	assert.Equal(t, "https://example.com/docs/", seed.String())
	assert.Equal(t, 3, cfg.Workers())
	assert.Equal(t, 10, cfg.Limit())
	assert.Equal(t, "domcontentloaded", cfg.WaitCondition().String())
	assert.Equal(t, 45*time.Second, cfg.PageTimeout())
	assert.True(t, cfg.Scroll())
	assert.Equal(t, config.ScopeModeHost, cfg.ScopeMode())
	assert.Equal(t, []string{`\.zip$`}, cfg.ExclusionPatterns())
	assert.Equal(t, "http://relay:8081", cfg.ProxyServer())
	assert.Equal(t, 2*time.Second, cfg.SettleDelay())
	assert.Equal(t, "docs", cfg.Name())
	assert.Equal(t, "Example Docs", cfg.Title())
	// untouched fields keep their defaults
	assert.Equal(t, 10*time.Second, cfg.ProbeTimeout())
}

func TestWithConfigFile_JSON(t *testing.T) {
	path := writeConfigFile(t, "crawl.json", `{"seed": "https://example.com/", "workers": 2, "waitUntil": "load,networkidle0"}`)

	cfg, err := config.WithConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers())
	assert.Equal(t, "load,networkidle0", cfg.WaitCondition().String())
}

func TestWithConfigFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "malformed", content: "seed: [unterminated", want: config.ErrConfigParsingFail},
		{name: "unknown field", content: "seed: https://example.com/\nbogus: 1\n", want: config.ErrConfigParsingFail},
		{name: "empty file", content: "", want: config.ErrInvalidSeed},
		{name: "missing seed", content: "workers: 2\n", want: config.ErrInvalidSeed},
		{name: "bad wait condition", content: "seed: https://example.com/\nwaitUntil: sometime\n", want: config.ErrInvalidWaitCondition},
		{name: "bad scope type", content: "seed: https://example.com/\nscopeType: galaxy\n", want: config.ErrInvalidScopeMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, "crawl.yaml", tt.content)
			_, err := config.WithConfigFile(path)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
