package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuildInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	prev := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
	t.Cleanup(func() { readBuildInfo = prev })
}

func withLdflags(t *testing.T, v, c, d string) {
	t.Helper()
	pv, pc, pd := Version, Commit, Date
	Version, Commit, Date = v, c, d
	t.Cleanup(func() { Version, Commit, Date = pv, pc, pd })
}

func TestGet_LdflagsWin(t *testing.T) {
	withLdflags(t, "v1.2.0", "abc1234", "2026-01-02T03:04:05Z")
	withBuildInfo(t, &debug.BuildInfo{
		Main:     debug.Module{Version: "v0.0.1"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffffffffffff"}},
	})

	info := Get()

	assert.Equal(t, "v1.2.0", info.Version)
	assert.Equal(t, "abc1234", info.Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", info.Date)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestGet_FallsBackToEmbeddedBuildInfo(t *testing.T) {
	withLdflags(t, "dev", "unknown", "unknown")
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-10-01T00:00:00Z"},
		},
	})

	info := Get()

	assert.Equal(t, "v0.3.0", info.Version)
	assert.Equal(t, "0123456", info.Commit)
	assert.Equal(t, "2026-10-01T00:00:00Z", info.Date)
}

func TestGet_DevelBuildStaysDev(t *testing.T) {
	withLdflags(t, "dev", "unknown", "unknown")
	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})

	assert.Equal(t, "dev", Short())
}

func TestString(t *testing.T) {
	withLdflags(t, "v1.0.0", "abc1234", "today")
	withBuildInfo(t, nil)

	assert.Contains(t, String(), "tutor v1.0.0 (commit: abc1234, built: today")
}
