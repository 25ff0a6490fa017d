package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreRules_Match(t *testing.T) {
	rules := ParseIgnore(`
# answer keys stay private
answers/
*.draft.txt
!keep.draft.txt
/scratch.txt
form1/appendix/**
\#literal.txt
`)
	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"answers", true, true},
		{"answers", false, false},
		{"form2/answers/key.txt", false, true},
		{"ch1.draft.txt", false, true},
		{"sub/ch2.draft.txt", false, true},
		{"keep.draft.txt", false, false},
		{"scratch.txt", false, true},
		{"sub/scratch.txt", false, false},
		{"form1/appendix/a.txt", false, true},
		{"form2/appendix/a.txt", false, false},
		{"#literal.txt", false, true},
		{"chapter1.txt", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Match(tt.path, tt.isDir))
		})
	}
	assert.Equal(t, 6, rules.Len())
}

func TestIgnoreRules_SkipsBrokenLines(t *testing.T) {
	rules := ParseIgnore("[]\n\n#comment\n/\n")
	assert.Zero(t, rules.Len())

	var nilRules *IgnoreRules
	assert.False(t, nilRules.Match("a.txt", false))
}

func TestLoadIgnoreFile_Missing(t *testing.T) {
	rules, err := LoadIgnoreFile(t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, rules.Len())
}

func TestDiscover_HonorsIgnoreFile(t *testing.T) {
	// Given: a source tree with an ignore file hiding a folder and drafts
	root := t.TempDir()
	createTestFiles(t, root, map[string]string{
		IgnoreFileName:          "answers/\n*.draft.txt\n",
		"ch1.txt":               "a",
		"ch2.draft.txt":         "b",
		"answers/key.txt":       "c",
		"form1/answers/key.txt": "d",
	})

	// When: discovering
	d, err := New().Discover(context.Background(), &ScanOptions{RootDir: root, IsSupported: isText})
	require.NoError(t, err)

	// Then: only the chapter remains and the ignore file itself is not reported
	assert.Equal(t, []string{"ch1.txt"}, relPaths(d.Supported))
	assert.Empty(t, d.Unsupported)
}

func TestFilter_ExcludedAndReload(t *testing.T) {
	root := t.TempDir()
	f, err := NewFilter(root, []string{"*.tmp"})
	require.NoError(t, err)

	assert.True(t, f.Excluded("x.tmp", false))
	assert.True(t, f.Excluded(".git/objects/ab", false))
	assert.False(t, f.Excluded("private/a.txt", false))

	// When: the ignore file appears
	require.NoError(t, os.WriteFile(filepath.Join(root, IgnoreFileName), []byte("private/\n"), 0o644))
	require.NoError(t, f.Reload())

	// Then: paths below the ignored directory are excluded
	assert.True(t, f.Excluded("private/a.txt", false))
	assert.True(t, f.Excluded("private", true))
}
