package ui

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_StringAndIcon(t *testing.T) {
	tests := []struct {
		stage Stage
		name  string
		icon  string
	}{
		{StageScanning, "Scanning", "SCAN"},
		{StageEmbedding, "Embedding", "EMBED"},
		{StagePublishing, "Publishing", "PUBLISH"},
		{StageComplete, "Complete", "DONE"},
		{Stage(99), "Unknown", "???"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.stage.String())
		assert.Equal(t, tt.icon, tt.stage.Icon())
	}
}

func TestNewRenderer_NonTTYIsPlain(t *testing.T) {
	// Given: output to a buffer (not a terminal)
	buf := &bytes.Buffer{}

	// When: creating a renderer
	r := NewRenderer(NewConfig(buf))

	// Then: plain renderer is used
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewRenderer_ForcePlain(t *testing.T) {
	r := NewRenderer(NewConfig(&bytes.Buffer{}, WithForcePlain(true), WithNoColor(true)))
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewConfig_AppliesOptions(t *testing.T) {
	cfg := NewConfig(nil, WithSourceDir("/books"), WithNoColor(true))
	assert.Equal(t, "/books", cfg.SourceDir)
	assert.True(t, cfg.NoColor)
	assert.False(t, cfg.ForcePlain)
}

func TestIsTTY_NonFile(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestDetectCI(t *testing.T) {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		t.Setenv(v, "")
	}
	t.Setenv("GITHUB_ACTIONS", "true")
	assert.True(t, DetectCI())
}

func TestNopRenderer(t *testing.T) {
	var r Renderer = NopRenderer{}
	require.NoError(t, r.Start(context.Background()))
	r.UpdateProgress(ProgressEvent{Stage: StageScanning})
	r.AddError(ErrorEvent{})
	r.Complete(CompletionStats{})
	require.NoError(t, r.Stop())
}
