package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/tutor/internal/answer"
	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
	"github.com/Aman-CERP/tutor/internal/retrieve"
)

func indexedProject(t *testing.T) string {
	t.Helper()
	dir := newProject(t)
	addBook(t, dir, "biology.txt", "Photosynthesis happens in chloroplasts where chlorophyll absorbs light energy")
	addBook(t, dir, "rivers.md", "Rivers carve valleys and deposit sediment in deltas")
	_, err := runCLI(t, dir, "index", "--no-tui", "--skip-check")
	require.NoError(t, err)
	return dir
}

func TestSearchCmd_RequiresIndex(t *testing.T) {
	dir := newProject(t)

	_, err := runCLI(t, dir, "search", "osmosis")

	assert.ErrorIs(t, err, tutorerrors.ErrNoIndex)
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	dir := newProject(t)

	_, err := runCLI(t, dir, "search")

	assert.Error(t, err)
}

func TestSearchCmd_JSON(t *testing.T) {
	dir := indexedProject(t)

	out, err := runCLI(t, dir, "search", "--json", "--top-k", "2", "chlorophyll", "absorbs", "light")

	require.NoError(t, err)
	var res retrieve.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.Chunks)
	assert.LessOrEqual(t, len(res.Chunks), 2)
	assert.Equal(t, 1, res.Chunks[0].Rank)
	assert.NotEmpty(t, res.BuildID)
}

func TestSearchCmd_Text(t *testing.T) {
	dir := indexedProject(t)

	out, err := runCLI(t, dir, "search", "rivers")

	require.NoError(t, err)
	assert.Contains(t, out, "#1  ")
}

func TestAskCmd_WithoutGeneratorPrintsPassages(t *testing.T) {
	dir := indexedProject(t)

	out, err := runCLI(t, dir, "ask", "What", "absorbs", "light?")

	require.NoError(t, err)
	assert.Contains(t, out, "Relevant passages")
	assert.Contains(t, out, "Sources")
}

func TestAskCmd_JSON(t *testing.T) {
	dir := indexedProject(t)

	out, err := runCLI(t, dir, "ask", "--json", "What carves valleys?")

	require.NoError(t, err)
	var ans answer.Answer
	require.NoError(t, json.Unmarshal([]byte(out), &ans))
	assert.Equal(t, "What carves valleys?", ans.Question)
	assert.True(t, ans.Found)
	assert.False(t, ans.Generated)
}

func TestAskCmd_EmptyIndexIsAnError(t *testing.T) {
	dir := newProject(t)

	_, err := runCLI(t, dir, "ask", "anything")

	assert.ErrorIs(t, err, tutorerrors.ErrNoIndex)
}
