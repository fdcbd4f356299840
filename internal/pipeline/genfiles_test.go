package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseGeneratedFiles_MultipleFiles(t *testing.T) {
	text := "Here are the files.\n" +
		"FILE: src/auth.js\n" +
		"```js\n" +
		"export function login() {}\n" +
		"```\n" +
		"Some notes in between.\n" +
		"FILE: src/auth.test.js\n" +
		"\n" +
		"```\n" +
		"test('login', () => {});\n" +
		"```\n"

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	files, err := ParseGeneratedFiles(text, now)
	require.NoError(t, err)
	require.Len(t, files, 2)

	require.Equal(t, "src/auth.js", files[0].Path)
	require.Equal(t, "export function login() {}", files[0].Content)
	require.True(t, files[0].Generated)
	require.Equal(t, now, files[0].Timestamp)

	require.Equal(t, "src/auth.test.js", files[1].Path)
	require.Equal(t, "test('login', () => {});", files[1].Content)
}

func TestParseGeneratedFiles_BacktickedPath(t *testing.T) {
	text := "FILE: `Dockerfile`\n```\nFROM node:20\n```\n"
	files, err := ParseGeneratedFiles(text, time.Now())
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "Dockerfile", files[0].Path)
}

func TestParseGeneratedFiles_NoFiles(t *testing.T) {
	_, err := ParseGeneratedFiles("I could not produce any files, sorry.", time.Now())
	require.ErrorIs(t, err, ErrNoFiles)
}

func TestParseGeneratedFiles_MarkerWithoutFence(t *testing.T) {
	text := "FILE: src/a.js\nno fence here\n"
	_, err := ParseGeneratedFiles(text, time.Now())
	var mErr *MalformedMarkerError
	require.ErrorAs(t, err, &mErr)
	require.Equal(t, 1, mErr.Line)
}

func TestParseGeneratedFiles_UnterminatedFence(t *testing.T) {
	text := "FILE: src/a.js\n```\nconst a = 1;\n"
	_, err := ParseGeneratedFiles(text, time.Now())
	var mErr *MalformedMarkerError
	require.ErrorAs(t, err, &mErr)
}

func TestParseGeneratedFiles_EmptyBody(t *testing.T) {
	files, err := ParseGeneratedFiles("FILE: .gitkeep\n```\n```\n", time.Now())
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "", files[0].Content)
}

func TestMalformedMarkerError_NotNoFiles(t *testing.T) {
	_, err := ParseGeneratedFiles("FILE: x\ntext", time.Now())
	require.False(t, errors.Is(err, ErrNoFiles), "malformed marker must be distinct from no-files")
}
