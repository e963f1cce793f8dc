package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusgen/internal/status"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "statusgen dev\n", out)
}

func TestNamesCommand(t *testing.T) {
	out, err := execute(t, "names", "--count", "5", "--type", "creole", "--seed", "3")
	require.NoError(t, err)

	var resp struct {
		Names []status.Viewer `json:"names"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Names, 5)
	for _, v := range resp.Names {
		assert.Contains(t, status.Names("creole"), v.Name)
	}
}

func TestNamesCommandRejectsBadInput(t *testing.T) {
	_, err := execute(t, "names", "--count", "0")
	assert.Error(t, err)
	_, err = execute(t, "names", "--type", "klingon")
	assert.Error(t, err)
}

func TestLoadState(t *testing.T) {
	state, err := loadState("")
	require.NoError(t, err)
	assert.Equal(t, status.DefaultState(), state)

	path := filepath.Join(t.TempDir(), "status.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`config:
  viewCount: 42
  statusText: "Salut"
  backgroundType: gradient-3
viewers:
  - name: Ti Jak
    hasReacted: true
    reaction: "🔥"
`), 0o644))
	state, err = loadState(path)
	require.NoError(t, err)
	assert.Equal(t, 42, state.Config.ViewCount)
	assert.Equal(t, "Salut", state.Config.StatusText)
	assert.Equal(t, "gradient-3", state.Config.BackgroundType)
	assert.Equal(t, status.TypeText, state.Config.StatusType)
	require.Len(t, state.Viewers, 1)
	assert.Equal(t, "Ti Jak", state.Viewers[0].Name)

	require.NoError(t, os.WriteFile(path, []byte("config:\n  viewCount: -1\n"), 0o644))
	_, err = loadState(path)
	assert.ErrorIs(t, err, status.ErrInvalidConfig)
}

func TestExportCommandHTML(t *testing.T) {
	chdir(t, t.TempDir())
	out := t.TempDir()
	stdout, err := execute(t, "export", "--format", "html", "--out", out)
	require.NoError(t, err)

	name := strings.TrimSpace(stdout)
	assert.True(t, strings.HasPrefix(name, "whatsapp-status-"))
	data, err := os.ReadFile(filepath.Join(out, name))
	require.NoError(t, err)
	assert.Contains(t, string(data), `data-testid="whatsapp-simulator"`)
	assert.Contains(t, string(data), "Marie Dubois")
}

func TestExportCommandRejectsFormat(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := execute(t, "export", "--format", "gif", "--out", t.TempDir())
	assert.Error(t, err)
}
