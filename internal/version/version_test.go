package version

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentTrimsAndDefaults(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "  "
	assert.Equal(t, "dev", Current().Version)
	Version = " 1.2.3 "
	assert.Equal(t, "1.2.3", Current().Version)
}

func TestWritePretty(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	WritePretty(&buf, Info{Version: "1.2.3-rc1", GitCommit: "abc"}, Fields{Hash: true, Date: true})
	assert.Equal(t, "arendls 1.2.3-rc1: an Arend language server\ncommit: abc\nbuilt:  unknown\n", buf.String())
}

func TestColorizeKeepsNonSemver(t *testing.T) {
	assert.Equal(t, "nightly", colorize("nightly"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Info{Version: "1.0.0", BuildDate: "2026-01-02"}, Fields{Date: true}))
	var got map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, map[string]string{
		"tool":       "arendls",
		"version":    "1.0.0",
		"build_date": "2026-01-02",
	}, got)
}
