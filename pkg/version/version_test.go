package version

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, GitCommit, info.GitCommit)
	assert.Equal(t, BuildTime, info.BuildTime)
	assert.Equal(t, SchemaVersion, info.SchemaVersion)
	assert.Equal(t, PersistenceVersion, info.PersistenceVersion)
	assert.Contains(t, info.GoVersion, "go")
}

func TestInfo_String(t *testing.T) {
	info := Info{
		Version:       "1.0.0",
		GitCommit:     "abc123",
		BuildTime:     "Sun Oct 18 09:34:29 AM UTC 2026",
		GoVersion:     "go1.25.1",
		SchemaVersion: "1.0",
	}

	expected := "Version: 1.0.0, GitCommit: abc123, BuildTime: Sun Oct 18 09:34:29 AM UTC 2026, GoVersion: go1.25.1, Schema: 1.0"
	assert.Equal(t, expected, info.String())
}

func TestInfo_JSON(t *testing.T) {
	info := Get()

	out, err := info.JSON()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "{\n  \""))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, info.Version, decoded["version"])
	assert.Equal(t, info.GitCommit, decoded["gitCommit"])
	assert.Equal(t, "1.0", decoded["schemaVersion"])
}

func TestPersistedBy(t *testing.T) {
	assert.Equal(t, "HeadElf-GitPersistence", PersistedBy)
}
