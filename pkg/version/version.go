// Package version carries build metadata for the headelf binary and the
// schema identifiers stamped into every persisted decision record.
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
)

const (
	// SystemName is the product name used in commit messages and metadata.
	SystemName = "HeadElf"

	// PersistedBy identifies this persistence layer inside decision records.
	PersistedBy = SystemName + "-GitPersistence"

	// PersistenceVersion is the version of the on-disk persistence layout.
	PersistenceVersion = "1.0"

	// SchemaVersion is the version of the decision record schema.
	SchemaVersion = "1.0"
)

var (
	// Version is set during the build process from VERSION.txt
	Version = "dev"

	// GitCommit is the git commit SHA that was built
	GitCommit = "unknown"

	// BuildTime is the time the binary was built
	BuildTime = "unknown"
)

// Info represents version information
type Info struct {
	Version            string `json:"version"`
	GitCommit          string `json:"gitCommit"`
	BuildTime          string `json:"buildTime"`
	GoVersion          string `json:"goVersion"`
	PersistenceVersion string `json:"persistenceVersion"`
	SchemaVersion      string `json:"schemaVersion"`
}

// Get returns the version information
func Get() Info {
	return Info{
		Version:            Version,
		GitCommit:          GitCommit,
		BuildTime:          BuildTime,
		GoVersion:          runtime.Version(),
		PersistenceVersion: PersistenceVersion,
		SchemaVersion:      SchemaVersion,
	}
}

// String returns the string representation of version info
func (i Info) String() string {
	return fmt.Sprintf("Version: %s, GitCommit: %s, BuildTime: %s, GoVersion: %s, Schema: %s",
		i.Version, i.GitCommit, i.BuildTime, i.GoVersion, i.SchemaVersion)
}

// JSON returns the JSON representation of version info
func (i Info) JSON() (string, error) {
	bytes, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
