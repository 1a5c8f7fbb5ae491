package persistence

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/headelf/headelf/pkg/logger"
	"github.com/headelf/headelf/pkg/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const defaultExtensionVersion = "main"

// ExtensionName derives the manifest key from a repository URL: the final
// path segment without a trailing ".git". scp-style URLs
// (git@host:org/repo.git) are handled as well.
func ExtensionName(repository string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(repository), "/")
	if i := strings.LastIndexAny(trimmed, "/:"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return strings.TrimSuffix(path.Base(trimmed), ".git")
}

// RegisterExtension clones repository into the extensions directory, or
// pulls it if already present, optionally checks out version, and records
// it in the manifest. Any failure is logged and reported as false; the
// manifest is only written once the checkout is in place.
func (s *Store) RegisterExtension(ctx context.Context, repository, version string) bool {
	name := ExtensionName(repository)
	ctx = logger.WithFields(ctx, map[string]any{"extension": name, "repository": repository})

	err := telemetry.WithSpan(ctx, "persistence.register_extension", func(ctx context.Context) error {
		if err := validateSegment("extension name", name); err != nil {
			return err
		}
		if name == "manifest.json" {
			return errors.Errorf("invalid extension name %q", name)
		}

		dest := filepath.Join(s.paths.Extensions, name)
		if _, err := os.Stat(dest); err == nil {
			if err := s.fetcher.Pull(ctx, dest); err != nil {
				return vcsError("update extension", err)
			}
		} else if os.IsNotExist(err) {
			if err := s.fetcher.Clone(ctx, repository, dest); err != nil {
				return vcsError("clone extension", err)
			}
		} else {
			return fsError("stat", dest, err)
		}

		if version != "" {
			if err := s.fetcher.Checkout(ctx, dest, version); err != nil {
				return vcsError("checkout "+version, err)
			}
		}

		manifest, err := s.readManifest()
		if err != nil {
			return err
		}

		entryVersion := version
		if entryVersion == "" {
			entryVersion = defaultExtensionVersion
		}
		manifest[name] = ExtensionManifestEntry{
			Repository:  repository,
			Version:     entryVersion,
			InstalledAt: formatTimestamp(s.now()),
			Path:        dest,
		}

		if err := writeJSON(s.paths.Manifest, manifest); err != nil {
			return err
		}

		s.audit(ctx, []string{s.paths.Manifest}, "Register extension: "+name)
		return nil
	}, attribute.String("extension.name", name))
	if err != nil {
		logger.G(ctx).WithError(err).Warn("extension registration failed")
		return false
	}
	return true
}

// GetInstalledExtensions returns the manifest keyed by extension name. An
// absent or undecodable manifest yields an empty map.
func (s *Store) GetInstalledExtensions(ctx context.Context) (map[string]ExtensionManifestEntry, error) {
	manifest, err := s.readManifest()
	if err != nil {
		if IsKind(err, KindMalformedRecord) {
			logger.G(ctx).WithError(err).Warn("failed to read extensions manifest")
			return map[string]ExtensionManifestEntry{}, nil
		}
		return nil, err
	}
	return manifest, nil
}

func (s *Store) readManifest() (map[string]ExtensionManifestEntry, error) {
	manifest := map[string]ExtensionManifestEntry{}
	if err := readJSON(s.paths.Manifest, &manifest); err != nil {
		if os.IsNotExist(err) {
			return map[string]ExtensionManifestEntry{}, nil
		}
		return nil, err
	}
	if manifest == nil {
		manifest = map[string]ExtensionManifestEntry{}
	}
	return manifest, nil
}
