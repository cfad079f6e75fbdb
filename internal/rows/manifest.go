package rows

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const manifestVersion = 1

// Manifest is the on-disk form of a row table, written next to the scan
// data so reconciled timing survives between CLI invocations.
type Manifest struct {
	Version int    `yaml:"version"`
	Root    string `yaml:"root"`
	Kind    Kind   `yaml:"kind"`
	Rows    []Row  `yaml:"rows"`
}

// ManifestPath returns the default manifest location for a scan root.
func ManifestPath(root string) string {
	return filepath.Join(root, "_io", "rows.yaml")
}

// ReadManifest decodes a manifest file. Every row must satisfy the
// working-range invariant.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var manifest Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if manifest.Version != manifestVersion {
		return Manifest{}, fmt.Errorf("manifest %s: unsupported version %d", path, manifest.Version)
	}
	for i, row := range manifest.Rows {
		if err := row.CheckInvariant(); err != nil {
			return Manifest{}, fmt.Errorf("manifest %s row %d: %w", path, i, err)
		}
	}
	return manifest, nil
}

// WriteManifest stores rows atomically at path.
func WriteManifest(path string, manifest Manifest) error {
	manifest.Version = manifestVersion
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(manifest); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
