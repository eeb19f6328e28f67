package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest describes one deployable version of the site: its version tag,
// the document served when offline, and the assets cached on install.
type Manifest struct {
	Version      string   `yaml:"version"`
	RootDocument string   `yaml:"root_document"`
	Assets       []string `yaml:"assets"`
}

// CriticalAssets are cached on install when no manifest file is given.
var CriticalAssets = []string{
	"/",
	"/index.html",
	"/assets/css/style.css",
	"/assets/css/fonts.css",
	"/assets/vendor/bootstrap/css/bootstrap.min.css",
	"/assets/vendor/bootstrap-icons/bootstrap-icons.css",
	"/assets/img/profile-img2.JPG",
	"/assets/img/hero-bg5.png",
	"/assets/img/favicon.png",
	"/assets/fonts/open-sans/Regular.woff2",
	"/assets/fonts/raleway/Regular.woff2",
	"/assets/fonts/poppins/Regular.woff2",
}

// Manifest returns the manifest for this configuration: the built-in
// critical assets, overridden by the manifest file when one is set.
func (c Config) Manifest() (Manifest, error) {
	m := Manifest{
		Version:      c.Version,
		RootDocument: c.RootDocument,
		Assets:       append([]string(nil), CriticalAssets...),
	}
	if c.ManifestFile == "" {
		return m, m.Validate()
	}

	f, err := LoadManifest(c.ManifestFile)
	if err != nil {
		return Manifest{}, err
	}
	if f.Version != "" {
		m.Version = f.Version
	}
	if f.RootDocument != "" {
		m.RootDocument = f.RootDocument
	}
	if f.Assets != nil {
		m.Assets = f.Assets
	}
	return m, m.Validate()
}

// LoadManifest reads a YAML manifest file. Unknown keys are rejected.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}

// Validate checks that the manifest can be installed: every asset is an
// absolute path and appears once.
func (m Manifest) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("manifest version is required")
	}
	if !strings.HasPrefix(m.RootDocument, "/") {
		return fmt.Errorf("root document must be an absolute path (got %q)", m.RootDocument)
	}
	seen := make(map[string]bool, len(m.Assets))
	for _, a := range m.Assets {
		if !strings.HasPrefix(a, "/") || strings.HasPrefix(a, "//") {
			return fmt.Errorf("asset %q must be an absolute path", a)
		}
		if seen[a] {
			return fmt.Errorf("duplicate asset %q", a)
		}
		seen[a] = true
	}
	return nil
}
