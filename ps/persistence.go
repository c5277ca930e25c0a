package ps

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"

	"github.com/nickyhof/DuckServe/core"
	"github.com/nickyhof/DuckServe/sql"
)

// ManifestFile is the name of the manifest inside a bundle directory.
const ManifestFile = "bundle.json"

var (
	ErrInvalidBundleName = errors.New("invalid bundle name")
	ErrBundleNotFound    = errors.New("bundle not found")
)

var bundleNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Bundle is one named bundle directory.
type Bundle struct {
	Name string
	Dir  string
}

// OpenBundle resolves the bundle called name under root. The directory is not
// required to exist.
func OpenBundle(root, name string) (Bundle, error) {
	if !bundleNamePattern.MatchString(name) || name == "." || name == ".." {
		return Bundle{}, core.Wrap(core.FilesystemError, fmt.Sprintf("bundle %q", name), ErrInvalidBundleName)
	}

	return Bundle{
		Name: name,
		Dir:  filepath.Join(root, name),
	}, nil
}

// Ensure creates the bundle directory if it does not exist.
func (b Bundle) Ensure() error {
	if err := os.MkdirAll(b.Dir, 0755); err != nil {
		return core.Wrap(core.FilesystemError, "failed to create bundle directory", err)
	}
	return nil
}

// Exists reports whether the bundle has a manifest.
func (b Bundle) Exists() bool {
	_, err := os.Stat(b.Path(ManifestFile))
	return err == nil
}

// Path returns the path of file inside the bundle.
func (b Bundle) Path(file string) string {
	return filepath.Join(b.Dir, file)
}

// TableFile returns the Parquet file name of a materialized table.
func TableFile(table string) string {
	return table + ".parquet"
}

// TablePath returns the Parquet path of a materialized table.
func (b Bundle) TablePath(table string) string {
	return b.Path(TableFile(table))
}

// WriteFile atomically replaces file inside the bundle.
func (b Bundle) WriteFile(file string, data []byte) error {
	if err := renameio.WriteFile(b.Path(file), data, 0644); err != nil {
		return core.Wrap(core.FilesystemError, fmt.Sprintf("failed to write %s", file), err)
	}
	return nil
}

// ReadFile reads file from the bundle.
func (b Bundle) ReadFile(file string) ([]byte, error) {
	data, err := os.ReadFile(b.Path(file))
	if err != nil {
		return nil, core.Wrap(core.FilesystemError, fmt.Sprintf("failed to read %s", file), err)
	}
	return data, nil
}

// WriteManifest stores the manifest as indented JSON.
func (b Bundle) WriteManifest(manifest core.Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return core.Wrap(core.FilesystemError, "failed to marshal manifest", err)
	}
	return b.WriteFile(ManifestFile, data)
}

// ReadManifest loads and validates the manifest.
func (b Bundle) ReadManifest() (core.Manifest, error) {
	data, err := os.ReadFile(b.Path(ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return core.Manifest{}, core.Wrap(core.FilesystemError, fmt.Sprintf("bundle %q", b.Name), ErrBundleNotFound)
	}
	if err != nil {
		return core.Manifest{}, core.Wrap(core.FilesystemError, "failed to read manifest", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes a manifest and rejects entries that are not safe to
// use as file or table names.
func ParseManifest(data []byte) (core.Manifest, error) {
	var raw struct {
		Tables  []string `json:"tables"`
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.Manifest{}, core.Wrap(core.FilesystemError, "invalid manifest", err)
	}

	manifest := core.NewManifest()
	for _, table := range raw.Tables {
		if !sql.IsIdentifier(table) {
			return core.Manifest{}, core.New(core.FilesystemError, fmt.Sprintf("invalid manifest: bad table name %q", table))
		}
		manifest.AddTable(table)
	}
	for _, query := range raw.Queries {
		key, err := core.ParseCacheKey(query)
		if err != nil {
			return core.Manifest{}, core.Wrap(core.FilesystemError, "invalid manifest", err)
		}
		manifest.AddQuery(key)
	}
	return manifest, nil
}

// Files lists every file the manifest refers to, manifest excluded.
func Files(manifest core.Manifest) []string {
	files := make([]string, 0, len(manifest.Tables)+len(manifest.Queries))
	for _, table := range manifest.Tables {
		files = append(files, TableFile(table))
	}
	for _, key := range manifest.Queries {
		files = append(files, string(key))
	}
	return files
}
