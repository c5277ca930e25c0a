// Package bundle exports a list of queries to a bundle directory and loads it
// back into a fresh engine and cache.
//
// Create classifies every query descriptor and writes one artifact per
// materialized table or cached result, followed by the manifest. Load installs
// the cached results and recreates the tables as temporary tables.
package bundle

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/nickyhof/DuckServe"
	"github.com/nickyhof/DuckServe/core"
	"github.com/nickyhof/DuckServe/ps"
	"github.com/nickyhof/DuckServe/sql"
)

// Options enables the optional bundle backends.
type Options struct {
	// History, when set, records every created bundle as a Git commit.
	History *ps.History
	// Remote, when set, mirrors created bundles and serves missing ones.
	Remote *ps.Remote
	// Identity authors history commits.
	Identity core.Identity
}

// Bundler creates and loads bundles below a root directory.
type Bundler struct {
	instance *DuckServe.Instance
	root     string
	opts     Options
	log      logrus.FieldLogger
}

func New(instance *DuckServe.Instance, root string, opts Options, log logrus.FieldLogger) *Bundler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bundler{
		instance: instance,
		root:     root,
		opts:     opts,
		log:      log,
	}
}

// Create exports queries, in order, into the bundle called name.
func (b *Bundler) Create(ctx context.Context, name string, queries []core.QueryDescriptor) (core.Manifest, error) {
	bundle, err := ps.OpenBundle(b.root, name)
	if err != nil {
		return core.Manifest{}, err
	}
	if err := bundle.Ensure(); err != nil {
		return core.Manifest{}, err
	}

	manifest := core.NewManifest()
	for i, query := range queries {
		if err := b.export(ctx, bundle, query, &manifest); err != nil {
			return core.Manifest{}, fmt.Errorf("query %d: %w", i, err)
		}
	}

	if err := bundle.WriteManifest(manifest); err != nil {
		return core.Manifest{}, err
	}

	log := b.log.WithFields(logrus.Fields{
		"bundle":  bundle.Name,
		"tables":  len(manifest.Tables),
		"queries": len(manifest.Queries),
	})

	if b.opts.History != nil {
		txn, err := b.opts.History.Record(bundle, manifest, b.opts.Identity)
		if err != nil {
			return core.Manifest{}, err
		}
		log = log.WithField("commit", txn.Id)
	}

	if b.opts.Remote != nil {
		if err := b.opts.Remote.Push(ctx, bundle, manifest); err != nil {
			return core.Manifest{}, err
		}
		log = log.WithField("remote", b.opts.Remote.String())
	}

	log.Info("Created bundle")
	return manifest, nil
}

// export handles one descriptor. Precedence: alias, CREATE VIEW, CREATE TABLE,
// other CREATE, PRAGMA, then ordinary query.
func (b *Bundler) export(ctx context.Context, bundle ps.Bundle, query core.QueryDescriptor, manifest *core.Manifest) error {
	if query.Alias != "" {
		if !sql.IsIdentifier(query.Alias) {
			return core.New(core.DecodeError, fmt.Sprintf("invalid alias %q", query.Alias))
		}
		statement := fmt.Sprintf("COPY (%s) TO %s (FORMAT PARQUET)", query.SQL, sql.QuoteLiteral(bundle.TablePath(query.Alias)))
		if err := b.instance.Exec(ctx, statement); err != nil {
			return err
		}
		manifest.AddTable(query.Alias)
		return nil
	}

	classification := sql.Classify(query.SQL)
	log := b.log.WithFields(logrus.Fields{"bundle": bundle.Name, "kind": classification.Kind.String()})

	switch classification.Kind {
	case sql.CreateViewStatement, sql.UnsupportedCreateStatement, sql.PragmaStatement:
		log.Debug("Skipping statement")
		return nil

	case sql.CreateTableStatement:
		if err := b.instance.Exec(ctx, query.SQL); err != nil {
			return err
		}
		statement := fmt.Sprintf("COPY %s TO %s (FORMAT PARQUET)", classification.Table, sql.QuoteLiteral(bundle.TablePath(classification.Table)))
		if err := b.instance.Exec(ctx, statement); err != nil {
			return err
		}
		manifest.AddTable(classification.Table)
		return nil

	default:
		format := core.ArrowFormat
		if classification.Kind == sql.DescribeStatement {
			format = core.JSONFormat
		}
		key := core.KeyFor(query.SQL, format)

		data, err := b.instance.Retrieve(ctx, query.SQL, format, true)
		if err != nil {
			return err
		}
		if err := bundle.WriteFile(string(key), data); err != nil {
			return err
		}
		manifest.AddQuery(key)
		return nil
	}
}

// Load installs every cached result of the bundle called name in place of the
// current cache contents and recreates its tables. A bundle missing locally is
// fetched from the remote first when one is configured. The cache is left
// untouched when any artifact or table fails to load.
func (b *Bundler) Load(ctx context.Context, name string) (core.Manifest, error) {
	bundle, err := ps.OpenBundle(b.root, name)
	if err != nil {
		return core.Manifest{}, err
	}

	if !bundle.Exists() && b.opts.Remote != nil {
		b.log.WithFields(logrus.Fields{"bundle": name, "remote": b.opts.Remote.String()}).Info("Fetching bundle from remote")
		if _, err := b.opts.Remote.Pull(ctx, bundle); err != nil {
			return core.Manifest{}, err
		}
	}

	manifest, err := bundle.ReadManifest()
	if err != nil {
		return core.Manifest{}, err
	}

	results := make(map[core.CacheKey][]byte, len(manifest.Queries))
	for _, key := range manifest.Queries {
		data, err := readResult(bundle, key)
		if err != nil {
			return core.Manifest{}, err
		}
		results[key] = data
	}

	for _, table := range manifest.Tables {
		statement := fmt.Sprintf("CREATE TEMP TABLE IF NOT EXISTS %s AS SELECT * FROM %s", table, sql.QuoteLiteral(bundle.TablePath(table)))
		if err := b.instance.Exec(ctx, statement); err != nil {
			return core.Manifest{}, err
		}
	}

	b.instance.Cache.Reset()
	for _, key := range manifest.Queries {
		b.instance.Cache.Put(key, results[key])
	}

	b.log.WithFields(logrus.Fields{
		"bundle":  bundle.Name,
		"tables":  len(manifest.Tables),
		"queries": len(manifest.Queries),
	}).Info("Loaded bundle")
	return manifest, nil
}

// readResult reads the artifact stored for key and checks it against the
// format the key names.
func readResult(bundle ps.Bundle, key core.CacheKey) ([]byte, error) {
	data, err := bundle.ReadFile(string(key))
	if err != nil {
		return nil, err
	}

	format, err := key.Format()
	if err != nil {
		return nil, core.Wrap(core.FilesystemError, "", err)
	}
	if format == core.JSONFormat && !json.Valid(data) {
		return nil, core.New(core.FilesystemError, fmt.Sprintf("invalid json in %s", key))
	}
	return data, nil
}
