package DuckServe

import (
	"context"

	"github.com/nickyhof/DuckServe/cache"
	"github.com/nickyhof/DuckServe/core"
	"github.com/nickyhof/DuckServe/db"
)

// Engine is the SQL engine capability the server depends on.
type Engine interface {
	Exec(ctx context.Context, statement string) error
	Query(ctx context.Context, statement string) (db.Table, error)
}

// Instance is the server-wide state shared by every connection: one engine
// and one result cache.
type Instance struct {
	Engine Engine
	Cache  *cache.Cache
}

func Open(engine Engine) *Instance {
	return &Instance{
		Engine: engine,
		Cache:  cache.New(),
	}
}

// Exec runs a statement that produces no result.
func (instance *Instance) Exec(ctx context.Context, statement string) error {
	return instance.Engine.Exec(ctx, statement)
}

// Retrieve returns the serialized result of sql in format, served from the
// cache when present. A computed result is cached only when persist is set.
func (instance *Instance) Retrieve(ctx context.Context, sql string, format core.Format, persist bool) ([]byte, error) {
	return instance.Cache.Retrieve(sql, format, func(sql string) ([]byte, error) {
		table, err := instance.Engine.Query(ctx, sql)
		if err != nil {
			return nil, err
		}
		return db.Encode(table, format)
	}, persist)
}
