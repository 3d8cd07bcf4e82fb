package cmd

import (
	"context"

	"github.com/kyleking/timesheet-sql/internal/config"
	"github.com/kyleking/timesheet-sql/internal/embedding"
	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
	"github.com/kyleking/timesheet-sql/internal/logging"
	"github.com/kyleking/timesheet-sql/internal/nameindex"
	"github.com/kyleking/timesheet-sql/internal/query"
	"github.com/kyleking/timesheet-sql/internal/schema"
	"github.com/kyleking/timesheet-sql/internal/storage"
)

// openStore opens the configured database and applies metadata migrations
func openStore(ctx context.Context, cfg *config.Config) (*storage.DuckDBStore, error) {
	store, err := storage.NewDuckDBStoreFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.Initialize(ctx); err != nil {
		store.Close()
		return nil, err
	}

	return store, nil
}

// engine holds everything needed to answer questions against one store
type engine struct {
	cfg        *config.Config
	logger     *logging.Logger
	store      storage.Store
	catalog    *schema.Catalog
	roles      schema.Roles
	embedder   embedding.Provider
	names      *nameindex.Holder
	translator *query.Translator
	loaded     bool
}

// newEngine reads the catalog and builds the name indexes from store. Without
// loaded data it falls back to the built-in timesheet columns and leaves names
// unresolved.
func newEngine(ctx context.Context, cfg *config.Config, store storage.Store, logger *logging.Logger) (*engine, error) {
	e := &engine{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		catalog: schema.Timesheet(),
		roles:   schema.TimesheetRoles(),
		names:   nameindex.NewHolder(nameindex.NewSet(nil)),
	}

	exists, err := store.TableExists(ctx)
	if err != nil {
		return nil, err
	}

	e.loaded = exists

	if exists {
		if e.catalog, err = store.Catalog(ctx); err != nil {
			return nil, err
		}
	} else {
		logger.Warnf("Table %s is not loaded; names will not be matched", cfg.Database.Table)
	}

	logger.Debugf("Using a catalog of %d columns for table %s", e.catalog.Len(), cfg.Database.Table)

	if err := e.roles.Validate(e.catalog); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeValidation, "loaded table does not look like a timesheet export").
			WithSuggestion("Load a CSV with the standard timesheet header")
	}

	if e.embedder, err = embedding.FromConfig(cfg, logger); err != nil {
		return nil, err
	}

	if exists {
		if _, err := e.reindex(ctx); err != nil {
			return nil, err
		}
	}

	parser, err := query.NewParser(schema.NewResolver(e.catalog, schema.TimesheetKeywords()), e.roles, e.names, logger)
	if err != nil {
		return nil, err
	}

	builder, err := query.NewBuilder(e.catalog, e.roles, cfg.Database.Table)
	if err != nil {
		return nil, err
	}

	e.translator = query.NewTranslator(parser, builder, logger)

	return e, nil
}

// reindex rebuilds the name indexes from the store and publishes them
func (e *engine) reindex(ctx context.Context) (*nameindex.Set, error) {
	set, err := nameindex.Load(ctx, e.store, e.embedder, map[nameindex.Entity]string{
		nameindex.EntityProject:  e.roles.ProjectName,
		nameindex.EntityResource: e.roles.ResourceName,
	}, e.cfg.Resolver.Threshold, e.logger)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeEmbedding, "failed to build name indexes")
	}

	e.names.Swap(set)

	return set, nil
}

func (e *engine) translate(ctx context.Context, question string) (*query.Translation, error) {
	return e.translator.Translate(ctx, question)
}

func (e *engine) resolve(ctx context.Context, entity nameindex.Entity, name string) (nameindex.Match, error) {
	return e.names.Load().Nearest(ctx, entity, name)
}
