package nameindex

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kyleking/timesheet-sql/internal/embedding"
	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
	"github.com/kyleking/timesheet-sql/internal/logging"
)

// Entity names the kind of value an index holds
type Entity string

const (
	EntityProject  Entity = "project"
	EntityResource Entity = "resource"
)

// ParseEntity accepts the entity names used on the command line
func ParseEntity(s string) (Entity, error) {
	switch Entity(s) {
	case EntityProject, EntityResource:
		return Entity(s), nil
	default:
		return "", apperrors.Newf(apperrors.ErrTypeValidation, "unknown entity %q", s).
			WithSuggestion("Use one of: project, resource")
	}
}

// Set is an immutable group of indexes, one per entity
type Set struct {
	indexes map[Entity]*Index
}

// NewSet groups already built indexes
func NewSet(indexes map[Entity]*Index) *Set {
	s := &Set{indexes: make(map[Entity]*Index, len(indexes))}
	for e, ix := range indexes {
		s.indexes[e] = ix
	}

	return s
}

// Index returns the index for e
func (s *Set) Index(e Entity) (*Index, bool) {
	if s == nil {
		return nil, false
	}

	ix, ok := s.indexes[e]

	return ix, ok
}

// Entities lists the indexed entities in name order
func (s *Set) Entities() []Entity {
	if s == nil {
		return nil
	}

	out := make([]Entity, 0, len(s.indexes))
	for e := range s.indexes {
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Nearest looks query up in the index for e. A missing index passes the
// query through with a zero score.
func (s *Set) Nearest(ctx context.Context, e Entity, query string) (Match, error) {
	ix, ok := s.Index(e)
	if !ok {
		return Match{Query: query}, nil
	}

	return ix.Nearest(ctx, query)
}

// BuildSet builds one index per entity concurrently
func BuildSet(ctx context.Context, embedder embedding.Provider, names map[Entity][]string, threshold float64) (*Set, error) {
	var mu sync.Mutex

	built := make(map[Entity]*Index, len(names))

	g, gctx := errgroup.WithContext(ctx)

	for entity, values := range names {
		g.Go(func() error {
			ix, err := Build(gctx, embedder, values, threshold)
			if err != nil {
				return apperrors.Wrapf(err, apperrors.ErrTypeEmbedding, "failed to build %s index", entity)
			}

			mu.Lock()
			built[entity] = ix
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Set{indexes: built}, nil
}

// NameSource supplies the distinct values of a column
type NameSource interface {
	DistinctValues(ctx context.Context, column string) ([]string, error)
}

// Load reads the distinct values of each entity's column from source and
// builds the set
func Load(
	ctx context.Context,
	source NameSource,
	embedder embedding.Provider,
	columns map[Entity]string,
	threshold float64,
	logger *logging.Logger,
) (*Set, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	var mu sync.Mutex

	names := make(map[Entity][]string, len(columns))

	g, gctx := errgroup.WithContext(ctx)

	for entity, column := range columns {
		g.Go(func() error {
			values, err := source.DistinctValues(gctx, column)
			if err != nil {
				return err
			}

			mu.Lock()
			names[entity] = values
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var set *Set

	err := logging.Timed(logger.WithField("provider", embedder.GetName()), "build-name-indexes", func() error {
		var err error
		set, err = BuildSet(ctx, embedder, names, threshold)

		return err
	})
	if err != nil {
		return nil, err
	}

	for _, e := range set.Entities() {
		ix, _ := set.Index(e)
		logger.WithFields(map[string]any{"entity": string(e), "names": ix.Len()}).Debug("Name index ready")
	}

	return set, nil
}

// Holder publishes the current Set to concurrent readers. Swap replaces it
// atomically; readers holding the old Set keep a consistent view.
type Holder struct {
	current atomic.Pointer[Set]
}

// NewHolder creates a holder with an initial set, which may be nil
func NewHolder(initial *Set) *Holder {
	h := &Holder{}
	h.current.Store(initial)

	return h
}

// Load returns the current set
func (h *Holder) Load() *Set {
	return h.current.Load()
}

// Swap installs next and returns the previous set
func (h *Holder) Swap(next *Set) *Set {
	return h.current.Swap(next)
}
