// Package eagerload resolves declared relations for a set of parent rows in
// a bounded number of batched queries.
//
// A resolution parses a WithSpec into a plan of nodes, then for each plan
// level extracts distinct join keys from the parent rows, fetches related
// rows once per node (twice for junction relations, once per discriminator
// for polymorphic belongs-to) and attaches them under their aliases. Nested
// loads repeat the process with the attached rows as parents.
package eagerload

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/satishbabariya/prisma-go-relations/internal/debug"
	"github.com/satishbabariya/prisma-go-relations/query"
	"github.com/satishbabariya/prisma-go-relations/relation"
	"github.com/satishbabariya/prisma-go-relations/telemetry"
	"golang.org/x/sync/errgroup"
)

// DiscriminatorPolicy decides what happens to polymorphic rows whose type
// value has no registered target.
type DiscriminatorPolicy int

const (
	// DiscriminatorSkip attaches nil to such rows.
	DiscriminatorSkip DiscriminatorPolicy = iota
	// DiscriminatorError fails the resolution with an UnregisteredDiscriminatorError.
	DiscriminatorError
)

// String returns the policy name.
func (p DiscriminatorPolicy) String() string {
	if p == DiscriminatorError {
		return "error"
	}
	return "skip"
}

// ParseDiscriminatorPolicy parses "skip" or "error". An empty string is skip.
func ParseDiscriminatorPolicy(s string) (DiscriminatorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return DiscriminatorSkip, nil
	case "error":
		return DiscriminatorError, nil
	}
	return DiscriminatorSkip, fmt.Errorf("unknown discriminator policy %q (expected skip or error)", s)
}

// Resolver eager-loads relations from a registry against a source.
// It holds no per-call state and is safe for concurrent use.
type Resolver struct {
	registry    *relation.Registry
	source      query.Source
	concurrency int
	maxKeys     int
	policy      DiscriminatorPolicy
	metrics     telemetry.Recorder
	logger      *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithConcurrency fetches up to n sibling nodes of a plan level at once.
// The default of 1 is strictly sequential, which is safe for single-connection sources.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n < 1 {
			n = 1
		}
		r.concurrency = n
	}
}

// WithMaxKeysPerQuery splits key sets larger than n across several queries,
// for drivers with bind parameter limits. Each chunk counts as a query.
// Zero disables splitting.
func WithMaxKeysPerQuery(n int) Option {
	return func(r *Resolver) {
		if n < 0 {
			n = 0
		}
		r.maxKeys = n
	}
}

// WithDiscriminatorPolicy sets the policy for unregistered discriminator values.
func WithDiscriminatorPolicy(p DiscriminatorPolicy) Option {
	return func(r *Resolver) {
		r.policy = p
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Recorder) Option {
	return func(r *Resolver) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithLogger sets the logger. By default the debug logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New creates a resolver over reg and src.
func New(reg *relation.Registry, src query.Source, opts ...Option) *Resolver {
	r := &Resolver{
		registry:    reg,
		source:      src,
		concurrency: 1,
		metrics:     telemetry.Noop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats describes the queries issued by one resolution.
type Stats struct {
	// Queries is the total number of fetches dispatched to the source.
	Queries int
	// Nodes holds per-node counts ordered by path.
	Nodes []NodeStats
}

// NodeStats are the counts of one plan node. Path is the dotted alias path;
// polymorphic partitions appear as "alias[type]".
type NodeStats struct {
	Path    string
	Kind    relation.Kind
	Queries int
	Rows    int
}

// Plan parses spec against table without issuing queries.
func (r *Resolver) Plan(table string, spec WithSpec) ([]*Node, error) {
	return buildPlan(r.registry, table, spec)
}

// Resolve attaches the relations requested by spec to rows, which belong to
// table, and returns rows. On failure it returns nil and leaves rows untouched.
func (r *Resolver) Resolve(ctx context.Context, table string, rows []*query.Row, spec WithSpec) ([]*query.Row, error) {
	out, _, err := r.ResolveStats(ctx, table, rows, spec)
	return out, err
}

// ResolveStats is Resolve that also reports query statistics.
func (r *Resolver) ResolveStats(ctx context.Context, table string, rows []*query.Row, spec WithSpec) ([]*query.Row, Stats, error) {
	start := time.Now()
	logger := r.logger
	if logger == nil {
		logger = debug.Logger()
	}

	x := &run{
		resolver: r,
		journal:  &journal{},
		stats:    &statsCollector{nodes: make(map[string]*NodeStats)},
		log:      logger.With("resolve_id", uuid.NewString(), "table", table),
	}

	err := x.resolve(ctx, table, rows, spec)
	stats := x.stats.snapshot()
	r.metrics.ResolveCompleted(table, stats.Queries, time.Since(start), err)
	if err != nil {
		x.log.Debug("eagerload failed", "queries", stats.Queries, "error", err)
		return nil, stats, err
	}

	x.journal.commit()
	x.log.Debug("eagerload resolved", "parents", len(rows), "queries", stats.Queries, "duration", time.Since(start))
	return rows, stats, nil
}

// run is the state of one resolution.
type run struct {
	resolver *Resolver
	journal  *journal
	stats    *statsCollector
	log      *slog.Logger
}

func (x *run) resolve(ctx context.Context, table string, rows []*query.Row, spec WithSpec) error {
	nodes, err := x.resolver.Plan(table, spec)
	if err != nil {
		return err
	}
	parents := make([]*query.Row, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			parents = append(parents, r)
		}
	}
	return x.level(ctx, parents, nodes, "")
}

// level loads sibling nodes over the same parents, concurrently when configured.
func (x *run) level(ctx context.Context, parents []*query.Row, nodes []*Node, path string) error {
	if x.resolver.concurrency <= 1 || len(nodes) < 2 {
		for _, n := range nodes {
			if err := x.node(ctx, parents, n, path); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.resolver.concurrency)
	for _, n := range nodes {
		n := n
		g.Go(func() error {
			return x.node(gctx, parents, n, path)
		})
	}
	return g.Wait()
}

type statsCollector struct {
	mu      sync.Mutex
	queries int
	nodes   map[string]*NodeStats
}

func (s *statsCollector) touch(path string, kind relation.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[path]; !ok {
		s.nodes[path] = &NodeStats{Path: path, Kind: kind}
	}
}

func (s *statsCollector) query(path string, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if n, ok := s.nodes[path]; ok {
		n.Queries++
		n.Rows += rows
	}
}

func (s *statsCollector) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Queries: s.queries, Nodes: make([]NodeStats, 0, len(s.nodes))}
	for _, n := range s.nodes {
		stats.Nodes = append(stats.Nodes, *n)
	}
	sort.Slice(stats.Nodes, func(i, j int) bool { return stats.Nodes[i].Path < stats.Nodes[j].Path })
	return stats
}

// Node returns the stats of one path.
func (s Stats) Node(path string) (NodeStats, bool) {
	for _, n := range s.Nodes {
		if n.Path == path {
			return n, true
		}
	}
	return NodeStats{}, false
}
