package eagerload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/satishbabariya/prisma-go-relations/query"
	"github.com/satishbabariya/prisma-go-relations/relation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryCountBound(t *testing.T) {
	ctx := context.Background()
	reg := blogRegistry(t)

	for _, n := range []int{1, 10, 10000} {
		t.Run(fmt.Sprintf("%d parents", n), func(t *testing.T) {
			rows := make([]*query.Row, n)
			for i := range rows {
				rows[i] = query.NewRow(map[string]any{"id": i + 1, "author_id": i%3 + 1})
			}

			for _, relationName := range []string{"author", "comments", "images"} {
				src := blogSource()
				_, stats, err := New(reg, src).ResolveStats(ctx, "posts", rows, WithSpec{relationName: true})
				require.NoError(t, err)
				assert.Equal(t, 1, src.Queries(), relationName)
				assert.Equal(t, 1, stats.Queries, relationName)
			}

			src := blogSource()
			_, err := New(reg, src).Resolve(ctx, "posts", rows, WithSpec{"tags": true})
			require.NoError(t, err)
			assert.Equal(t, 2, src.Queries(), "tags")
		})
	}
}

func TestResolveDirect(t *testing.T) {
	ctx := context.Background()
	reg := blogRegistry(t)

	t.Run("Singular", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts")

		out, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{"author": true})
		require.NoError(t, err)

		assert.Equal(t, "ada", out[0].One("author").Get("name"))
		assert.Equal(t, "ada", out[1].One("author").Get("name"))
		assert.Equal(t, "bob", out[2].One("author").Get("name"))
		assert.True(t, out[3].Has("author"))
		assert.Nil(t, out[3].One("author"))
		assert.Same(t, out[0].One("author"), out[1].One("author"))

		fetch := src.Fetches()[0]
		assert.Equal(t, "users", fetch.Table)
		assert.Len(t, fetch.Keys.Tuples, 2)
	})

	t.Run("Plural keeps fetch order", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts")

		out, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{
			"comments": map[string]any{"order_by": "created_at desc"},
		})
		require.NoError(t, err)

		assert.Equal(t, []any{4, 1, 2}, ids(out[0].Many("comments")))
		assert.Equal(t, []any{3}, ids(out[1].Many("comments")))
		assert.NotNil(t, out[2].Many("comments"))
		assert.Empty(t, out[2].Many("comments"))
	})

	t.Run("Where filter", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts", 1)

		out, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{
			"comments": map[string]any{"where": map[string]any{"user_id": 1}},
		})
		require.NoError(t, err)
		assert.Equal(t, []any{4}, ids(out[0].Many("comments")))
	})

	t.Run("No keys issues no query", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts", 4)

		out, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{"author": true})
		require.NoError(t, err)
		assert.Zero(t, src.Queries())
		assert.True(t, out[0].Has("author"))
		assert.Nil(t, out[0].One("author"))
	})

	t.Run("No parents", func(t *testing.T) {
		src := blogSource()
		out, err := New(reg, src).Resolve(ctx, "posts", nil, WithSpec{"author": true, "tags": true})
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Zero(t, src.Queries())
	})

	t.Run("False and nil entries are skipped", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts")

		out, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{"author": false, "tags": nil})
		require.NoError(t, err)
		assert.Zero(t, src.Queries())
		assert.False(t, out[0].Has("author"))
		assert.False(t, out[0].Has("tags"))
	})
}

func TestResolveJunction(t *testing.T) {
	ctx := context.Background()
	reg := blogRegistry(t)

	t.Run("Two queries and target ordering", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts")

		out, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{
			"tags": map[string]any{"order_by": "label"},
		})
		require.NoError(t, err)

		assert.Equal(t, []any{20, 10}, ids(out[0].Many("tags")))
		assert.Equal(t, []any{10}, ids(out[1].Many("tags")))
		assert.Empty(t, out[2].Many("tags"))
		assert.Equal(t, 2, src.Queries())
		assert.Same(t, out[0].Many("tags")[1], out[1].Many("tags")[0])

		fetches := src.Fetches()
		assert.Equal(t, "post_tags", fetches[0].Table)
		assert.Nil(t, fetches[0].Where)
		assert.Equal(t, "tags", fetches[1].Table)
		assert.Len(t, fetches[1].Keys.Tuples, 2)
	})

	t.Run("Empty junction skips the target query", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts", 3)

		out, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{"tags": true})
		require.NoError(t, err)
		assert.Equal(t, 1, src.Queries())
		assert.NotNil(t, out[0].Many("tags"))
		assert.Empty(t, out[0].Many("tags"))
	})
}

func TestResolvePolymorphic(t *testing.T) {
	ctx := context.Background()
	reg := blogRegistry(t)

	t.Run("Has-many filters by type value", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts")

		out, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{"images": true})
		require.NoError(t, err)

		assert.Equal(t, []any{1, 2}, ids(out[0].Many("images")))
		assert.Empty(t, out[1].Many("images"))
		assert.Equal(t, []any{5}, ids(out[2].Many("images")))
		assert.Equal(t, 1, src.Queries())

		users := parents(t, src, "users", 1)
		out, err = New(reg, src).Resolve(ctx, "users", users, WithSpec{"photos": true})
		require.NoError(t, err)
		assert.Equal(t, []any{3}, ids(out[0].Many("photos")))
	})

	t.Run("Belongs-to issues one query per registered type", func(t *testing.T) {
		src := blogSource()
		comments := parents(t, src, "comments")

		out, err := New(reg, src).Resolve(ctx, "comments", comments, WithSpec{"commentable": true})
		require.NoError(t, err)

		assert.Equal(t, "a", out[0].One("commentable").Get("title"))
		assert.Equal(t, "b", out[1].One("commentable").Get("title"))
		assert.Equal(t, "v9", out[2].One("commentable").Get("url"))
		assert.True(t, out[3].Has("commentable"))
		assert.Nil(t, out[3].One("commentable"), "unregistered type attaches nil")
		assert.Nil(t, out[4].One("commentable"), "null type attaches nil")

		assert.Equal(t, 2, src.Queries())
		assert.Len(t, src.FetchesFor("posts"), 1)
		assert.Len(t, src.FetchesFor("videos"), 1)
	})

	t.Run("Only unregistered types issue no queries", func(t *testing.T) {
		src := blogSource()
		comments := parents(t, src, "comments", 4)

		out, err := New(reg, src).Resolve(ctx, "comments", comments, WithSpec{"commentable": true})
		require.NoError(t, err)
		assert.Zero(t, src.Queries())
		assert.Nil(t, out[0].One("commentable"))
	})

	t.Run("Error policy rejects unregistered types", func(t *testing.T) {
		src := blogSource()
		comments := parents(t, src, "comments")

		_, err := New(reg, src, WithDiscriminatorPolicy(DiscriminatorError)).
			Resolve(ctx, "comments", comments, WithSpec{"commentable": true})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnregisteredDiscriminator)

		var disc *UnregisteredDiscriminatorError
		require.True(t, errors.As(err, &disc))
		assert.Equal(t, "audio", disc.Value)
		assert.Equal(t, "commentable", disc.Relation)
		assert.Zero(t, src.Queries())
		assert.False(t, comments[0].Has("commentable"))
	})

	t.Run("Nested loads run per type partition", func(t *testing.T) {
		src := blogSource()
		comments := parents(t, src, "comments", 1, 3)

		out, stats, err := New(reg, src).ResolveStats(ctx, "comments", comments, WithSpec{
			"commentable": map[string]any{"with": map[string]any{"images": true}},
		})
		require.NoError(t, err)

		assert.Equal(t, []any{1, 2}, ids(out[0].One("commentable").Many("images")))
		assert.Equal(t, []any{4}, ids(out[1].One("commentable").Many("images")))
		assert.Equal(t, 4, stats.Queries)

		node, ok := stats.Node("commentable[post].images")
		require.True(t, ok)
		assert.Equal(t, 1, node.Queries)
		assert.Equal(t, relation.KindPolymorphicHasMany, node.Kind)
	})

	t.Run("Nested spec missing on a present partition fails", func(t *testing.T) {
		spec := WithSpec{"commentable": map[string]any{"with": map[string]any{"author": true}}}

		src := blogSource()
		postComments := parents(t, src, "comments", 1, 2)
		out, err := New(reg, src).Resolve(ctx, "comments", postComments, spec)
		require.NoError(t, err)
		assert.Equal(t, "ada", out[0].One("commentable").One("author").Get("name"))

		mixed := parents(t, src, "comments", 1, 3)
		_, err = New(reg, src).Resolve(ctx, "comments", mixed, spec)
		require.Error(t, err)
		assert.ErrorIs(t, err, relation.ErrUnknownRelation)
		assert.False(t, mixed[0].Has("commentable"))
	})

	t.Run("Nested spec that fits no target fails at plan time", func(t *testing.T) {
		src := blogSource()
		comments := parents(t, src, "comments")

		_, err := New(reg, src).Resolve(ctx, "comments", comments, WithSpec{
			"commentable": map[string]any{"with": map[string]any{"nope": true}},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, relation.ErrUnknownRelation)
		assert.Zero(t, src.Queries())
	})
}

func TestPerParentLimit(t *testing.T) {
	ctx := context.Background()
	reg := blogRegistry(t)

	t.Run("Direct", func(t *testing.T) {
		src := blogSource()
		users := parents(t, src, "users")

		out, err := New(reg, src).Resolve(ctx, "users", users, WithSpec{
			"posts": map[string]any{"order_by": "id desc", "limit": 1},
		})
		require.NoError(t, err)

		assert.Equal(t, []any{2}, ids(out[0].Many("posts")))
		assert.Equal(t, []any{3}, ids(out[1].Many("posts")))
		assert.Empty(t, out[2].Many("posts"))
		assert.Nil(t, src.Fetches()[0].Limit, "limit is never pushed into the query")
	})

	t.Run("Junction", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts")

		out, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{
			"tags": Load{OrderBy: []query.OrderBy{{Field: "label"}}, Limit: Limit(1)},
		})
		require.NoError(t, err)

		assert.Equal(t, []any{20}, ids(out[0].Many("tags")))
		assert.Equal(t, []any{10}, ids(out[1].Many("tags")))
		for _, f := range src.Fetches() {
			assert.Nil(t, f.Limit)
		}
	})

	t.Run("Polymorphic has-many", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts")

		out, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{
			"images": &Load{OrderBy: []query.OrderBy{{Field: "created_at", Direction: query.Desc}}, Limit: Limit(1)},
		})
		require.NoError(t, err)

		assert.Equal(t, []any{2}, ids(out[0].Many("images")))
		assert.Empty(t, out[1].Many("images"))
		assert.Equal(t, []any{5}, ids(out[2].Many("images")))
	})

	t.Run("Zero limit", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts")

		out, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{"comments": map[string]any{"limit": 0}})
		require.NoError(t, err)
		for _, p := range out {
			assert.NotNil(t, p.Many("comments"))
			assert.Empty(t, p.Many("comments"))
		}
	})
}

func TestAllOrNothing(t *testing.T) {
	ctx := context.Background()
	reg := blogRegistry(t)
	boom := errors.New("connection reset")

	t.Run("Sibling failure", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts")
		src.FailOn("comments", boom)

		out, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{"author": true, "comments": true})
		require.Error(t, err)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, ErrQueryExecutionFailed)
		assert.ErrorIs(t, err, boom)

		var qe *QueryExecutionError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, "comments", qe.Table)
		assert.Equal(t, "comments", qe.Relation)

		for _, p := range posts {
			assert.False(t, p.Has("author"))
			assert.False(t, p.Has("comments"))
		}
	})

	t.Run("Nested failure", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts")
		src.FailOn("comments", boom)

		_, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{
			"author": map[string]any{"with": map[string]any{"comments": true}},
		})
		require.Error(t, err)

		var qe *QueryExecutionError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, "author.comments", qe.Relation)
		for _, p := range posts {
			assert.False(t, p.Has("author"))
		}
	})

	t.Run("Canceled context", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts")
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := New(reg, src).Resolve(canceled, "posts", posts, WithSpec{"author": true})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestUnknownRelation(t *testing.T) {
	ctx := context.Background()
	reg := blogRegistry(t)

	t.Run("Top level names the alias", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts")

		_, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{"author": true, "writer:nobody": true})
		require.Error(t, err)

		var unknown *relation.UnknownRelationError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "posts", unknown.Table)
		assert.Equal(t, "nobody", unknown.Relation)
		assert.Equal(t, "writer", unknown.Alias)
		assert.Zero(t, src.Queries(), "unknown relations fail before any query")
	})

	t.Run("Nested is resolved against the target table", func(t *testing.T) {
		src := blogSource()
		posts := parents(t, src, "posts")

		_, err := New(reg, src).Resolve(ctx, "posts", posts, WithSpec{
			"author": map[string]any{"with": map[string]any{"tags": true}},
		})
		var unknown *relation.UnknownRelationError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "users", unknown.Table)
		assert.Zero(t, src.Queries())
	})
}

func TestIdempotence(t *testing.T) {
	ctx := context.Background()
	reg := blogRegistry(t)
	spec := WithSpec{
		"author":   map[string]any{"with": map[string]any{"comments": map[string]any{"order_by": "id"}}},
		"tags":     true,
		"comments": map[string]any{"with": map[string]any{"commentable": true, "user": true}},
	}

	src := blogSource()
	first, err := New(reg, src).Resolve(ctx, "posts", parents(t, src, "posts"), spec)
	require.NoError(t, err)
	second, err := New(reg, src).Resolve(ctx, "posts", parents(t, src, "posts"), spec)
	require.NoError(t, err)

	assert.Equal(t, maps(first), maps(second))
}

func relatedKeys(r *query.Row) []string {
	keys := make([]string, 0, len(r.Related))
	for k := range r.Related {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestRoundTripShape(t *testing.T) {
	ctx := context.Background()
	reg := blogRegistry(t)
	src := blogSource()

	out, err := New(reg, src).Resolve(ctx, "posts", parents(t, src, "posts"), WithSpec{
		"images": true,
		"author": map[string]any{"with": map[string]any{
			"posts": map[string]any{"with": map[string]any{"tags": true}},
		}},
	})
	require.NoError(t, err)

	for _, post := range out {
		assert.Equal(t, []string{"author", "images"}, relatedKeys(post))
		author := post.One("author")
		if author == nil {
			continue
		}
		assert.Equal(t, []string{"posts"}, relatedKeys(author))
		for _, p := range author.Many("posts") {
			assert.Equal(t, []string{"tags"}, relatedKeys(p))
			for _, tag := range p.Many("tags") {
				assert.Empty(t, relatedKeys(tag))
			}
		}
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()
	reg := blogRegistry(t)
	spec := WithSpec{
		"author":   map[string]any{"with": map[string]any{"posts": true, "comments": true, "photos": true}},
		"comments": map[string]any{"order_by": "created_at", "with": map[string]any{"user": true, "commentable": true}},
		"tags":     true,
		"images":   map[string]any{"limit": 1},
	}

	seqSrc := blogSource()
	seq, seqStats, err := New(reg, seqSrc).ResolveStats(ctx, "posts", parents(t, seqSrc, "posts"), spec)
	require.NoError(t, err)

	parSrc := blogSource()
	par, parStats, err := New(reg, parSrc, WithConcurrency(4)).ResolveStats(ctx, "posts", parents(t, parSrc, "posts"), spec)
	require.NoError(t, err)

	assert.Equal(t, maps(seq), maps(par))
	assert.Equal(t, seqStats, parStats)
	assert.Equal(t, seqSrc.Queries(), parSrc.Queries())
}

func TestMaxKeysPerQuery(t *testing.T) {
	ctx := context.Background()
	reg := blogRegistry(t)
	src := blogSource()

	out, stats, err := New(reg, src, WithMaxKeysPerQuery(2)).ResolveStats(ctx, "users", parents(t, src, "users"), WithSpec{
		"posts": map[string]any{"order_by": "id desc"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Queries)
	assert.Equal(t, []any{2, 1}, ids(out[0].Many("posts")))
	assert.Equal(t, []any{3}, ids(out[1].Many("posts")))
	for _, f := range src.Fetches() {
		assert.LessOrEqual(t, len(f.Keys.Tuples), 2)
	}
}

func TestResolveStats(t *testing.T) {
	ctx := context.Background()
	reg := blogRegistry(t)
	src := blogSource()

	_, stats, err := New(reg, src).ResolveStats(ctx, "posts", parents(t, src, "posts"), WithSpec{"author": true, "tags": true})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Queries)
	require.Len(t, stats.Nodes, 2)
	assert.Equal(t, NodeStats{Path: "author", Kind: relation.KindDirect, Queries: 1, Rows: 2}, stats.Nodes[0])
	assert.Equal(t, NodeStats{Path: "tags", Kind: relation.KindThroughJunction, Queries: 2, Rows: 5}, stats.Nodes[1])
}

type recorder struct {
	mu       sync.Mutex
	fetches  []string
	resolves int
	failed   int
}

func (r *recorder) FetchCompleted(kind, table string, rows int, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, kind+":"+table)
}

func (r *recorder) ResolveCompleted(table string, queries int, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolves++
	if err != nil {
		r.failed++
	}
}

func TestObservability(t *testing.T) {
	ctx := context.Background()
	reg := blogRegistry(t)
	src := blogSource()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rec := &recorder{}

	resolver := New(reg, src, WithMetrics(rec), WithLogger(logger))
	_, err := resolver.Resolve(ctx, "posts", parents(t, src, "posts"), WithSpec{"author": true, "tags": true})
	require.NoError(t, err)

	assert.Equal(t, []string{"direct:users", "through_junction:post_tags", "through_junction:tags"}, rec.fetches)
	assert.Equal(t, 1, rec.resolves)
	assert.Contains(t, buf.String(), "resolve_id=")
	assert.Contains(t, buf.String(), "relation=tags")

	_, err = resolver.Resolve(ctx, "posts", nil, WithSpec{"missing": true})
	require.Error(t, err)
	assert.Equal(t, 1, rec.failed)
}

func TestParseDiscriminatorPolicy(t *testing.T) {
	p, err := ParseDiscriminatorPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DiscriminatorSkip, p)

	p, err = ParseDiscriminatorPolicy("ERROR")
	require.NoError(t, err)
	assert.Equal(t, DiscriminatorError, p)
	assert.Equal(t, "error", p.String())

	_, err = ParseDiscriminatorPolicy("panic")
	require.Error(t, err)
}
