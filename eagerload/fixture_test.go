package eagerload

import (
	"context"
	"testing"

	"github.com/satishbabariya/prisma-go-relations/query"
	"github.com/satishbabariya/prisma-go-relations/query/memory"
	"github.com/satishbabariya/prisma-go-relations/relation"
	"github.com/stretchr/testify/require"
)

var (
	usersTable    = relation.NewTable("users", "id", "name")
	postsTable    = relation.NewTable("posts", "id", "author_id", "title")
	commentsTable = relation.NewTable("comments", "id", "post_id", "user_id", "commentable_type", "commentable_id", "body", "created_at")
	tagsTable     = relation.NewTable("tags", "id", "label")
	postTagsTable = relation.NewTable("post_tags", "post_id", "tag_id")
	videosTable   = relation.NewTable("videos", "id", "url")
	imagesTable   = relation.NewTable("images", "id", "imageable_type", "imageable_id", "created_at")
)

// blogRegistry declares a small blog schema covering every relation kind.
func blogRegistry(t *testing.T) *relation.Registry {
	t.Helper()
	reg := relation.NewRegistry()

	require.NoError(t, reg.Define(usersTable, func(b *relation.Builder) {
		b.Many("posts", postsTable, []string{"id"}, []string{"author_id"})
		b.Many("comments", commentsTable, []string{"id"}, []string{"user_id"})
		b.ManyPolymorphic("photos", imagesTable, "imageable_type", "imageable_id", "user")
	}))
	require.NoError(t, reg.Define(postsTable, func(b *relation.Builder) {
		b.One("author", usersTable, []string{"author_id"}, []string{"id"})
		b.Many("comments", commentsTable, []string{"id"}, []string{"post_id"})
		b.ManyThrough("tags", tagsTable, relation.Junction{
			Table:        postTagsTable,
			LocalFields:  []string{"post_id"},
			TargetFields: []string{"tag_id"},
		})
		b.ManyPolymorphic("images", imagesTable, "imageable_type", "imageable_id", "post")
	}))
	require.NoError(t, reg.Define(videosTable, func(b *relation.Builder) {
		b.ManyPolymorphic("images", imagesTable, "imageable_type", "imageable_id", "video")
	}))
	require.NoError(t, reg.Define(commentsTable, func(b *relation.Builder) {
		b.One("user", usersTable, []string{"user_id"}, []string{"id"})
		b.OnePolymorphic("commentable", "commentable_type", "commentable_id", map[string]relation.Table{
			"post":  postsTable,
			"video": videosTable,
		})
	}))
	reg.Seal()
	return reg
}

func blogSource() *memory.Source {
	return memory.New().
		Insert("users",
			map[string]any{"id": 1, "name": "ada"},
			map[string]any{"id": 2, "name": "bob"},
			map[string]any{"id": 3, "name": "cy"},
		).
		Insert("posts",
			map[string]any{"id": 1, "author_id": 1, "title": "a"},
			map[string]any{"id": 2, "author_id": 1, "title": "b"},
			map[string]any{"id": 3, "author_id": 2, "title": "c"},
			map[string]any{"id": 4, "author_id": nil, "title": "d"},
		).
		Insert("comments",
			map[string]any{"id": 1, "post_id": 1, "user_id": 2, "commentable_type": "post", "commentable_id": 1, "body": "c1", "created_at": 3},
			map[string]any{"id": 2, "post_id": 1, "user_id": 3, "commentable_type": "post", "commentable_id": 2, "body": "c2", "created_at": 1},
			map[string]any{"id": 3, "post_id": 2, "user_id": 1, "commentable_type": "video", "commentable_id": 9, "body": "c3", "created_at": 2},
			map[string]any{"id": 4, "post_id": 1, "user_id": 1, "commentable_type": "audio", "commentable_id": 5, "body": "c4", "created_at": 4},
			map[string]any{"id": 5, "post_id": nil, "user_id": 2, "commentable_type": nil, "commentable_id": nil, "body": "c5", "created_at": 5},
		).
		Insert("videos",
			map[string]any{"id": 9, "url": "v9"},
			map[string]any{"id": 10, "url": "v10"},
		).
		Insert("tags",
			map[string]any{"id": 10, "label": "go"},
			map[string]any{"id": 20, "label": "db"},
			map[string]any{"id": 30, "label": "x"},
		).
		Insert("post_tags",
			map[string]any{"post_id": 1, "tag_id": 10},
			map[string]any{"post_id": 1, "tag_id": 20},
			map[string]any{"post_id": 2, "tag_id": 10},
		).
		Insert("images",
			map[string]any{"id": 1, "imageable_type": "post", "imageable_id": 1, "created_at": 1},
			map[string]any{"id": 2, "imageable_type": "post", "imageable_id": 1, "created_at": 2},
			map[string]any{"id": 3, "imageable_type": "user", "imageable_id": 1, "created_at": 1},
			map[string]any{"id": 4, "imageable_type": "video", "imageable_id": 9, "created_at": 1},
			map[string]any{"id": 5, "imageable_type": "post", "imageable_id": 3, "created_at": 3},
		)
}

// parents loads rows of table ordered by id, optionally restricted to ids,
// then clears the source's fetch log.
func parents(t *testing.T, src *memory.Source, table string, ids ...any) []*query.Row {
	t.Helper()
	f := &query.Fetch{Table: table, OrderBy: []query.OrderBy{{Field: "id"}}}
	if len(ids) > 0 {
		f.Where = query.Where(query.Cmp("id", query.In, ids))
	}
	rows, err := src.Fetch(context.Background(), f)
	require.NoError(t, err)
	src.Reset()
	return rows
}

func ids(rows []*query.Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r.Get("id")
	}
	return out
}

func maps(rows []*query.Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r.Map()
	}
	return out
}
