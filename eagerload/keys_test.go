package eagerload

import (
	"testing"

	"github.com/satishbabariya/prisma-go-relations/query"
	"github.com/satishbabariya/prisma-go-relations/relation"
	"github.com/stretchr/testify/assert"
)

func TestExtractKeys(t *testing.T) {
	t.Run("Deduplicates across driver types and drops nulls", func(t *testing.T) {
		rows := query.Rows(
			map[string]any{"author_id": int64(1)},
			map[string]any{"author_id": "1"},
			map[string]any{"author_id": []byte("2")},
			map[string]any{"author_id": nil},
			map[string]any{},
		)
		keys := extractKeys(rows, []string{"author_id"})
		assert.Equal(t, [][]any{{int64(1)}, {[]byte("2")}}, keys.tuples)
	})

	t.Run("Composite tuples drop on any null component", func(t *testing.T) {
		rows := query.Rows(
			map[string]any{"a": 1, "b": "x"},
			map[string]any{"a": 1, "b": nil},
			map[string]any{"a": 1, "b": "x"},
			map[string]any{"a": 2, "b": "x"},
		)
		keys := extractKeys(rows, []string{"a", "b"})
		assert.Equal(t, [][]any{{1, "x"}, {2, "x"}}, keys.tuples)
	})
}

func TestPartitionByType(t *testing.T) {
	d := &relation.PolymorphicBelongsTo{
		TypeColumn: "kind",
		IDColumn:   "ref",
		Targets: map[string]relation.Table{
			"post":  relation.NewTable("posts"),
			"video": relation.NewTable("videos"),
		},
	}
	rows := query.Rows(
		map[string]any{"kind": "video", "ref": 9},
		map[string]any{"kind": "post", "ref": 5},
		map[string]any{"kind": "post", "ref": int64(5)},
		map[string]any{"kind": "post", "ref": nil},
		map[string]any{"kind": "audio", "ref": 1},
		map[string]any{"kind": "gif", "ref": 2},
		map[string]any{"kind": nil, "ref": 3},
	)

	p := partitionByType(rows, d)
	assert.Equal(t, []string{"post", "video"}, p.types())
	assert.Equal(t, [][]any{{5}}, p.byType["post"].tuples)
	assert.Equal(t, [][]any{{9}}, p.byType["video"].tuples)
	assert.Equal(t, []string{"audio", "gif"}, p.unregistered)
}
