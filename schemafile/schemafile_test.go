package schemafile

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-go-relations/relation"
)

func TestLoadBlog(t *testing.T) {
	reg := relation.NewRegistry()
	f, err := Load(reg, afero.NewOsFs(), "testdata/blog.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"comments", "posts", "users"}, f.Sources())

	t.Run("Direct", func(t *testing.T) {
		d, err := reg.Lookup("posts", "author")
		require.NoError(t, err)
		direct := d.(*relation.Direct)
		assert.False(t, direct.Plural)
		assert.Equal(t, []string{"author_id"}, direct.LocalFields)
		assert.Equal(t, []string{"id"}, direct.TargetFields)
		assert.Equal(t, relation.NewTable("users", "id", "name"), direct.Target)
		assert.Equal(t, "Author", reg.DisplayName("posts", "author"))

		d, err = reg.Lookup("users", "posts")
		require.NoError(t, err)
		assert.True(t, d.IsPlural())
	})

	t.Run("Junction defaults", func(t *testing.T) {
		d, err := reg.Lookup("posts", "tags")
		require.NoError(t, err)
		j := d.(*relation.ThroughJunction)
		assert.Equal(t, []string{"id"}, j.LocalFields)
		assert.Equal(t, []string{"post_id"}, j.JunctionLocalFields)
		assert.Equal(t, []string{"tag_id"}, j.JunctionTargetFields)
		assert.Equal(t, []string{"id"}, j.TargetKeyFields)
		assert.Equal(t, "post_tags", j.Junction.Name)
	})

	t.Run("Polymorphic", func(t *testing.T) {
		d, err := reg.Lookup("comments", "commentable")
		require.NoError(t, err)
		poly := d.(*relation.PolymorphicBelongsTo)
		assert.Equal(t, []string{"post", "video"}, poly.TypeValues())
		assert.Equal(t, "id", poly.KeyColumn())

		d, err = reg.Lookup("users", "photos")
		require.NoError(t, err)
		hasMany := d.(*relation.PolymorphicHasMany)
		assert.Equal(t, "user", hasMany.TypeValue)
		assert.Equal(t, []string{"id"}, hasMany.SourceKeys())
	})
}

func TestLoadJSON(t *testing.T) {
	reg := relation.NewRegistry()
	_, err := Load(reg, afero.NewOsFs(), "testdata/blog.json")
	require.NoError(t, err)

	d, err := reg.Lookup("users", "posts")
	require.NoError(t, err)
	assert.True(t, d.IsPlural())
	d, err = reg.Lookup("posts", "author")
	require.NoError(t, err)
	assert.False(t, d.IsPlural())
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, JSON, DetectFormat("relations.JSON"))
	assert.Equal(t, YAML, DetectFormat("relations.yml"))
	assert.Equal(t, YAML, DetectFormat("relations"))
}

func TestVersionGate(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{`"1.0"`, true},
		{`"1.9.3"`, true},
		{`1.5`, true},
		{`"0.9"`, false},
		{`"2.0"`, false},
		{`"latest"`, false},
		{`""`, false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			_, err := Parse([]byte("version: "+tt.version+"\nrelations: {}\n"), YAML)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrUnsupportedVersion)
		})
	}

	t.Run("Missing version", func(t *testing.T) {
		_, err := Parse([]byte(`{"relations": {}}`), JSON)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})
}

func TestParseErrors(t *testing.T) {
	t.Run("Unknown YAML key", func(t *testing.T) {
		_, err := Parse([]byte("version: \"1.0\"\nrelation: {}\n"), YAML)
		assert.Error(t, err)
	})

	t.Run("Unknown JSON key", func(t *testing.T) {
		_, err := Parse([]byte(`{"version": "1.0", "relations": {"posts": {"author": {"kind": "one", "tagret": "users"}}}}`), JSON)
		assert.Error(t, err)
	})

	t.Run("Bad field list", func(t *testing.T) {
		_, err := Parse([]byte(`{"version": "1.0", "relations": {"posts": {"author": {"kind": "one", "local": 3}}}}`), JSON)
		assert.Error(t, err)
	})

	t.Run("Unknown format", func(t *testing.T) {
		_, err := Parse([]byte(`{}`), Format("toml"))
		assert.Error(t, err)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadFile(afero.NewMemMapFs(), "nope.yaml")
		assert.Error(t, err)
	})
}

func TestRegisterIsAllOrNothing(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "relations.yaml", []byte(`
version: "1.0"
tables:
  users: [id]
  posts: [id, author_id]
relations:
  users:
    posts: {kind: many, target: posts, local: id, foreign: author_id}
  posts:
    author: {kind: one, target: users, local: writer_id, foreign: id}
`), 0o644))

	reg := relation.NewRegistry()
	_, err := Load(reg, fsys, "relations.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, relation.ErrInvalidDescriptor)
	assert.Contains(t, err.Error(), "writer_id")
	assert.Empty(t, reg.Tables())
}

func TestRegisterErrors(t *testing.T) {
	tests := []struct {
		name string
		rel  Relation
	}{
		{"Unknown kind", Relation{Kind: "sometimes"}},
		{"Direct without target", Relation{Kind: "one", Local: Fields{"a"}, Foreign: Fields{"b"}}},
		{"Junction without junction", Relation{Kind: "many_through", Target: "tags"}},
		{"Polymorphic with composite key", Relation{Kind: "one_polymorphic", TypeColumn: "t", IDColumn: "i", TargetKey: Fields{"a", "b"}, Targets: map[string]string{"x": "xs"}}},
		{"Has-many without target", Relation{Kind: "many_polymorphic", TypeColumn: "t", IDColumn: "i", TypeValue: "x"}},
		{"Invalid descriptor", Relation{Kind: "one_polymorphic", TypeColumn: "t", IDColumn: "i"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &File{
				Version:   "1.0",
				Relations: map[string]map[string]Relation{"things": {"rel": tt.rel}},
			}
			reg := relation.NewRegistry()
			err := f.Register(reg)
			require.Error(t, err)
			assert.Empty(t, reg.Tables())
		})
	}

	t.Run("Sealed registry", func(t *testing.T) {
		f := &File{
			Version:   "1.0",
			Relations: map[string]map[string]Relation{"posts": {"author": {Kind: "one", Target: "users", Local: Fields{"author_id"}, Foreign: Fields{"id"}}}},
		}
		reg := relation.NewRegistry()
		reg.Seal()
		assert.ErrorIs(t, f.Register(reg), relation.ErrRegistrySealed)
	})
}
