// Package schemafile loads relation declarations from YAML or JSON files.
//
//	version: "1.0"
//	tables:
//	  users: [id, name]
//	  posts: [id, author_id]
//	relations:
//	  posts:
//	    author: {kind: one, target: users, local: author_id, foreign: id}
//	    tags:
//	      kind: many_through
//	      target: tags
//	      junction: post_tags
//	      junction_local: post_id
//	      junction_target: tag_id
//	  comments:
//	    commentable:
//	      kind: one_polymorphic
//	      type_column: commentable_type
//	      id_column: commentable_id
//	      targets: {post: posts, video: videos}
package schemafile

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-version"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/satishbabariya/prisma-go-relations/relation"
)

// SupportedVersions is the file format range this package reads.
const SupportedVersions = ">= 1.0, < 2.0"

var supported = version.MustConstraints(version.NewConstraint(SupportedVersions))

// ErrUnsupportedVersion is returned for files outside SupportedVersions.
var ErrUnsupportedVersion = errors.New("unsupported relation file version")

// Format is a relation file encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// DetectFormat picks the format from the file extension; anything but .json
// is read as YAML.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSON
	}
	return YAML
}

// File is a parsed relation file.
type File struct {
	Version string `yaml:"version" json:"version"`
	// Tables lists known columns per table; tables not listed accept any column.
	Tables map[string][]string `yaml:"tables,omitempty" json:"tables,omitempty"`
	// Relations maps source table to relation name to declaration.
	Relations map[string]map[string]Relation `yaml:"relations" json:"relations"`
}

// Relation is one declaration. Which fields apply depends on Kind.
type Relation struct {
	Kind    string `yaml:"kind" json:"kind"`
	Display string `yaml:"display,omitempty" json:"display,omitempty"`
	Target  string `yaml:"target,omitempty" json:"target,omitempty"`

	// one, many, direct
	Local   Fields `yaml:"local,omitempty" json:"local,omitempty"`
	Foreign Fields `yaml:"foreign,omitempty" json:"foreign,omitempty"`
	Plural  bool   `yaml:"plural,omitempty" json:"plural,omitempty"`

	// many_through
	Junction       string `yaml:"junction,omitempty" json:"junction,omitempty"`
	JunctionLocal  Fields `yaml:"junction_local,omitempty" json:"junction_local,omitempty"`
	JunctionTarget Fields `yaml:"junction_target,omitempty" json:"junction_target,omitempty"`
	TargetKey      Fields `yaml:"target_key,omitempty" json:"target_key,omitempty"`

	// one_polymorphic, many_polymorphic
	TypeColumn string            `yaml:"type_column,omitempty" json:"type_column,omitempty"`
	IDColumn   string            `yaml:"id_column,omitempty" json:"id_column,omitempty"`
	TypeValue  string            `yaml:"type_value,omitempty" json:"type_value,omitempty"`
	SourceKey  Fields            `yaml:"source_key,omitempty" json:"source_key,omitempty"`
	Targets    map[string]string `yaml:"targets,omitempty" json:"targets,omitempty"`
}

// Fields is a column list written either as a single name or a list.
type Fields []string

// UnmarshalYAML accepts a scalar or a sequence.
func (f *Fields) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = Fields{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*f = list
	return nil
}

// UnmarshalJSON accepts a string or an array of strings.
func (f *Fields) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*f = Fields{name}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected a column name or a list of column names, got %s", data)
	}
	*f = list
	return nil
}

// Parse decodes data and checks its version. Unknown keys are rejected.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	if err := f.checkVersion(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile reads and parses path from fsys.
func LoadFile(fsys afero.Fs, path string) (*File, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read relation file: %w", err)
	}
	f, err := Parse(data, DetectFormat(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func (f *File) checkVersion() error {
	if f.Version == "" {
		return fmt.Errorf("%w: version is missing (supported %s)", ErrUnsupportedVersion, SupportedVersions)
	}
	v, err := version.NewVersion(f.Version)
	if err != nil {
		return fmt.Errorf("%w: %q is not a version", ErrUnsupportedVersion, f.Version)
	}
	if !supported.Check(v) {
		return fmt.Errorf("%w: %s (supported %s)", ErrUnsupportedVersion, f.Version, SupportedVersions)
	}
	return nil
}

// Sources returns the source tables with declared relations, sorted.
func (f *File) Sources() []string {
	sources := make([]string, 0, len(f.Relations))
	for s := range f.Relations {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

// table builds a table reference with the columns listed under tables.
func (f *File) table(name string) relation.Table {
	return relation.NewTable(name, f.Tables[name]...)
}

// Register declares every relation of the file in reg. The whole file is
// validated first; on any error nothing is registered.
func (f *File) Register(reg *relation.Registry) error {
	defines, err := f.declarations()
	if err != nil {
		return err
	}

	scratch := relation.NewRegistry()
	var errs []error
	for _, source := range f.Sources() {
		if err := scratch.Define(f.table(source), defines[source]); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	for _, source := range f.Sources() {
		if err := reg.Define(f.table(source), defines[source]); err != nil {
			return err
		}
	}
	return nil
}

// declarations converts each source table's relations into a Define callback.
func (f *File) declarations() (map[string]func(*relation.Builder), error) {
	defines := make(map[string]func(*relation.Builder), len(f.Relations))
	var errs []error

	for _, source := range f.Sources() {
		relations := f.Relations[source]
		names := make([]string, 0, len(relations))
		for name := range relations {
			names = append(names, name)
		}
		sort.Strings(names)

		var declare []func(*relation.Builder) *relation.Declaration
		for _, name := range names {
			fn, err := f.declaration(name, relations[name])
			if err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", source, name, err))
				continue
			}
			display := relations[name].Display
			declare = append(declare, func(b *relation.Builder) *relation.Declaration {
				decl := fn(b)
				if display != "" {
					decl.As(display)
				}
				return decl
			})
		}

		defines[source] = func(b *relation.Builder) {
			for _, d := range declare {
				d(b)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return defines, nil
}

func (f *File) declaration(name string, r Relation) (func(*relation.Builder) *relation.Declaration, error) {
	switch r.Kind {
	case "one", "many", string(relation.KindDirect):
		if r.Target == "" {
			return nil, errors.New("target is required")
		}
		target := f.table(r.Target)
		plural := r.Kind == "many" || (r.Kind != "one" && r.Plural)
		return func(b *relation.Builder) *relation.Declaration {
			if plural {
				return b.Many(name, target, r.Local, r.Foreign)
			}
			return b.One(name, target, r.Local, r.Foreign)
		}, nil

	case "many_through", string(relation.KindThroughJunction):
		if r.Target == "" || r.Junction == "" {
			return nil, errors.New("target and junction are required")
		}
		target := f.table(r.Target)
		j := relation.Junction{
			Table:           f.table(r.Junction),
			SourceFields:    r.Local,
			LocalFields:     r.JunctionLocal,
			TargetFields:    r.JunctionTarget,
			TargetKeyFields: r.TargetKey,
		}
		return func(b *relation.Builder) *relation.Declaration {
			return b.ManyThrough(name, target, j)
		}, nil

	case "one_polymorphic", string(relation.KindPolymorphicBelongsTo):
		if len(r.TargetKey) > 1 {
			return nil, fmt.Errorf("target_key takes one column, got %d", len(r.TargetKey))
		}
		d := &relation.PolymorphicBelongsTo{
			TypeColumn: r.TypeColumn,
			IDColumn:   r.IDColumn,
			Targets:    make(map[string]relation.Table, len(r.Targets)),
		}
		if len(r.TargetKey) == 1 {
			d.TargetKey = r.TargetKey[0]
		}
		for typeValue, table := range r.Targets {
			d.Targets[typeValue] = f.table(table)
		}
		return func(b *relation.Builder) *relation.Declaration {
			return b.Relation(name, d)
		}, nil

	case "many_polymorphic", string(relation.KindPolymorphicHasMany):
		if r.Target == "" {
			return nil, errors.New("target is required")
		}
		target := f.table(r.Target)
		return func(b *relation.Builder) *relation.Declaration {
			return b.ManyPolymorphic(name, target, r.TypeColumn, r.IDColumn, r.TypeValue, r.SourceKey...)
		}, nil
	}
	return nil, fmt.Errorf("unknown kind %q", r.Kind)
}

// Load reads path from fsys and registers its relations in reg.
func Load(reg *relation.Registry, fsys afero.Fs, path string) (*File, error) {
	f, err := LoadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	if err := f.Register(reg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
