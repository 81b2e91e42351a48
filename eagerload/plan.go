package eagerload

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/satishbabariya/prisma-go-relations/relation"
)

// Node is one resolved relation in a load plan.
type Node struct {
	Alias    string
	Relation string
	// Source is the table the relation is declared on.
	Source     string
	Descriptor relation.Descriptor
	Options    Load
	Children   []*Node
	// ByType holds nested nodes per discriminator for polymorphic belongs-to,
	// each planned against that discriminator's target table.
	ByType map[string][]*Node
	// typeErrs records nested specs that do not apply to some targets. They
	// surface only when rows of that type are present.
	typeErrs map[string]error
}

// pathFrom returns the dotted alias path of n below parent.
func (n *Node) pathFrom(parent string) string {
	if parent == "" {
		return n.Alias
	}
	return parent + "." + n.Alias
}

func buildPlan(reg *relation.Registry, table string, spec WithSpec) ([]*Node, error) {
	nodes := make([]*Node, 0, len(spec))
	aliases := make(map[string]string, len(spec))

	for _, key := range sortedKeys(spec) {
		load, skip, err := parseLoad(key, spec[key])
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		if other, dup := aliases[load.Alias]; dup {
			return nil, invalidOptions(key, "alias %q is also used by %q", load.Alias, other)
		}
		aliases[load.Alias] = key

		d, err := reg.Lookup(table, load.Relation)
		if err != nil {
			return nil, &relation.UnknownRelationError{Table: table, Relation: load.Relation, Alias: load.Alias}
		}

		node := &Node{
			Alias:      load.Alias,
			Relation:   load.Relation,
			Source:     table,
			Descriptor: d,
			Options:    load,
		}
		if err := planChildren(reg, node); err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func planChildren(reg *relation.Registry, node *Node) error {
	if len(node.Options.With) == 0 {
		return nil
	}

	belongsTo, ok := node.Descriptor.(*relation.PolymorphicBelongsTo)
	if !ok {
		target, _ := relation.TargetTable(node.Descriptor)
		children, err := buildPlan(reg, target.Name, node.Options.With)
		if err != nil {
			return err
		}
		node.Children = children
		return nil
	}

	node.ByType = make(map[string][]*Node)
	var errs []error
	for _, typeValue := range belongsTo.TypeValues() {
		target := belongsTo.Targets[typeValue]
		children, err := buildPlan(reg, target.Name, node.Options.With)
		if err != nil {
			if node.typeErrs == nil {
				node.typeErrs = make(map[string]error)
			}
			node.typeErrs[typeValue] = err
			errs = append(errs, err)
			continue
		}
		node.ByType[typeValue] = children
	}
	if len(node.ByType) == 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Explain renders a plan as an indented tree.
func Explain(nodes []*Node) string {
	var b strings.Builder
	explain(&b, nodes, 0)
	return b.String()
}

func explain(b *strings.Builder, nodes []*Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		b.WriteString(indent)
		b.WriteString(n.Alias)
		if n.Alias != n.Relation {
			b.WriteString(":" + n.Relation)
		}
		fmt.Fprintf(b, " (%s) %s", n.Descriptor.Kind(), describe(n.Descriptor))
		if len(n.Options.OrderBy) > 0 {
			parts := make([]string, len(n.Options.OrderBy))
			for i, ob := range n.Options.OrderBy {
				parts[i] = ob.String()
			}
			fmt.Fprintf(b, " order=%q", strings.Join(parts, ", "))
		}
		if n.Options.Limit != nil {
			fmt.Fprintf(b, " limit=%d", *n.Options.Limit)
		}
		if !n.Options.Where.IsEmpty() {
			b.WriteString(" where")
		}
		b.WriteString("\n")

		explain(b, n.Children, depth+1)

		types := make([]string, 0, len(n.ByType)+len(n.typeErrs))
		for t := range n.ByType {
			types = append(types, t)
		}
		for t := range n.typeErrs {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			if err, failed := n.typeErrs[t]; failed {
				fmt.Fprintf(b, "%s  [%s] skipped: %v\n", indent, t, err)
				continue
			}
			fmt.Fprintf(b, "%s  [%s]\n", indent, t)
			explain(b, n.ByType[t], depth+2)
		}
	}
}

func describe(d relation.Descriptor) string {
	switch d := d.(type) {
	case *relation.Direct:
		card := "one"
		if d.Plural {
			card = "many"
		}
		return fmt.Sprintf("%s %s %v -> %v", card, d.Target.Name, d.LocalFields, d.TargetFields)
	case *relation.ThroughJunction:
		return fmt.Sprintf("many %s via %s %v -> %v, %v -> %v",
			d.Target.Name, d.Junction.Name, d.LocalFields, d.JunctionLocalFields, d.JunctionTargetFields, d.TargetKeyFields)
	case *relation.PolymorphicBelongsTo:
		parts := make([]string, 0, len(d.Targets))
		for _, t := range d.TypeValues() {
			parts = append(parts, t+"="+d.Targets[t].Name)
		}
		return fmt.Sprintf("one by %s/%s {%s}", d.TypeColumn, d.IDColumn, strings.Join(parts, ", "))
	case *relation.PolymorphicHasMany:
		return fmt.Sprintf("many %s where %s=%q, %v -> %s", d.Target.Name, d.TypeColumn, d.TypeValue, d.SourceKeys(), d.IDColumn)
	}
	return fmt.Sprintf("%T", d)
}
