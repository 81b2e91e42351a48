package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/prisma-go-relations/cli/internal/ui"
	"github.com/satishbabariya/prisma-go-relations/cli/internal/watch"
	"github.com/satishbabariya/prisma-go-relations/relation"
)

func newValidateCommand(a *app) *cobra.Command {
	var watchMode bool

	cmd := &cobra.Command{
		Use:   "validate [relations-file]",
		Short: "Validate a relation file",
		Long: `Validate a relation file.

This command will:
- Parse the file and check its version
- Check every relation against the declared table columns
- List the registered relations`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.relationsPath(args)
			if !watchMode {
				return a.validate(path)
			}
			return a.watchValidate(cmd.Context(), path)
		},
	}

	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "re-validate whenever the file changes")

	return cmd
}

func (a *app) validate(path string) error {
	ui.PrintHeader("prisma-relations", "Validate Relations")

	reg, f, err := a.registry(path)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	absPath, _ := filepath.Abs(path)
	ui.PrintSuccess("Relations are valid: %s (version %s)", absPath, f.Version)

	var rows [][]string
	for _, source := range f.Sources() {
		for _, entry := range reg.Relations(source) {
			rows = append(rows, []string{
				source,
				entry.Name,
				ui.Kind(entry.Descriptor.Kind()),
				cardinality(entry.Descriptor),
				targets(entry.Descriptor),
				entry.DisplayName(),
			})
		}
	}
	ui.PrintSection("Relations")
	ui.PrintTable([]string{"Source", "Relation", "Kind", "Cardinality", "Target", "Display"}, rows)
	ui.PrintList([]string{
		fmt.Sprintf("%d relation(s)", len(rows)),
		fmt.Sprintf("%d source table(s)", len(f.Sources())),
	})
	return nil
}

func (a *app) watchValidate(ctx context.Context, path string) error {
	validate := func() error {
		if err := a.validate(path); err != nil {
			ui.PrintError("%v", err)
		}
		return nil
	}

	watcher, err := watch.NewWatcher(path, validate)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	ui.PrintInfo("Watching %s for changes... (Press Ctrl+C to stop)", path)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	ui.PrintInfo("Stopping watch mode...")
	return nil
}

func cardinality(d relation.Descriptor) string {
	if d.IsPlural() {
		return "many"
	}
	return "one"
}

// targets renders the loaded table, or type=table pairs for polymorphic
// belongs-to relations.
func targets(d relation.Descriptor) string {
	if poly, ok := d.(*relation.PolymorphicBelongsTo); ok {
		pairs := make([]string, 0, len(poly.Targets))
		for _, typeValue := range poly.TypeValues() {
			pairs = append(pairs, typeValue+"="+poly.Targets[typeValue].Name)
		}
		return strings.Join(pairs, ", ")
	}
	names := make([]string, 0, 1)
	for _, t := range d.TargetTables() {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
