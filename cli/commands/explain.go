package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/prisma-go-relations/cli/internal/ui"
	"github.com/satishbabariya/prisma-go-relations/eagerload"
	"github.com/satishbabariya/prisma-go-relations/eagerload/withdsl"
)

func newExplainCommand(a *app) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "explain <table> <with-spec>",
		Short: "Print the load plan of a with-spec without running queries",
		Example: `  prisma-relations explain posts 'writer:author{comments(limit: 5, order: "created_at desc")}, tags'
  prisma-relations explain comments 'commentable{images}' -r relations.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, text := args[0], args[1]

			reg, _, err := a.registry(a.cfg.RelationsPath)
			if err != nil {
				return err
			}
			spec, err := withdsl.Parse(text)
			if err != nil {
				return err
			}
			nodes, err := eagerload.New(reg, nil).Plan(table, spec)
			if err != nil {
				return err
			}

			plan := eagerload.Explain(nodes)
			if plain {
				fmt.Fprint(cmd.OutOrStdout(), plan)
				return nil
			}
			ui.PrintSection(fmt.Sprintf("Load plan for %s", table))
			if plan == "" {
				ui.PrintInfo("nothing to load")
				return nil
			}
			ui.PrintCodeBlock(plan)
			return nil
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "print the plan without decoration")

	return cmd
}
