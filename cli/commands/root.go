// Package commands implements the prisma-relations CLI.
package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/satishbabariya/prisma-go-relations/cli/internal/config"
	"github.com/satishbabariya/prisma-go-relations/cli/internal/ui"
	"github.com/satishbabariya/prisma-go-relations/internal/debug"
	"github.com/satishbabariya/prisma-go-relations/relation"
	"github.com/satishbabariya/prisma-go-relations/schemafile"
)

// app is the state shared by the commands of one invocation.
type app struct {
	viper   *viper.Viper
	cfgFile string
	cfg     *config.Config
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{viper: viper.New()}

	cmd := &cobra.Command{
		Use:   "prisma-relations",
		Short: "Validate, explain and resolve eager-loaded relations",
		Long: `prisma-relations loads relation declarations from a YAML or JSON file
and batch-loads them against PostgreSQL, MySQL or SQLite.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
			cfg, err := config.Load(a.viper, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			debug.InitWriter(cmd.ErrOrStderr(), cfg.Debug)
			if cfg.ConfigFile != "" {
				debug.Debug("config loaded", "file", cfg.ConfigFile)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default .prisma-relations.yaml)")
	flags.StringP("relations", "r", "", "relation file, YAML or JSON (default relations.yaml)")
	flags.String("provider", "", "database provider: postgres, mysql or sqlite")
	flags.String("database-url", "", "database connection string (default $DATABASE_URL)")
	flags.Int("concurrency", 1, "sibling relations fetched at once")
	flags.Int("max-keys", 0, "split key sets larger than this across queries (0 disables)")
	flags.String("discriminator-policy", "skip", "unregistered polymorphic types: skip or error")
	flags.Bool("debug", false, "log every fetch to stderr")

	for key, flag := range map[string]string{
		config.KeyRelationsPath:       "relations",
		config.KeyProvider:            "provider",
		config.KeyDatabaseURL:         "database-url",
		config.KeyConcurrency:         "concurrency",
		config.KeyMaxKeysPerQuery:     "max-keys",
		config.KeyDiscriminatorPolicy: "discriminator-policy",
		config.KeyDebug:               "debug",
	} {
		_ = a.viper.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(newValidateCommand(a))
	cmd.AddCommand(newExplainCommand(a))
	cmd.AddCommand(newResolveCommand(a))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// Execute runs the CLI and prints the error, if any.
func Execute() error {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		ui.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
		ui.PrintError("%v", err)
		return err
	}
	return nil
}

// relationsPath returns the positional file argument or the configured one.
func (a *app) relationsPath(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return a.cfg.RelationsPath
}

// registry loads the relation file into a sealed registry.
func (a *app) registry(path string) (*relation.Registry, *schemafile.File, error) {
	reg := relation.NewRegistry()
	f, err := schemafile.Load(reg, config.AppFs, path)
	if err != nil {
		return nil, nil, err
	}
	reg.Seal()
	debug.Debug("relations loaded", "file", path, "tables", len(f.Sources()))
	return reg, f, nil
}
