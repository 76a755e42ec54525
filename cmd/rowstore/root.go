package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/lychee-technology/rowstore"
	"github.com/lychee-technology/rowstore/factory"
	"github.com/lychee-technology/rowstore/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app is the state shared by subcommands during one invocation.
type app struct {
	v          *viper.Viper
	configFile string
	modelsFile string
	showStats  bool

	cfg      *rowstore.Config
	engine   *factory.Engine
	registry *factory.Registry
	metrics  *factory.Metrics
	flush    func()
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:   "rowstore",
		Short: "Read and write table rows by primary or alternate key",
		Long: `rowstore addresses rows by single column, composite or alternate unique keys,
applies soft deletes transparently and prints results as JSON.

Models are declared in a YAML definitions file; connection settings come from
--config, a .env file and ROWSTORE_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			a.close(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (yaml, json or toml)")
	flags.StringVarP(&a.modelsFile, "models", "m", "models.yaml", "model definitions file")
	flags.String("driver", "", "database driver: pgx, dsql, postgres, sqlite3, duckdb, mysql, memory")
	flags.String("dsn", "", "database connection string")
	flags.Bool("log-queries", false, "log every statement at debug level")
	flags.BoolVar(&a.showStats, "metrics", false, "print operation metrics to stderr on exit")
	_ = a.v.BindPFlag("database.driver", flags.Lookup("driver"))
	_ = a.v.BindPFlag("database.dsn", flags.Lookup("dsn"))
	_ = a.v.BindPFlag("logging.log_queries", flags.Lookup("log-queries"))

	root.AddCommand(
		newFindCmd(a),
		newFindAltCmd(a),
		newFirstCmd(a),
		newCountCmd(a),
		newSaveCmd(a),
		newDeleteCmd(a),
		newPurgeCmd(a),
	)
	return root
}

func (a *app) open(ctx context.Context) error {
	cfg, err := loadConfig(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	flush, err := logging.Install(cfg.Logging)
	if err != nil {
		return err
	}
	a.flush = flush

	defs, err := factory.LoadDefinitions(a.modelsFile)
	if err != nil {
		return err
	}

	engine, err := factory.OpenEngine(ctx, cfg.Database, cfg.Logging.LogQueries)
	if err != nil {
		return err
	}
	a.engine = engine

	var opts []factory.Option
	if cfg.Metrics.Enabled {
		a.metrics = factory.NewMetrics(cfg.Metrics.Namespace)
		opts = append(opts, factory.WithMetrics(a.metrics))
	}
	a.registry = factory.NewRegistry(engine.QueryEngine, opts...)
	if err := factory.RegisterDefinitions(a.registry, defs); err != nil {
		return err
	}
	zap.S().Debugw("models registered", "driver", engine.Driver, "models", a.registry.Names())
	return nil
}

func (a *app) close(stderr io.Writer) {
	if a.showStats && a.metrics != nil {
		a.metrics.WritePrometheus(stderr)
	}
	a.engine.Close()
	if a.flush != nil {
		a.flush()
	}
}

func (a *app) model(name string) (rowstore.Model, error) {
	m, ok := a.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown model %q (have %v)", name, a.registry.Names())
	}
	return m, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		zap.S().Errorw("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
