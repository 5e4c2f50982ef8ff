package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/brettbedarf/deskfs"
	"github.com/brettbedarf/deskfs/config"
	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/brettbedarf/deskfs/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries state shared by every subcommand
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	rt      *deskfs.Runtime
	metrics *http.Server
}

func main() {
	a := &app{v: viper.New()}
	err := a.rootCmd().Execute()
	// flush the snapshot even when the command failed
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "deskfs",
		Short:         "Virtual desktop file store",
		Long:          "deskfs keeps a tree of files and folders in a durable snapshot and lets you browse it from a shell or a read-only FUSE mount.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return a.open(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "Path to a YAML or JSON config file")
	flags.StringP("backend", "b", config.DefaultBackend, "Snapshot store: memory, file, badger or sqlite")
	flags.StringP("data", "d", config.DefaultDataPath, "Data directory or database file for the store")
	flags.String("snapshot-key", config.DefaultSnapshotKey, "Key the tree snapshot is stored under")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	flags.IntP("verbose", "v", config.InfoVerbose, "Log verbosity level between 1 (error) and 5 (trace)")
	flags.String("log-level", "", "Log level by name (trace, debug, info, warn, error); overrides --verbose")

	a.v.SetEnvPrefix("DESKFS")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(flags); err != nil {
		panic(err)
	}

	root.AddCommand(a.shellCmd(), a.treeCmd(), a.catCmd(), a.rmCmd(), a.mountCmd())
	return root
}

// override collects values set by flag or environment. Unset keys keep the
// file or default value.
func (a *app) override() *config.ConfigOverride {
	o := &config.ConfigOverride{}
	if a.v.IsSet("backend") {
		o.Backend = util.Pointer(a.v.GetString("backend"))
	}
	if a.v.IsSet("data") {
		o.DataPath = util.Pointer(a.v.GetString("data"))
	}
	if a.v.IsSet("snapshot-key") {
		o.SnapshotKey = util.Pointer(a.v.GetString("snapshot-key"))
	}
	if a.v.IsSet("metrics-addr") {
		o.MetricsAddr = util.Pointer(a.v.GetString("metrics-addr"))
	}
	if a.v.IsSet("verbose") {
		o.LogLvl = util.Pointer(a.v.GetInt("verbose"))
	}
	return o
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if path := a.v.GetString("config"); path != "" {
		fileOverride, err := config.LoadConfigOverrideFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg.Merge(fileOverride)
	}
	cfg.Merge(a.override())
	if name := a.v.GetString("log-level"); name != "" {
		lvl, err := util.ParseLogLevel(name)
		if err != nil {
			return nil, err
		}
		cfg.LogLvl = lvl
	}
	return cfg, nil
}

func (a *app) open(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	util.InitializeLogger(cfg.LogLvl)
	logger := util.GetLogger("main")
	a.cfg = cfg

	rt, err := deskfs.Open(ctx, cfg, func(err error) {
		fmt.Fprintf(os.Stderr, "warning: change kept in memory but not saved: %v\n", err)
	})
	if err != nil {
		return err
	}
	a.rt = rt
	logger.Debug().Str("backend", string(cfg.Backend)).Int("nodes", rt.Session.Len()).Msg("Session ready")

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(rt.Registry))
		a.metrics = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics server failed")
			}
		}()
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
	}
	return nil
}

func (a *app) close() error {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
	if a.rt == nil {
		return nil
	}
	return a.rt.Close()
}
