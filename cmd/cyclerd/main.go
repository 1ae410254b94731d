// Command cyclerd is the process entrypoint: a cobra command tree exposing
// run, validate, replay and serve, grounded on the teacher's cli.RootCmd
// (persistent --config flag bound through viper, cobra.OnInitialize
// config discovery) generalized from a single HTTP-serving command to four
// cycler-lifecycle subcommands.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/fieldcore/cyclerd/config"
	"github.com/fieldcore/cyclerd/logging"
	"github.com/fieldcore/cyclerd/observability"
	"github.com/fieldcore/cyclerd/router"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cyclerd",
	Short: "cycler execution framework process",
	Long: `cyclerd runs the cycler graph described by a node manifest: one
goroutine per cycler instance, mixed real-time and perception scheduling,
lock-free data hand-off, and an observability server for live inspection.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.AddCommand(validateCmd, serveCmd, replayCmd, runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.RuntimeConfig, error) {
	return config.Load(cfgFile)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "parse the manifest into node declarations and report conversion errors, without running catalog.Build or starting any cycler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		manifest, err := config.LoadManifest(cfg)
		if err != nil {
			return err
		}

		decls, err := manifest.ToNodeDecls()
		if err != nil {
			return err
		}

		fmt.Printf("manifest %s: %d node declarations parsed\n", cfg.ManifestPath, len(decls))
		fmt.Println("note: full catalog.Build requires deployment-registered dictionary roots; see cmd/cyclergen.")
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run only the observability server, with no cyclers attached (useful for protocol testing)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log := logging.New(cfg.Log.Level, cfg.Log.Format)
		entry := logging.ForComponent(log, "observability")

		srv := observability.NewServer(observability.ServerConfig{
			Addr:      cfg.Observability.Addr,
			RateLimit: cfg.Observability.RateLimit,
		}, router.New(), router.New(), router.New())

		e := echo.New()
		e.HideBanner = true
		srv.Echo(e)

		entry.WithField("addr", cfg.Observability.Addr).Info("observability server listening")

		errCh := make(chan error, 1)
		go func() { errCh <- e.Start(cfg.Observability.Addr) }()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		select {
		case <-ctx.Done():
			return e.Shutdown(context.Background())
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		}
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay [instance]",
	Short: "replay recorded frames for an instance from the configured recording file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("replay requested for instance %q from %s; wire a recording.ReplayInstance in a deployment-specific main to drive this.\n", args[0], cfg.Recording.Path)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start every cycler described by the manifest and serve observability until stopped",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := loadConfig()
		if err != nil {
			return err
		}
		return fmt.Errorf("run: wire supervisor.New with this deployment's cycler.Instance set in a project-specific main; see cmd/cyclergen and the supervisor package")
	},
}
