// Command ifai is the terminal front-end: an AI-narrated text adventure.
//
// Configuration comes from IFAI_* environment variables and an optional
// .env file; run with -help-env to list them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hupe1980/ifai"
	"github.com/hupe1980/ifai/config"
	"github.com/hupe1980/ifai/dispatch"
	"github.com/hupe1980/ifai/fileio"
	"github.com/hupe1980/ifai/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ifai: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	helpEnv := flag.Bool("help-env", false, "list the environment variables and exit")
	altScreen := flag.Bool("alt-screen", true, "use the terminal's alternate screen")
	flag.Parse()
	if *helpEnv {
		return config.Usage()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// The UI owns the terminal, so logs only go to IFAI_LOG_FILE.
	logger, closer, err := ifai.LoggerFromConfig(cfg, nil)
	if err != nil {
		return err
	}
	defer closer.Close()

	var reg *prometheus.Registry
	if cfg.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	game, err := ifai.FromConfig(cfg, func(o *ifai.Options) {
		o.Logger = logger
		if reg != nil {
			o.Registerer = reg
		}
	})
	if err != nil {
		return err
	}

	opts := []tea.ProgramOption{}
	if *altScreen {
		opts = append(opts, tea.WithAltScreen())
	}

	program, d := newProgram(game, fileio.OS{}, opts...)

	if err := game.Start(); err != nil {
		return err
	}
	logger.Info("ifai started", "provider", game.Provider().Info().Provider, "model", game.Provider().Info().Name)

	_, runErr := program.Run()
	d.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := game.Stop(ctx); err != nil {
		logger.Warn("engine did not stop in time", "error", err)
	}
	return runErr
}

// newProgram attaches a dispatcher to game that forwards view changes and
// the exit signal into a bubbletea program.
func newProgram(game *ifai.Game, fio fileio.FileIO, opts ...tea.ProgramOption) (*tea.Program, *dispatch.Dispatcher) {
	// The dispatcher only calls back once the game started, after program
	// is assigned.
	var program *tea.Program
	d := game.NewDispatcher(func(o *dispatch.Options) {
		o.OnChange = func(v dispatch.View) { program.Send(viewMsg(v)) }
		o.OnExit = func() { program.Send(exitMsg{}) }
	})
	program = tea.NewProgram(newModel(d, fio), opts...)
	return program, d
}

func serveMetrics(addr string, reg *prometheus.Registry, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", addr)
	return srv
}
