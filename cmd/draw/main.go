package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/whattoeat/internal/drawcli"
)

const (
	defaultBaseURL = "http://localhost:9080"
	defaultTimeout = 10 * time.Second
)

func main() {
	var (
		baseURL     = flag.String("url", defaultBaseURL, "Base URL of the service")
		local       = flag.Bool("local", false, "Draw in process instead of calling a server")
		catalogPath = flag.String("catalog", "", "Menu YAML for -local runs")
		seed        = flag.Uint64("seed", 0, "Random seed for -local runs")
		draws       = flag.Int("n", 1, "Number of draws")
		workers     = flag.Int("workers", runtime.NumCPU(), "Number of concurrent draw workers")
		spin        = flag.Bool("spin", false, "Stream one spinning session")
		showStats   = flag.Bool("stats", false, "Print the uniformity report")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose     = flag.Bool("verbose", false, "Print every draw")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		drawcli.ShowHelp(os.Stdout)
		return
	}

	if err := drawcli.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config := &drawcli.Config{
		BaseURL:     *baseURL,
		Local:       *local,
		CatalogPath: *catalogPath,
		Seed:        *seed,
		Draws:       *draws,
		Workers:     *workers,
		Spin:        *spin,
		Stats:       *showStats,
		Timeout:     *timeout,
		Verbose:     *verbose,
		Out:         os.Stdout,
	}
	if err := drawcli.Run(ctx, config); err != nil {
		os.Stderr.WriteString("draw failed: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
