package drawcli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/okian/whattoeat/internal/domain/stats"
	"github.com/okian/whattoeat/internal/domain/types"
	"github.com/okian/whattoeat/pkg/logger"
)

// PercentageMultiplier converts shares to percentages.
const PercentageMultiplier = 100

// Run executes one CLI invocation.
func Run(ctx context.Context, config *Config) error {
	if config.Out == nil {
		config.Out = os.Stdout
	}
	if config.Draws < 1 {
		config.Draws = 1
	}
	if config.Workers < 1 {
		config.Workers = 1
	}

	backend, err := openBackend(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close backend", logger.Error(err))
		}
	}()

	if config.Spin {
		return spinOnce(ctx, backend, config.Out)
	}

	vendors, err := backend.Vendors(ctx)
	if err != nil {
		return fmt.Errorf("catalog retrieval failed: %w", err)
	}
	keys := make([]string, len(vendors))
	for i, v := range vendors {
		keys[i] = vendorKey(v.Group, v.Name)
	}
	tally := stats.NewTally(keys...)

	summary, err := drawMany(ctx, backend, config, tally)
	if err != nil {
		return err
	}
	displaySummary(ctx, summary)

	if config.Stats {
		return writeReport(config.Out, tally.Report())
	}
	return nil
}

func openBackend(ctx context.Context, config *Config) (Backend, error) {
	if config.Local {
		return NewLocal(ctx, config.CatalogPath, config.Seed)
	}
	r := NewRemote(config.BaseURL, config.Timeout)
	if err := r.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}
	return r, nil
}

func vendorKey(group, vendor string) string {
	if group == "" {
		return vendor
	}
	return group + "/" + vendor
}

func oneLine(label string) string {
	return strings.ReplaceAll(label, "\n", " · ")
}

// spinOnce streams a single session and prints every tick.
func spinOnce(ctx context.Context, backend Backend, out io.Writer) error {
	d, err := backend.Spin(ctx, func(t types.Tick) {
		fmt.Fprintf(out, "[%2d/%d] %s\n", t.Step, t.Steps, oneLine(t.Label))
	})
	if err != nil {
		return fmt.Errorf("spin failed: %w", err)
	}
	fmt.Fprintf(out, "=> %s\n", oneLine(d.Label))
	return nil
}

// drawMany performs config.Draws draws across config.Workers workers.
func drawMany(ctx context.Context, backend Backend, config *Config, tally *stats.Tally) (Summary, error) {
	summary := Summary{Requested: config.Draws, StartTime: time.Now()}

	var (
		succeeded int64
		failed    int64
		mu        sync.Mutex
		wg        sync.WaitGroup
	)
	jobs := make(chan int, config.Workers*2)

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				d, err := backend.Draw(ctx)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					logger.Get().Debug(ctx, "draw failed", logger.Error(err))
					continue
				}
				atomic.AddInt64(&succeeded, 1)

				mu.Lock()
				tally.Add(vendorKey(d.Group, d.Vendor))
				if config.Verbose || config.Draws == 1 {
					fmt.Fprintln(config.Out, oneLine(d.Label))
				}
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < config.Draws; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	summary.Succeeded = int(atomic.LoadInt64(&succeeded))
	summary.Failed = int(atomic.LoadInt64(&failed))
	summary.Duration = time.Since(summary.StartTime)

	if summary.Succeeded == 0 {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		return summary, fmt.Errorf("all %d draws failed", summary.Failed)
	}
	return summary, nil
}

func displaySummary(ctx context.Context, s Summary) {
	var drawsPerSecond float64
	if s.Duration > 0 {
		drawsPerSecond = float64(s.Succeeded) / s.Duration.Seconds()
	}
	logger.Get().Info(ctx, "draws completed",
		logger.Int("requested", s.Requested),
		logger.Int("succeeded", s.Succeeded),
		logger.Int("failed", s.Failed),
		logger.Duration("duration", s.Duration),
		logger.Float64("drawsPerSecond", drawsPerSecond))
}

// writeReport prints the frequency table followed by the uniformity figures.
func writeReport(out io.Writer, r stats.Report) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VENDOR\tCOUNT\tSHARE\tEXPECTED")
	for _, b := range r.Buckets {
		fmt.Fprintf(tw, "%s\t%d\t%.2f%%\t%.1f\n", b.Key, b.Count, b.Share*PercentageMultiplier, b.Expected)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "total=%d chi_square=%.3f max_deviation=%.4f\n", r.Total, r.ChiSquare, r.MaxDeviation)
	return err
}
