// internal/dispatcher/runner.go
package dispatcher

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alphapay/billing-dispatcher/internal/events"
	"github.com/alphapay/billing-dispatcher/internal/intake"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner owns the process lifecycle: the periodic dispatch loop, optional
// intake of a local transactions file, signal handling and shutdown.
type Runner struct {
	logger     *zap.Logger
	dispatcher *Dispatcher
	eventBus   *events.Bus
	intake     *intake.Loader
	intakeFile string
	interval   time.Duration
	shutdownCh chan os.Signal
}

func NewRunner(d *Dispatcher, eventBus *events.Bus, loader *intake.Loader, intakeFile string, interval time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		logger:     logger,
		dispatcher: d,
		eventBus:   eventBus,
		intake:     loader,
		intakeFile: intakeFile,
		interval:   interval,
		shutdownCh: make(chan os.Signal, 1),
	}
}

func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case sig := <-r.shutdownCh:
			r.logger.Info("Signal received: " + sig.String())
			cancel()
		case <-runCtx.Done():
		}
	}()

	g, gCtx := errgroup.WithContext(runCtx)

	if r.intake != nil && r.intakeFile != "" {
		g.Go(func() error {
			count, err := r.intake.LoadFile(gCtx, r.intakeFile)
			if err != nil {
				// Intake is a seeding convenience; a bad file must not
				// stop the dispatch loop.
				r.logger.Error("Intake file load failed", zap.Error(err))
				return nil
			}
			r.logger.Info("Intake file loaded", zap.Int("count", count))
			return nil
		})
	}

	g.Go(func() error {
		return r.dispatchLoop(gCtx)
	})

	err := g.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if busErr := r.eventBus.Shutdown(shutdownCtx); busErr != nil {
		r.logger.Warn("Event bus did not drain in time", zap.Error(busErr))
	}

	return err
}

// dispatchLoop runs one cycle per tick. A failed cycle is logged and
// swallowed; the schedule never stops until the context does.
func (r *Runner) dispatchLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Dispatch loop started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Dispatch loop stopped")
			return nil
		case <-ticker.C:
			if err := r.dispatcher.RunCycle(ctx); err != nil {
				r.logger.Error("Unknown error has occurred while performing transactions",
					zap.Error(err))
			}
		}
	}
}

// Shutdown flushes the logger; zap sync errors on terminal stdout are noise.
func (r *Runner) Shutdown() {
	r.logger.Info("Dispatcher shutting down gracefully")

	if err := r.logger.Sync(); err != nil {
		if !os.IsNotExist(err) &&
			err.Error() != "sync /dev/stdout: invalid argument" &&
			err.Error() != "sync /dev/stderr: inappropriate ioctl for device" {
			os.Stderr.WriteString("failed to sync logger during shutdown: " + err.Error() + "\n")
		}
	}
}
