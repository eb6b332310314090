package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"github.com/torvald-bar/bargo/internal/barlog"
	"github.com/torvald-bar/bargo/internal/config"
	"github.com/torvald-bar/bargo/internal/jobengine"
	"github.com/torvald-bar/bargo/internal/storageuri"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the job scheduler in the foreground",
	RunE:  runDaemon,
}

// stubDispatcher validates a job's destination URI and logs the run; the
// archive writer itself (frame encoding, compression, transport) is out of
// scope here, so a dispatched run does the one thing this package can:
// confirm the destination is well-formed and record that it ran.
type stubDispatcher struct {
	log *barlog.Logger
}

func (d *stubDispatcher) Dispatch(ctx context.Context, node *jobengine.JobNode) error {
	if _, err := storageuri.ParseURI(node.Config.Destination); err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}
	d.log.Infof("dispatched job %s (%s) to %s", node.Config.UUID, node.ArchiveType(), node.Config.Destination)
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	pidLock, err := acquireDaemonPIDFile()
	if err != nil {
		return err
	}
	defer pidLock.Unlock()

	scanLock, err := acquireScanLock()
	if err != nil {
		return err
	}
	defer scanLock.Unlock()

	log := barlog.New(barlog.LevelInfo, os.Stderr)

	eng := jobengine.NewEngine(log)
	eng.Dispatcher = &stubDispatcher{log: log}
	eng.SchedulerPeriod = config.GetDuration("scheduler-interval")
	eng.PairingPeriod = config.GetDuration("pairing-interval")
	eng.PairingTimeout = config.GetDuration("pairing-timeout")
	eng.SlaveConnectPeriod = config.GetDuration("slave-connect-interval")

	idx, err := rtCtx.openCatalog(config.GetString("catalog-path"))
	if err != nil {
		return err
	}
	eng.IndexUpdate = func(ctx context.Context) error {
		_, err := idx.Handle.Exists("SELECT 1")
		return err
	}

	watcher := jobengine.NewWatcher(config.GetString("jobs-dir"), eng)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher.Start(ctx)
	eng.Start(ctx)

	log.Infof("daemon started, watching %s", config.GetString("jobs-dir"))
	<-ctx.Done()
	log.Infof("daemon shutting down")

	eng.Stop()
	return watcher.Close()
}

func acquireDaemonPIDFile() (*flock.Flock, error) {
	path := config.GetString("daemon.pid-file")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("pid file lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("daemon already running (pid file locked: %s)", path)
	}
	_ = os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
	return lock, nil
}

// acquireScanLock takes the job-directory scan lock, blocking up to
// lock-timeout if another bar process (e.g. a one-shot CLI rescan) holds it.
func acquireScanLock() (*flock.Flock, error) {
	path := config.GetString("daemon.scan-lock-file")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	lock := flock.New(path)
	ctx, cancel := context.WithTimeout(context.Background(), config.GetDuration("lock-timeout"))
	defer cancel()
	ok, err := lock.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("scan lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("timed out waiting for job-directory scan lock: %s", path)
	}
	return lock, nil
}
