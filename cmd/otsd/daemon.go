package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"otsgo/internal/attestation"
	"otsgo/internal/calendar"
	"otsgo/internal/config"
	"otsgo/internal/detached"
	"otsgo/internal/logging"
	"otsgo/internal/merkle"
	"otsgo/internal/ops"
	"otsgo/internal/pending"
	"otsgo/internal/timestamp"
	"otsgo/internal/watcher"
)

// pendingFile is one file waiting to be included in the next Merkle
// batch submitted to the calendar.
type pendingFile struct {
	path   string
	digest [32]byte
}

// Daemon watches configured directories, batches stabilized files into
// Merkle trees, submits each batch's tip to the configured calendars, and
// periodically retries Upgrade on proofs still awaiting a Bitcoin
// attestation.
type Daemon struct {
	logger *logging.Logger
	audit  *logging.AuditLogger

	mu  sync.Mutex
	cfg *config.Config

	w     *watcher.Watcher
	store *pending.Store

	batch   []pendingFile
	batchMu sync.Mutex

	wg   sync.WaitGroup
	stop chan struct{}
}

// NewDaemon constructs a Daemon over cfg, logging through logger. Audit
// events are written through an audit logger opened with the default
// audit configuration; failure to open it does not prevent the daemon
// from starting.
func NewDaemon(cfg *config.Config, logger *logging.Logger) *Daemon {
	audit, err := logging.NewAuditLogger(nil)
	if err != nil {
		logger.Warn("audit log unavailable", "error", err)
	}
	return &Daemon{
		cfg:    cfg,
		logger: logger,
		audit:  audit,
		stop:   make(chan struct{}),
	}
}

// Start opens the pending-proof store, begins watching the configured
// directories, and launches the batch-flush and upgrade-polling loops.
// It returns once the watcher is live; the loops run in the background
// until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	store, err := pending.Open(d.cfg.Storage.PendingDBPath)
	if err != nil {
		return fmt.Errorf("open pending store: %w", err)
	}
	d.store = store

	debounceSec := d.cfg.Watch.DebounceMs / 1000
	if debounceSec < 1 {
		debounceSec = 1
	}

	w, err := watcher.New(d.cfg.Watch.Paths, debounceSec)
	if err != nil {
		store.Close()
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		store.Close()
		return fmt.Errorf("start watcher: %w", err)
	}
	d.w = w

	d.wg.Add(3)
	go d.consumeEvents()
	go d.batchLoop(ctx)
	go d.upgradeLoop(ctx)

	return nil
}

// Stop shuts down the watcher and background loops and closes the
// pending store.
func (d *Daemon) Stop() error {
	close(d.stop)
	if d.w != nil {
		d.w.Stop()
	}
	d.wg.Wait()
	if d.audit != nil {
		d.audit.Close()
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Reconfigure swaps in a freshly-loaded config. Calendar settings, the
// include/exclude patterns, MaxFileSize and the proof directory apply to
// the next event, batch flush or upgrade round. Watch paths, the debounce
// interval, the batch window, the upgrade interval, the pending store and
// logging settings are read only at startup and take effect on restart.
func (d *Daemon) Reconfigure(cfg *config.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
}

func (d *Daemon) config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// consumeEvents drains the watcher's event channel into the current
// batch, filtering by the configured include and exclude patterns.
func (d *Daemon) consumeEvents() {
	defer d.wg.Done()
	defer logging.DefaultCrashHandler().RecoverGoroutine()

	for {
		select {
		case <-d.stop:
			return

		case ev, ok := <-d.w.Events():
			if !ok {
				return
			}
			if d.excluded(ev.Path) {
				continue
			}
			cfg := d.config()
			if cfg.Watch.MaxFileSize > 0 && ev.Size > cfg.Watch.MaxFileSize {
				d.logger.Warn("skipping oversized file", "path", ev.Path, "size", ev.Size)
				continue
			}

			d.batchMu.Lock()
			d.batch = append(d.batch, pendingFile{path: ev.Path, digest: ev.Hash})
			d.batchMu.Unlock()

			d.logger.Info("queued for stamping", "path", ev.Path)

		case err, ok := <-d.w.Errors():
			if !ok {
				continue
			}
			d.logger.Warn("watcher error", "error", err)
		}
	}
}

func (d *Daemon) excluded(path string) bool {
	base := filepath.Base(path)
	cfg := d.config()
	if len(cfg.Watch.IncludePatterns) > 0 {
		included := false
		for _, pattern := range cfg.Watch.IncludePatterns {
			if ok, _ := filepath.Match(pattern, base); ok {
				included = true
				break
			}
		}
		if !included {
			return true
		}
	}
	for _, pattern := range cfg.Watch.ExcludePatterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// batchLoop closes the current batch and submits it to the calendar
// every BatchWindowMs, if there's anything to send.
func (d *Daemon) batchLoop(ctx context.Context) {
	defer d.wg.Done()
	defer logging.DefaultCrashHandler().RecoverGoroutine()

	windowMs := d.config().Watch.BatchWindowMs
	if windowMs <= 0 {
		windowMs = 10000
	}
	ticker := time.NewTicker(time.Duration(windowMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.flushBatch(ctx)
		}
	}
}

func (d *Daemon) flushBatch(ctx context.Context) {
	d.batchMu.Lock()
	batch := d.batch
	d.batch = nil
	d.batchMu.Unlock()

	if len(batch) == 0 {
		return
	}

	cfg := d.config()

	msgs := make([]timestamp.Message, len(batch))
	for i, pf := range batch {
		msgs[i] = timestamp.FileDigest{Algo: ops.Sha256, Digest: pf.digest[:]}
	}

	builders, err := merkle.WithNonces(msgs)
	if err != nil {
		d.logger.Error("nonce batch", "error", err)
		return
	}

	tip, err := merkle.Build(builders)
	if err != nil {
		d.logger.Error("build merkle batch", "error", err)
		return
	}

	var tipDigest [32]byte
	copy(tipDigest[:], tip)

	stampCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Calendar.TimeoutSec)*time.Second+5*time.Second)
	defer cancel()

	tipHex := hex.EncodeToString(tipDigest[:])
	if d.audit != nil {
		d.audit.LogStampRequested(ctx, tipHex, len(cfg.Calendar.Aggregators))
	}

	poster := calendar.NewHTTPPoster(nil)
	tipTS, err := calendar.Stamp(stampCtx, poster, tipDigest, calendar.Options{
		Aggregators:     cfg.Calendar.Aggregators,
		MinAttestations: cfg.Calendar.MinAttestations,
		Timeout:         time.Duration(cfg.Calendar.TimeoutSec) * time.Second,
	})
	if err != nil {
		d.logger.Error("stamp batch", "error", err, "batch_size", len(batch))
		if d.audit != nil {
			d.audit.LogStampConfirmed(ctx, tipHex, false, map[string]interface{}{"error": err.Error()})
		}
		return
	}
	if d.audit != nil {
		d.audit.LogStampConfirmed(ctx, tipHex, true, map[string]interface{}{"batch_size": len(batch)})
	}

	finished := merkle.Finish(builders, tipTS)
	now := time.Now().Unix()

	for i, pf := range batch {
		file, err := detached.New(ops.Sha256, pf.digest[:], finished[i].Steps)
		if err != nil {
			d.logger.Error("build proof envelope", "path", pf.path, "error", err)
			continue
		}

		outPath := filepath.Join(cfg.Storage.ProofDir, hex.EncodeToString(pf.digest[:])+".ots")
		if err := os.WriteFile(outPath, file.Bytes(), 0644); err != nil {
			d.logger.Error("write proof", "path", outPath, "error", err)
			continue
		}

		if err := d.store.Put(pending.Record{
			Digest:      pf.digest,
			Algo:        ops.Sha256,
			Steps:       finished[i].Steps,
			SubmittedAt: now,
		}); err != nil {
			d.logger.Error("record pending proof", "path", pf.path, "error", err)
			continue
		}

		d.logger.Info("stamped", "path", pf.path, "proof", outPath)
	}
}

// upgradeLoop periodically retries Upgrade on every proof still awaiting
// a Bitcoin attestation.
func (d *Daemon) upgradeLoop(ctx context.Context) {
	defer d.wg.Done()
	defer logging.DefaultCrashHandler().RecoverGoroutine()

	intervalSec := d.config().Calendar.UpgradeIntervalSec
	if intervalSec <= 0 {
		intervalSec = 3600
	}
	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.upgradePending(ctx)
		}
	}
}

func (d *Daemon) upgradePending(ctx context.Context) {
	cfg := d.config()

	records, err := d.store.ListAll()
	if err != nil {
		d.logger.Error("list pending proofs", "error", err)
		return
	}

	getter := calendar.NewHTTPGetter(nil)
	now := time.Now().Unix()

	for _, r := range records {
		ts := timestamp.Timestamp{
			Msg:   timestamp.FileDigest{Algo: r.Algo, Digest: r.Digest[:]},
			Steps: r.Steps,
		}

		digestHex := hex.EncodeToString(r.Digest[:])
		if d.audit != nil {
			d.audit.LogUpgradeAttempt(ctx, digestHex)
		}

		upgradeCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Calendar.TimeoutSec)*time.Second)
		upgraded, changed, err := calendar.Upgrade(upgradeCtx, getter, ts)
		cancel()
		if err != nil {
			d.logger.Warn("upgrade attempt failed", "digest", digestHex, "error", err)
			continue
		}
		if !changed {
			if err := d.store.Touch(r.Digest, now, r.Steps); err != nil {
				d.logger.Warn("touch pending record", "error", err)
			}
			continue
		}

		file, err := detached.New(r.Algo, r.Digest[:], upgraded.Steps)
		if err != nil {
			d.logger.Error("rebuild upgraded proof", "error", err)
			continue
		}

		outPath := filepath.Join(cfg.Storage.ProofDir, hex.EncodeToString(r.Digest[:])+".ots")
		if err := os.WriteFile(outPath, file.Bytes(), 0644); err != nil {
			d.logger.Error("write upgraded proof", "path", outPath, "error", err)
			continue
		}

		if err := d.store.Delete(r.Digest); err != nil {
			d.logger.Warn("remove confirmed record from pending store", "error", err)
		}

		if d.audit != nil {
			var blockHeight uint32
			if infos, err := timestamp.Describe(upgraded); err == nil {
				for _, info := range infos {
					if bitcoin, ok := info.Attestation.(attestation.Bitcoin); ok {
						blockHeight = bitcoin.BlockHeight
						break
					}
				}
			}
			d.audit.LogUpgradeConfirmed(ctx, digestHex, blockHeight)
		}

		d.logger.Info("upgraded to confirmed attestation", "digest", digestHex, "proof", outPath)
	}
}
