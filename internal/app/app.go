package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"riverbank/internal/config"
	"riverbank/internal/database"
	"riverbank/internal/encryption"
	"riverbank/internal/httpapi"
	"riverbank/internal/metrics"
	"riverbank/internal/model"
	"riverbank/internal/moderation"
	"riverbank/internal/ratelimit"
	"riverbank/internal/riverbank"
	"riverbank/internal/vault"
)

// shutdownTimeout bounds how long in-flight requests may take to finish.
const shutdownTimeout = 10 * time.Second

// RiverbankApp is the application layer between the CLI and the exchange service.
// It constructs all dependencies from config and owns their lifecycles.
// The caller must call Close when done.
type RiverbankApp struct {
	cfg     *config.Config
	db      *database.SQLiteDatabase
	limiter ratelimit.Limiter
	vault   vault.Vault
	metrics *metrics.Metrics
	service *riverbank.Service
	logger  riverbank.Logger
	logFile *os.File
}

// NewRiverbankApp creates a fully wired RiverbankApp from the given config.
// secrets carries the credentials read from the environment.
func NewRiverbankApp(ctx context.Context, cfg *config.Config, secrets config.Secrets) (*RiverbankApp, error) {
	l, logFile, err := newLogger(cfg.LogDir, cfg.InstanceID, slog.LevelInfo)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: l}

	a := &RiverbankApp{cfg: cfg, logger: logger, logFile: logFile, metrics: metrics.New()}
	if err := a.wire(ctx, secrets); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *RiverbankApp) wire(ctx context.Context, secrets config.Secrets) error {
	cfg := a.cfg

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.InstanceID)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db
	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date: %w", err)
	}

	classifier, err := moderation.NewClassifierFromConfig(cfg.Moderation, secrets.ClassifierToken)
	if err != nil {
		return fmt.Errorf("creating classifier: %w", err)
	}
	moderator := moderation.NewModerator(classifier, cfg.Moderation.Timeout.Duration, a.logger, a.metrics)

	limiter, err := ratelimit.NewLimiterFromConfig(ctx, cfg.RateLimit, secrets.RedisPassword)
	if err != nil {
		return fmt.Errorf("creating rate limiter: %w", err)
	}
	a.limiter = ratelimit.WithMetrics(limiter, a.metrics)

	sealer, err := encryption.NewSealerFromConfig(cfg.Sealing)
	if err != nil {
		return fmt.Errorf("creating origin sealer: %w", err)
	}

	v, err := vault.NewVaultFromConfig(ctx, cfg.Vault, secrets)
	if err != nil {
		return fmt.Errorf("creating vault: %w", err)
	}
	a.vault = v

	a.service = riverbank.NewService(db, moderator, a.limiter, a.logger,
		riverbank.RealClock{}, riverbank.UUIDGenerator{},
		riverbank.WithOriginSealer(sealer),
		riverbank.WithReportPolicy(riverbank.NewReportPolicy(cfg.ReportThreshold)),
	)
	return nil
}

// Handler returns the HTTP surface of the service.
func (a *RiverbankApp) Handler() http.Handler {
	opts := httpapi.OptionsFromConfig(a.cfg.Server, a.cfg.RateLimit.Window.Or(time.Minute))
	return httpapi.NewServer(a.service, a.db, a.logger, a.metrics, opts)
}

// Serve listens on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (a *RiverbankApp) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Server.Addr, err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled.
func (a *RiverbankApp) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout.Or(30 * time.Second),
		WriteTimeout:      a.cfg.Server.WriteTimeout.Or(30 * time.Second),
		IdleTimeout:       a.cfg.Server.IdleTimeout.Or(90 * time.Second),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.logger.Info("listening", "addr", ln.Addr().String(), "prefix", a.cfg.Server.PathPrefix)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// Stats returns counts of bottles and false-positive reports.
func (a *RiverbankApp) Stats(ctx context.Context) (*model.Stats, error) {
	return a.service.Stats(ctx)
}

// SchemaVersion reports the applied migration version of the database.
func (a *RiverbankApp) SchemaVersion() (uint, error) {
	version, dirty, err := a.db.SchemaVersion()
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// Snapshot copies the database to a temp file and uploads it to the vault.
// It returns the name of the stored snapshot.
func (a *RiverbankApp) Snapshot(ctx context.Context) (string, error) {
	tmpDir, err := os.MkdirTemp("", "riverbank-snapshot-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir for snapshot: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// VACUUM INTO refuses to overwrite, so the target must not exist yet.
	tmpPath := filepath.Join(tmpDir, "riverbank.db")
	if err := a.db.BackupTo(ctx, tmpPath); err != nil {
		return "", err
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return "", fmt.Errorf("opening snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat snapshot: %w", err)
	}

	name := vault.SnapshotName(a.cfg.InstanceID, time.Now())
	if err := a.vault.PutSnapshot(ctx, name, f, info.Size()); err != nil {
		return "", fmt.Errorf("uploading snapshot to vault: %w", err)
	}
	a.logger.Info("snapshot uploaded", "name", name, "size", info.Size())
	return name, nil
}

// Snapshots lists the snapshots stored in the vault.
func (a *RiverbankApp) Snapshots(ctx context.Context) ([]vault.Snapshot, error) {
	return a.vault.ListSnapshots(ctx)
}

// RevealOrigin returns the origin address recorded for a bottle, unsealing it
// with the private key when needed. passphrase is only called for sealed
// origins.
func (a *RiverbankApp) RevealOrigin(ctx context.Context, id string, passphrase func() (string, error)) (string, error) {
	b, err := a.db.FindBottle(ctx, id)
	if err != nil {
		return "", fmt.Errorf("finding bottle: %w", err)
	}
	if b == nil {
		return "", riverbank.ErrNotFound
	}
	if !encryption.IsSealed(b.OriginAddress) {
		return b.OriginAddress, nil
	}

	keys := encryption.NewAgeKeys(a.cfg.Sealing)
	if !keys.IsConfigured() {
		return "", fmt.Errorf("origin is sealed but no keys found at %s", a.cfg.Sealing.PrivateKeyPath)
	}
	pass, err := passphrase()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	opener, err := keys.Unlock(pass)
	if err != nil {
		return "", fmt.Errorf("unlocking private key: %w", err)
	}
	a.logger.Info("origin revealed", "id", id)
	return opener.Open(b.OriginAddress)
}

// Close releases every resource held by the app.
func (a *RiverbankApp) Close() error {
	var firstErr error

	if a.limiter != nil {
		if err := a.limiter.Close(); err != nil {
			firstErr = fmt.Errorf("closing rate limiter: %w", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
