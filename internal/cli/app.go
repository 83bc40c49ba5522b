package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/keydozer/internal/auth"
	"github.com/dmitrijs2005/keydozer/internal/clock"
	"github.com/dmitrijs2005/keydozer/internal/config"
	"github.com/dmitrijs2005/keydozer/internal/filex"
	"github.com/dmitrijs2005/keydozer/internal/journal"
	"github.com/dmitrijs2005/keydozer/internal/logging"
	"github.com/dmitrijs2005/keydozer/internal/notify"
	"github.com/dmitrijs2005/keydozer/internal/store"
	"github.com/dmitrijs2005/keydozer/internal/store/memory"
	"github.com/dmitrijs2005/keydozer/internal/store/mongo"
	"github.com/dmitrijs2005/keydozer/internal/store/postgres"
	"github.com/dmitrijs2005/keydozer/internal/store/s3"
	"github.com/dmitrijs2005/keydozer/internal/store/sqlite"
	"github.com/dmitrijs2005/keydozer/internal/vault"
)

type App struct {
	config *config.Config
	log    logging.Logger
	svc    *vault.Service
	reader *bufio.Reader
	out    io.Writer

	closers []func(context.Context) error
}

// openRemote connects the configured remote backend.
func openRemote(ctx context.Context, c *config.Config) (store.Adapter, func(context.Context) error, error) {
	switch c.RemoteBackend {
	case config.BackendMemory:
		return memory.New(), nil, nil
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, c.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(db), func(context.Context) error { return db.Close() }, nil
	case config.BackendMongo:
		s, err := mongo.Connect(ctx, c.MongoURI, c.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendS3:
		s, err := s3.Open(ctx, s3.Options{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown remote backend %q", c.RemoteBackend)
}

// authProvider picks where passwords are verified. A shared remote backend
// is the owner directory, so a password set on one device unlocks every
// other device. The in-memory backend does not outlive the process, so
// credentials then stay in the local database.
func authProvider(db *sql.DB, local, remote store.Adapter, c *config.Config, clk clock.Clock) auth.Provider {
	if remote == nil || c.RemoteBackend == config.BackendMemory {
		return auth.NewSQLiteProvider(db, c.KDF(), clk)
	}
	return auth.NewDirectoryProvider(store.NewOwnerRepository(remote), store.NewOwnerRepository(local), c.KDF(), clk)
}

// newService wires the vault over an opened local database and remote store.
func newService(db *sql.DB, remote store.Adapter, c *config.Config, clk clock.Clock, notifier notify.Notifier, log logging.Logger) (*vault.Service, error) {
	local := sqlite.New(db)
	return vault.New(vault.Options{
		Local:       local,
		Remote:      remote,
		Auth:        authProvider(db, local, remote, c, clk),
		Notifier:    notifier,
		Journal:     journal.New(journal.NewSQLiteStore(db), clk, log),
		Clock:       clk,
		KDF:         c.KDF(),
		IdleTimeout: c.SessionIdleTimeout,
		Log:         log,
	})
}

// NewApp opens the local vault database, the remote backend and builds the
// vault service. Close releases everything NewApp opened.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	a := &App{config: c, log: log, reader: bufio.NewReader(os.Stdin), out: os.Stdout}

	if err := filex.EnsureParentDir(c.LocalDBPath); err != nil {
		return nil, err
	}
	db, err := sqlite.Open(ctx, c.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })

	remote, closeRemote, err := openRemote(ctx, c)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("remote %s: %w", c.RemoteBackend, err)
	}
	if closeRemote != nil {
		a.closers = append(a.closers, closeRemote)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if c.NotifyWebhook != "" {
		notifier = notify.NewWebhookNotifier(c.NotifyWebhook, log)
	}

	svc, err := newService(db, remote, c, clock.Real(), notifier, log)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.svc = svc
	return a, nil
}

// Close locks the vault and closes the stores in reverse order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.svc != nil {
		errs = append(errs, a.svc.Lock(ctx))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Run settles interrupted operations and runs the REPL until the user exits
// or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	a.log.Info(ctx, "starting keydozer", "local_db", a.config.LocalDBPath, "remote", a.config.RemoteBackend)
	if rep, err := a.svc.Recover(ctx); err != nil {
		a.log.Error(ctx, "recovery incomplete", "error", err)
	} else if rep.Committed+rep.Compensated > 0 {
		fmt.Fprintf(a.out, "Recovered %d interrupted operations.\n", rep.Committed+rep.Compensated)
	}

	fmt.Fprintln(a.out, "Welcome to keydozer (type 'help' for commands)")

	// the REPL blocks on stdin, so a signal ends Run without waiting for it
	done := make(chan struct{})
	go func() {
		defer close(done)
		runREPL(ctx, a, a.status, a.reader)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		fmt.Fprintln(a.out)
		a.log.Info(context.Background(), "signal received, locking vault")
	}
	return a.Close(context.Background())
}
