// Package server assembles the gophguard process: it opens the database,
// applies migrations, wires the services and runs the HTTP API and the gRPC
// health endpoint until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/dbx"
	"github.com/dmitrijs2005/gophguard/internal/logging"
	"github.com/dmitrijs2005/gophguard/internal/server/auth"
	"github.com/dmitrijs2005/gophguard/internal/server/config"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophguard/internal/server/services"

	gs "github.com/dmitrijs2005/gophguard/internal/server/grpc"
	hs "github.com/dmitrijs2005/gophguard/internal/server/http"
)

const healthProbeInterval = 10 * time.Second

// Services bundles the business services built over one database.
type Services struct {
	Minter      auth.TokenMinter
	Tokens      *auth.RefreshTokenService
	Ledger      *services.RefreshLedger
	Sessions    *services.SessionService
	Mfa         *services.MfaService
	Credentials *services.CredentialService
	Users       *services.UserService
}

// NewServices wires every service by constructor injection.
func NewServices(db *sql.DB, repos repomanager.RepositoryManager, c *config.Config, logger logging.Logger) *Services {
	tx := dbx.NewSQLTransactor(db, nil)

	minter := auth.NewJWTMinter([]byte(c.SecretKey), c.AccessTokenValidityDuration)
	tokens := auth.NewRefreshTokenService(c.RefreshTokenValidityDuration)
	hasher := auth.NewBcryptHasher(c.BcryptCost)
	totp := auth.NewTOTPService(c.MfaIssuer, c.MfaSkew)

	ledger := services.NewRefreshLedger(tx, repos, tokens, c.RevokeChainOnReuse, logger)

	return &Services{
		Minter:      minter,
		Tokens:      tokens,
		Ledger:      ledger,
		Sessions:    services.NewSessionService(tx, repos, hasher, totp, minter, ledger, c, logger),
		Mfa:         services.NewMfaService(tx, repos, totp, minter, ledger, totp.Issuer(), logger),
		Credentials: services.NewCredentialService(tx, repos, hasher, logger),
		Users:       services.NewUserService(tx, repos, logger),
	}
}

// OpenDatabase connects through the pgx stdlib driver, checks the
// connection and applies pending migrations.
func OpenDatabase(ctx context.Context, dsn string, repos repomanager.RepositoryManager) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}
	return db, nil
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	services *Services
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	repos := repomanager.NewPostgresRepositoryManager()
	db, err := OpenDatabase(ctx, c.DatabaseDSN, repos)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		services: NewServices(db, repos, c, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) httpHandler() *hs.Handler {
	cookies := hs.CookieOptions{
		Secure:        app.config.CookieSecure,
		SameSite:      hs.ParseSameSite(app.config.CookieSameSite),
		Domain:        app.config.CookieDomain,
		AccessMaxAge:  app.config.AccessTokenValidityDuration,
		RefreshMaxAge: app.services.Tokens.Validity(),
	}
	s := app.services
	return hs.NewHandler(s.Sessions, s.Mfa, s.Credentials, s.Minter, cookies, app.logger)
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := hs.NewServer(app.config.HTTPAddr, hs.NewRouter(app.httpHandler()), app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCAddr, app.logger, app.db, healthProbeInterval)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
