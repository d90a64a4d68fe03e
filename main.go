// main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trcinventory/internal/cleanup"
	"trcinventory/internal/config"
	"trcinventory/internal/data"
	"trcinventory/internal/logger"
	"trcinventory/internal/security"
	"trcinventory/internal/server"
)

const securityCleanupInterval = 10 * time.Minute

func main() {
	// Step 1: Setup configuration first
	config.LoadEnv()

	// Step 2: Setup logging
	loggerConfig := config.LoggerConfig()
	if err := logger.SetupLogger(loggerConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	// Only NOW is logging safe to use!
	logger.LogInfo("Environment loaded. Logger ready.")
	config.LogCurrentEnvironment()
	config.LoadCORSConfig()

	// Step 3: Open the store
	storeConfig, err := config.LoadStoreConfig()
	if err != nil {
		logger.LogFatal("Invalid store configuration: %v", err)
	}
	backend, err := openBackend(storeConfig)
	if err != nil {
		logger.LogFatal("Failed to open %s store: %v", storeConfig.Driver, err)
	}
	defer backend.Close()

	// Step 4: Sessions and login throttling
	sessionConfig, err := config.LoadSessionConfig()
	if err != nil {
		logger.LogFatal("Invalid session configuration: %v", err)
	}
	sessions, err := security.NewSessionManager(sessionConfig.Secret, sessionConfig.TTL)
	if err != nil {
		logger.LogFatal("Failed to create session manager: %v", err)
	}
	throttle := security.NewLoginThrottle(sessionConfig.LoginMaxAttempts, sessionConfig.LoginWindow, sessionConfig.LoginLockout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Step 5: Setup app
	loc := config.Location()
	app := server.New(config.ServerAddress(), server.Deps{
		Backend:  backend,
		Sessions: sessions,
		Throttle: throttle,
		Location: loc,
	})

	if username, password := config.AdminCredential(); username != "" && password != "" {
		created, err := app.Auth.EnsureCredential(ctx, username, password)
		if err != nil {
			logger.LogFatal("Failed to bootstrap admin credential: %v", err)
		}
		if created {
			logger.LogInfo("Created admin credential for %s", username)
		}
	} else {
		logger.LogWarn("ADMIN_USERNAME/ADMIN_PASSWORD not set, no account bootstrapped")
	}

	// Step 6: Start background tasks
	go security.RunCleanup(ctx, securityCleanupInterval, sessions, throttle)
	switch {
	case !config.CleanupEnabled():
		logger.LogInfo("Pending snapshot cleanup disabled")
	case !cleanup.Needed(backend):
		logger.LogInfo("Pending snapshot cleanup not needed, snapshots are created in one transaction")
	default:
		cleanup.NewSweeper(backend, loc).StartCleanupRoutine(ctx, config.CleanupInterval())
	}

	// Step 7: Run server
	if err := app.Run(ctx); err != nil {
		logger.LogFatal("Server failed: %v", err)
	}
}

// openBackend builds the data-access backend for the configured driver
func openBackend(cfg config.StoreConfig) (data.Backend, error) {
	var (
		b   *data.SQLBackend
		err error
	)
	switch cfg.Driver {
	case config.DriverSupabase:
		return data.NewSupabaseBackend(cfg.SupabaseURL, cfg.SupabaseKey), nil
	case config.DriverMySQL:
		b, err = data.OpenMySQL(cfg.MySQLDSN)
	default:
		b, err = data.OpenSQLite(cfg.DatabasePath)
	}
	if err != nil {
		return nil, err
	}
	logger.LogInfo("Opened %s backend", b.Dialect())
	return b, nil
}
