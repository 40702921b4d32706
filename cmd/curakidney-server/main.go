package main

import (
	"context"
	crypto_rand "crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/curakidney/api/internal/config"
	"github.com/curakidney/api/internal/domain/account"
	"github.com/curakidney/api/internal/domain/treatment"
	"github.com/curakidney/api/internal/platform/auth"
	"github.com/curakidney/api/internal/platform/db"
	"github.com/curakidney/api/internal/platform/middleware"
	"github.com/curakidney/api/internal/platform/notification"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "curakidney-server",
		Short:        "CuraKidney API Server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == config.EnvDevelopment {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the CuraKidney API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving (requires DATABASE_URL)")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	run := func(name string, fn func(ctx context.Context, m *db.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			logger := newLogger(cfg.Env)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			sqlDB := db.SQLDB(pool)
			defer sqlDB.Close()

			migrator, err := db.NewMigrator(sqlDB, logger)
			if err != nil {
				return err
			}
			if err := fn(ctx, migrator); err != nil {
				return fmt.Errorf("migrate %s: %w", name, err)
			}
			return nil
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: run("up", func(ctx context.Context, m *db.Migrator) error {
			if err := m.Up(ctx); err != nil {
				return err
			}
			v, err := m.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Database is at version %d.\n", v)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE:  run("down", func(ctx context.Context, m *db.Migrator) error { return m.Down(ctx) }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE:  run("status", func(ctx context.Context, m *db.Migrator) error { return m.Status(ctx) }),
	})

	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage bearer tokens",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user-id")
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if userID == "" {
				return fmt.Errorf("--user-id is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET must be set to issue tokens a server will accept")
			}

			jwtCfg := jwtConfig(cfg, []byte(cfg.JWTSecret))
			if ttl > 0 {
				jwtCfg.TTL = ttl
			}
			tok, exp, err := auth.IssueToken(jwtCfg, auth.Identity{UserID: userID, Email: email, Name: name}, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", exp.UTC().Format(time.RFC3339))
			return nil
		},
	}
	issueCmd.Flags().String("user-id", "", "Subject claim")
	issueCmd.Flags().String("email", "", "Email claim")
	issueCmd.Flags().String("name", "", "Name claim")
	issueCmd.Flags().Duration("ttl", 0, "Token lifetime (default JWT_EXPIRES_IN)")

	cmd.AddCommand(issueCmd)
	return cmd
}

func jwtConfig(cfg *config.Config, key []byte) auth.JWTConfig {
	return auth.JWTConfig{
		SigningKey: key,
		Issuer:     cfg.JWTIssuer,
		TTL:        cfg.JWTExpiresIn,
		Skipper:    auth.AuthSkipper,
	}
}

// resolveSigningKey returns JWT_SECRET, or a random 32-byte key when it is
// unset. The second return value is true when a random key was generated.
func resolveSigningKey(secret string) ([]byte, bool, error) {
	if secret != "" {
		return []byte(secret), false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random JWT signing key: %w", err)
	}
	return key, true, nil
}

func runServer(migrate bool) error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	key, generated, err := resolveSigningKey(cfg.JWTSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve JWT signing key")
	}
	if generated {
		logger.Warn().Msg("JWT_SECRET not set: using a random per-process signing key, tokens will not survive a restart")
	}
	if cfg.IsDev() && cfg.UsesDefaultSwaggerCredentials() {
		logger.Warn().Msg("API docs are protected by the default admin/admin credentials")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := serverDeps{
		cfg:    cfg,
		logger: logger,
		jwt:    jwtConfig(cfg, key),
	}

	// Database
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		if migrate {
			if err := applyMigrations(ctx, pool, logger); err != nil {
				logger.Fatal().Err(err).Msg("failed to apply migrations")
			}
		}

		deps.pool = pool
		deps.users = account.NewRepoPG(pool)
		deps.treatments = treatment.NewRepoPG(pool)
	} else {
		logger.Warn().Msg("DATABASE_URL not set: using in-memory repositories")
		deps.users = account.NewMemoryRepository()
		deps.treatments = treatment.NewMemoryRepository(treatment.SeedTreatments()...)
	}

	// Rate limiting
	rlCfg := middleware.RateLimitConfig{RequestsPerSecond: cfg.RateLimitRPS, BurstSize: cfg.RateLimitBurst}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		logger.Info().Msg("rate limiting backed by redis")
		deps.limiter = middleware.NewRedisLimiter(rdb, rlCfg)
	} else {
		mem := middleware.NewMemoryLimiter(rlCfg)
		mem.StartJanitor(ctx, time.Minute)
		deps.limiter = mem
	}

	// Email
	var sender notification.EmailSender
	if cfg.SMTPHost != "" {
		smtpSender, err := notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid SMTP configuration")
		}
		sender = smtpSender
	} else {
		logger.Warn().Msg("SMTP_HOST not set: emails are logged, not delivered")
		sender = notification.NewLogSender(logger)
	}
	deps.notifications = notification.NewManager(sender, nil)

	e := newServer(deps)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	sqlDB := db.SQLDB(pool)
	defer sqlDB.Close()
	m, err := db.NewMigrator(sqlDB, logger)
	if err != nil {
		return err
	}
	return m.Up(ctx)
}
