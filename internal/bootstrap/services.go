package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/oakmont/insights-api/config"
	googleadapter "github.com/oakmont/insights-api/internal/adapters/google"
	ldapadapter "github.com/oakmont/insights-api/internal/adapters/ldap"
	redisadapter "github.com/oakmont/insights-api/internal/adapters/redis"
	"github.com/oakmont/insights-api/internal/core"
	"github.com/oakmont/insights-api/internal/data"
	"github.com/oakmont/insights-api/internal/domain/identity"
	"github.com/oakmont/insights-api/internal/ports"
	"github.com/oakmont/insights-api/internal/service"
	"github.com/oakmont/insights-api/internal/session"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth      *service.AuthService
	Google    *service.GoogleService
	Tenants   *service.TenantService
	Dashboard *service.DashboardService
	Deletion  *service.DeletionService
	// Cache is exposed so the runtime can drive its background sweeps.
	Cache *core.DailyCache
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires adapters, repositories, and services from shared
// infrastructure.
func NewServices(ctx context.Context, deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil || deps.DB == nil || deps.RedisClient == nil {
		return nil, errors.New("config, database, and redis client are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := session.NewCodec(session.CodecOptions{
		Secret:       cfg.Auth.Session.Secret,
		Lifetime:     cfg.Auth.Session.Lifetime,
		RefreshAfter: cfg.Auth.Session.RefreshAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("build session codec: %w", err)
	}

	encryptor := CreateEncryptor(cfg.EncryptionKey, logger)

	federatedRepo, err := data.NewFederatedRepo(data.FederatedRepoOptions{
		DB:        deps.DB,
		Encryptor: encryptor,
	})
	if err != nil {
		return nil, fmt.Errorf("build federated repo: %w", err)
	}
	mailTokenRepo, err := data.NewMailTokenRepo(data.MailTokenRepoOptions{
		DB:        deps.DB,
		Encryptor: encryptor,
	})
	if err != nil {
		return nil, fmt.Errorf("build mail token repo: %w", err)
	}

	terminator, err := redisadapter.NewTerminator(redisadapter.TerminatorOptions{
		Client: deps.RedisClient,
		Hold:   cfg.Auth.Session.Lifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("build session terminator: %w", err)
	}

	dailyCache, err := core.NewDailyCache(core.DailyCacheOptions{
		Repo: redisadapter.NewCacheRepo(deps.RedisClient),
		Boundary: core.Boundary{
			Hour:   cfg.Cache.BoundaryHour,
			Minute: cfg.Cache.BoundaryMinute,
		},
		SweepInterval: cfg.Cache.SweepInterval,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build daily cache: %w", err)
	}

	managerRepo := data.NewManagerRepo(deps.DB)

	authSvc := service.NewAuthService(service.AuthServiceOptions{
		Codec:          codec,
		Directory:      buildDirectory(cfg.Auth.LDAP, logger),
		LocalUsers:     data.NewLocalUserRepo(deps.DB),
		DirectoryUsers: data.NewDirectoryUserRepo(deps.DB),
		Federated:      federatedRepo,
		Terminator:     terminator,
		Managers:       managerRepo,
		Logger:         logger,
	})

	broker, err := buildBroker(ctx, cfg.Auth.Google)
	if err != nil {
		return nil, fmt.Errorf("build google broker: %w", err)
	}
	googleSvc := service.NewGoogleService(service.GoogleServiceOptions{
		Broker:    broker,
		Federated: federatedRepo,
		Codec:     codec,
		Vault:     mailTokenRepo,
		Logger:    logger,
	})

	tenantSvc := service.NewTenantService(data.NewDomainMappingRepo(deps.DB))
	dashboardSvc := service.NewDashboardService(service.DashboardServiceOptions{
		Tenants: tenantSvc,
		Cache:   dailyCache,
		Source:  data.NewDashboardRepo(deps.DB),
		Logger:  logger,
	})

	deletionSvc := service.NewDeletionService(service.DeletionServiceOptions{
		Terminator:     terminator,
		LocalUsers:     data.NewLocalUserRepo(deps.DB),
		DirectoryUsers: data.NewDirectoryUserRepo(deps.DB),
		Federated:      federatedRepo,
		Managers:       managerRepo,
		Vault:          mailTokenRepo,
		Logger:         logger,
	})

	return &ServiceContainer{
		Auth:      authSvc,
		Google:    googleSvc,
		Tenants:   tenantSvc,
		Dashboard: dashboardSvc,
		Deletion:  deletionSvc,
		Cache:     dailyCache,
	}, nil
}

// buildDirectory returns the LDAP resolver, or a stub that fails every
// attempt when no directory is configured.
//
//nolint:ireturn // the caller only needs the port.
func buildDirectory(cfg config.LDAPConfig, logger *slog.Logger) ports.DirectoryAuthenticator {
	if !cfg.Enabled() {
		return disabledDirectory{}
	}
	return ldapadapter.NewResolver(ldapadapter.ResolverOptions{Config: cfg, Logger: logger})
}

// buildBroker returns the Google broker, or a stub when OAuth is not
// configured. Construction performs the OIDC discovery fetch.
//
//nolint:ireturn // the caller only needs the port.
func buildBroker(ctx context.Context, cfg config.GoogleConfig) (ports.OAuthBroker, error) {
	if !cfg.Enabled() {
		return disabledBroker{}, nil
	}
	return googleadapter.NewBroker(ctx, googleadapter.BrokerOptions{Config: cfg})
}

// disabledDirectory rejects every directory login when LDAP is not
// configured. The service layer maps the error to its retryable category.
type disabledDirectory struct{}

func (disabledDirectory) Authenticate(context.Context, string, string) (ports.DirectoryResult, error) {
	return ports.DirectoryResult{}, errors.New("directory authentication is not configured")
}

// disabledBroker stands in when Google OAuth is not configured. URLs come
// back empty and the handlers refuse the flow.
type disabledBroker struct{}

func (disabledBroker) LoginURL(string) string { return "" }
func (disabledBroker) SyncURL(string) string  { return "" }
func (disabledBroker) MailScope() string      { return "" }

func (disabledBroker) Exchange(context.Context, string) (ports.ProviderIdentity, identity.OAuthTokens, error) {
	return ports.ProviderIdentity{}, identity.OAuthTokens{}, errors.New("google authentication is not configured")
}
