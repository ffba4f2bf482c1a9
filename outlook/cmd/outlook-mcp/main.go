package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	oa "github.com/viant/exchange-mcp/auth"
	"github.com/viant/exchange-mcp/outlook/cache"
	"github.com/viant/exchange-mcp/outlook/mcp"
	"github.com/viant/mcp-protocol/authorization"
	oauthmeta "github.com/viant/mcp-protocol/oauth2/meta"
	"github.com/viant/mcp-protocol/schema"
	mcpsrv "github.com/viant/mcp/server"
	serverauth "github.com/viant/mcp/server/auth"
	"github.com/viant/scy"
	"github.com/viant/scy/auth/flow"
	"github.com/viant/scy/cred"
	_ "github.com/viant/scy/kms/blowfish"
)

const cacheCleanupInterval = 5 * time.Minute

// Options defines CLI flags for the Outlook MCP server.
type Options struct {
	HTTPAddr        string `short:"a" long:"addr" env:"OUTLOOK_ADDR" default:":7788" description:"HTTP listen address"`
	ConfigURL       string `short:"c" long:"config" env:"OUTLOOK_CONFIG" description:"YAML config URL (file path, mem://, gs://, s3://)"`
	ClientID        string `long:"client-id" env:"OUTLOOK_CLIENT_ID" description:"Azure AD application (client) ID"`
	TenantID        string `long:"tenant-id" env:"OUTLOOK_TENANT_ID" description:"Tenant ID or 'organizations'"`
	Mailbox         string `long:"mailbox" env:"OUTLOOK_MAILBOX" description:"mailbox (UPN or id) searched for contacts and mail; defaults to the signed-in user"`
	SecretsBase     string `long:"secretsBase" env:"OUTLOOK_SECRETS_BASE" description:"AFS base URL for persisting auth records (e.g., mem://localhost/mcp-outlook)"`
	AzureRef        string `long:"azure-ref" env:"OUTLOOK_AZURE_REF" description:"scy EncodedResource for Azure cred (e.g., gcp://...|blowfish://default)"`
	RedisURL        string `long:"redis-url" env:"OUTLOOK_REDIS_URL" description:"redis URL for the shared cache; in-memory when empty"`
	CacheTTLSeconds int    `long:"cache-ttl" env:"OUTLOOK_CACHE_TTL" description:"directory search cache TTL in seconds"`
	Oauth2Config    string `short:"o" long:"oauth2config" description:"Path to JSON OAuth2 configuration file (scy EncodedResource)"`
	UseIdToken      bool   `short:"i" long:"use-id-token" description:"Use ID token (instead of access token) for identity scoping"`
	UseData         bool   `long:"use-data" description:"Return structured tool results instead of text"`
}

func main() {
	var opts Options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		os.Exit(2)
	}
	logger := newLogger()
	slog.SetDefault(logger)
	ctx := context.Background()

	cfg := &mcp.Config{}
	if opts.ConfigURL != "" {
		loaded, err := mcp.LoadConfig(ctx, opts.ConfigURL)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}
	applyOptions(cfg, &opts)
	if cfg.ClientID == "" && cfg.AzureRef == "" {
		log.Fatal("missing --client-id/OUTLOOK_CLIENT_ID (or provide --azure-ref / OUTLOOK_AZURE_REF)")
	}
	// If azure-ref provided, derive missing tenant from the secret.
	if cfg.AzureRef != "" {
		res := cfg.AzureRef.Decode(ctx, cred.Azure{})
		sec, err := scy.New().Load(ctx, res)
		if err != nil {
			log.Fatalf("failed to load azure-ref secret: %v", err)
		}
		az, ok := sec.Target.(*cred.Azure)
		if !ok {
			log.Fatal("azure-ref secret is not of type cred.Azure (expected JSON with ClientID, TenantID, EncryptedClientSecret)")
		}
		if (cfg.TenantID == "" || cfg.TenantID == "organizations") && az.TenantID != "" {
			cfg.TenantID = az.TenantID
		}
	}

	store, err := newStore(ctx, cfg.RedisURL, logger)
	if err != nil {
		log.Fatalf("failed to init cache: %v", err)
	}
	shared := cache.New(store, cache.WithLogger(logger), cache.WithScope(oa.New().Namespace))
	svc := mcp.NewService(cfg, mcp.WithLogger(logger), mcp.WithCache(shared))

	options := []mcpsrv.Option{
		mcpsrv.WithImplementation(schema.Implementation{Name: "exchange-mcp", Version: "0.1.0"}),
		mcpsrv.WithNewHandler(mcp.NewHandler(svc)),
		mcpsrv.WithEndpointAddress(opts.HTTPAddr),
		mcpsrv.WithRootRedirect(true),
		mcpsrv.WithStreamableURI("/mcp"),
		mcpsrv.WithCustomHTTPHandler("/outlook/auth/device/", svc.DeviceHandler()),
		mcpsrv.WithCustomHTTPHandler("/outlook/auth/pending", svc.PendingListHandler()),
		mcpsrv.WithCustomHTTPHandler("/outlook/auth/pending/clear", svc.PendingClearHandler()),
		mcpsrv.WithCustomHTTPHandler("/metrics", http.HandlerFunc(promhttp.Handler().ServeHTTP)),
	}

	// Optional server-level OAuth2
	if v := strings.TrimSpace(opts.Oauth2Config); v != "" {
		res := scy.EncodedResource(v).Decode(ctx, cred.Oauth2Config{})
		sec, err := scy.New().Load(ctx, res)
		if err != nil {
			log.Fatalf("failed to load oauth2config: %v", err)
		}
		oc, ok := sec.Target.(*cred.Oauth2Config)
		if !ok {
			log.Fatalf("invalid oauth2config secret type")
		}
		authPolicy := &authorization.Policy{
			Global: &authorization.Authorization{
				UseIdToken: opts.UseIdToken,
				ProtectedResourceMetadata: &oauthmeta.ProtectedResourceMetadata{
					AuthorizationServers: []string{oc.Config.Endpoint.AuthURL},
				}},
			ExcludeURI: "/sse,/metrics,/outlook/auth/device/",
		}
		bff := &serverauth.BackendForFrontend{Client: &oc.Config, AuthorizationExchangeHeader: flow.AuthorizationExchangeHeader}
		authSvc, err := serverauth.New(&serverauth.Config{Policy: authPolicy, BackendForFrontend: bff})
		if err != nil {
			log.Fatalf("failed to init auth service: %v", err)
		}
		options = append(options,
			mcpsrv.WithAuthorizer(authSvc.Middleware),
			mcpsrv.WithProtectedResourcesHandler(authSvc.ProtectedResourcesHandler),
		)
	}

	server, err := mcpsrv.New(options...)
	if err != nil {
		log.Fatal(err)
	}
	logger.Info("starting exchange mcp server", "addr", opts.HTTPAddr, "mailbox", cfg.Mailbox, "redis", cfg.RedisURL != "")
	server.UseStreamableHTTP(true)
	if err := server.HTTP(ctx, opts.HTTPAddr).ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("OUTLOOK_MCP_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// applyOptions overlays explicit flags and environment on top of the config file.
func applyOptions(cfg *mcp.Config, opts *Options) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.ClientID, opts.ClientID)
	set(&cfg.TenantID, opts.TenantID)
	set(&cfg.Mailbox, opts.Mailbox)
	set(&cfg.SecretsBase, opts.SecretsBase)
	set(&cfg.RedisURL, opts.RedisURL)
	if opts.AzureRef != "" {
		cfg.AzureRef = scy.EncodedResource(opts.AzureRef)
	}
	if opts.CacheTTLSeconds > 0 {
		cfg.CacheTTLSeconds = opts.CacheTTLSeconds
	}
	if opts.UseData {
		cfg.UseData = true
	}
	if cfg.TenantID == "" {
		cfg.TenantID = "organizations"
	}
	if cfg.SecretsBase == "" {
		cfg.SecretsBase = "mem://localhost/mcp-outlook"
	}
	if cfg.CallbackBaseURL == "" {
		hostport := opts.HTTPAddr
		if strings.HasPrefix(hostport, ":") {
			hostport = "localhost" + hostport
		}
		cfg.CallbackBaseURL = "http://" + hostport
	}
}

func newStore(ctx context.Context, redisURL string, logger *slog.Logger) (cache.Store, error) {
	if redisURL != "" {
		client, err := cache.NewRedisClient(ctx, redisURL)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisStore(client, cache.DefaultRedisPrefix), nil
	}
	store := cache.NewMemoryStore()
	go func() {
		ticker := time.NewTicker(cacheCleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			if n := store.Cleanup(); n > 0 {
				logger.Debug("cache cleanup", "expired", n)
			}
		}
	}()
	return store, nil
}
