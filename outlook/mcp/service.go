package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	oa "github.com/viant/exchange-mcp/auth"
	"github.com/viant/exchange-mcp/outlook/cache"
	"github.com/viant/exchange-mcp/outlook/graph"
	"github.com/viant/exchange-mcp/outlook/person"
	"github.com/viant/scy"
	"github.com/viant/scy/cred"
)

const defaultDeviceURL = "https://microsoft.com/devicelogin"

var (
	deviceURLExpr  = regexp.MustCompile(`https?://[^\s]+`)
	deviceCodeExpr = regexp.MustCompile(`(?i)code\s+([A-Z0-9-]+)`)
)

// Service wires the graph manager, the shared cache and pending device logins.
type Service struct {
	graphMgr     *graph.Manager
	baseURL      string
	useText      bool
	pending      *PendingAuths
	auth         *oa.Service
	cache        *cache.Cache
	tenantID     string
	clientID     string
	mailbox      string
	directoryTTL time.Duration
	maxHistory   int
	deviceWait   time.Duration
	logger       *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCache replaces the default in-memory cache.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func NewService(cfg *Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	s := &Service{
		baseURL:      strings.TrimRight(cfg.CallbackBaseURL, "/"),
		useText:      !cfg.UseData,
		pending:      NewPendingAuths(),
		auth:         oa.New(),
		tenantID:     cfg.TenantID,
		clientID:     cfg.ClientID,
		mailbox:      cfg.Mailbox,
		directoryTTL: cfg.CacheTTL(),
		maxHistory:   cfg.MaxHistoryItems,
		deviceWait:   cfg.DeviceWait(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.AzureRef != "" {
		if az, err := loadAzure(context.Background(), cfg.AzureRef); err != nil {
			s.logger.Warn("azure credentials not loaded", "error", err)
		} else if az.ClientID != "" {
			s.clientID = az.ClientID
		}
	}
	if s.directoryTTL <= 0 {
		s.directoryTTL = cache.TTL(cache.KindDirectorySearch)
	}
	if s.cache == nil {
		s.cache = cache.New(cache.NewMemoryStore(), cache.WithLogger(s.logger), cache.WithScope(s.auth.Namespace))
	}
	s.graphMgr = graph.NewManager(s.clientID, cfg.SecretsBase, graph.WithLogger(s.logger))
	return s
}

func loadAzure(ctx context.Context, ref scy.EncodedResource) (*cred.Azure, error) {
	res := ref.Decode(ctx, cred.Azure{})
	sec, err := scy.New().Load(ctx, res)
	if err != nil {
		return nil, err
	}
	az, ok := sec.Target.(*cred.Azure)
	if !ok {
		return nil, fmt.Errorf("unexpected secret type %T", sec.Target)
	}
	return az, nil
}

// People returns a person resolution service authenticated as account.
func (s *Service) People(account graph.Account) *person.Service {
	session := s.graphMgr.Session(account, graph.DefaultScopes(), nil)
	return person.NewService(
		session.Directory(),
		session.Contacts(s.mailbox),
		session.Mailbox(s.mailbox),
		person.WithLogger(s.logger.With("account", account.Alias)),
		person.WithCache(accountCache{typed: cache.For[[]*person.Person](s.cache), alias: account.Alias}),
		person.WithDirectoryTTL(s.directoryTTL),
		person.WithMaxHistoryItems(s.maxHistory),
	)
}

// accountCache keeps cached searches of different accounts apart.
type accountCache struct {
	typed *cache.Typed[[]*person.Person]
	alias string
}

func (a accountCache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) ([]*person.Person, error)) ([]*person.Person, error) {
	return a.typed.GetOrFetch(ctx, a.alias+":"+key, ttl, fetch)
}

func (s *Service) RegisterHTTP(mux *http.ServeMux) {
	mux.HandleFunc("/outlook/auth/device/", s.DeviceHandler())
	mux.HandleFunc("/outlook/auth/pending", s.PendingListHandler())
	mux.HandleFunc("/outlook/auth/pending/clear", s.PendingClearHandler())
}

// DeviceURL returns the device login page for a pending auth.
func (s *Service) DeviceURL(uuid string) string {
	return s.baseURL + "/outlook/auth/device/" + uuid
}

// DeviceHandler serves the device login page for a pending auth UUID.
func (s *Service) DeviceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// URL: /outlook/auth/device/{uuid}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 4 {
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}
		pend, ok := s.pending.Get(parts[3])
		if !ok {
			http.Error(w, "no pending auth", http.StatusNotFound)
			return
		}
		msg := s.graphMgr.PromptFor(pend.Namespace, pend.Alias)
		deadline := time.Now().Add(s.deviceWait)
		for msg == "" && time.Now().Before(deadline) {
			select {
			case <-r.Context().Done():
				return
			case <-pend.Done():
				deadline = time.Now()
			case <-time.After(200 * time.Millisecond):
			}
			msg = s.graphMgr.PromptFor(pend.Namespace, pend.Alias)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if msg == "" {
			_, _ = fmt.Fprint(w, buildWaitingForDeviceHTML())
			return
		}
		_, _ = fmt.Fprint(w, buildDeviceLoginHTML(msg))
	}
}

// buildDeviceLoginHTML converts the Azure device prompt into a clickable HTML with copyable code.
func buildDeviceLoginHTML(msg string) string {
	escURL := html.EscapeString(extractURL(msg))
	escCode := html.EscapeString(extractCode(msg))
	if escCode == "" {
		escMsg := html.EscapeString(msg)
		return fmt.Sprintf(`<html><body>
<h3>Sign in to Outlook</h3>
<p>Open <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a> and follow the instructions.</p>
<pre>%[2]s</pre>
<p>Keep this tab open; return to your assistant after completing sign-in.</p>
</body></html>`, escURL, escMsg)
	}
	return fmt.Sprintf(`<html><body style="font-family: -apple-system, Segoe UI, Roboto, sans-serif;">
<h3>Sign in to Outlook</h3>
<p>Click to open: <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a></p>
<p>Then enter this code:</p>
<p style="font-size: 1.4em; font-weight: 600;"><code>%[2]s</code> <button onclick="navigator.clipboard.writeText('%[2]s')">Copy</button></p>
<p>Keep this tab open; return to your assistant after completing sign-in.</p>
</body></html>`, escURL, escCode)
}

func buildWaitingForDeviceHTML() string {
	url := html.EscapeString(defaultDeviceURL)
	return fmt.Sprintf(`<!doctype html>
<html><head>
<meta http-equiv="refresh" content="2">
<meta charset="utf-8">
<title>Sign in to Outlook</title>
</head><body>
<h3>Sign in to Outlook</h3>
<p>Preparing device login, this page refreshes automatically.</p>
<p>If it takes too long, you can open <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a> and follow the instructions.</p>
</body></html>`, url)
}

func extractURL(msg string) string {
	if m := deviceURLExpr.FindString(msg); m != "" {
		return m
	}
	return defaultDeviceURL
}

func extractCode(msg string) string {
	if m := deviceCodeExpr.FindStringSubmatch(msg); len(m) == 2 {
		return m[1]
	}
	return ""
}

func (s *Service) requestNamespace(r *http.Request) string {
	ns := r.URL.Query().Get("namespace")
	if ns == "" {
		if v, err := s.auth.Namespace(r.Context()); err == nil {
			ns = v
		}
	}
	return ns
}

// PendingListHandler returns JSON of pending auths for a namespace.
func (s *Service) PendingListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ns := s.requestNamespace(r)
		if ns == "" {
			http.Error(w, "namespace required", http.StatusBadRequest)
			return
		}
		type row struct {
			UUID      string `json:"uuid"`
			Alias     string `json:"alias"`
			TenantID  string `json:"tenantID"`
			Namespace string `json:"namespace"`
		}
		list := s.pending.ListNamespace(ns)
		out := make([]row, 0, len(list))
		for _, v := range list {
			out = append(out, row{UUID: v.UUID, Alias: v.Alias, TenantID: v.TenantID, Namespace: v.Namespace})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

// PendingClearHandler clears all pending auths for a namespace.
func (s *Service) PendingClearHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ns := s.requestNamespace(r)
		if ns == "" {
			http.Error(w, "namespace required", http.StatusBadRequest)
			return
		}
		cleared := s.pending.ClearNamespace(ns)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"cleared": len(cleared), "uuids": cleared})
	}
}

func (s *Service) GraphManager() *graph.Manager { return s.graphMgr }
func (s *Service) UseTextField() bool           { return s.useText }
func (s *Service) BaseURL() string              { return s.baseURL }
func (s *Service) Pending() *PendingAuths       { return s.pending }
func (s *Service) Auth() *oa.Service            { return s.auth }
func (s *Service) Cache() *cache.Cache          { return s.cache }
func (s *Service) TenantID() string             { return s.tenantID }
func (s *Service) ClientID() string             { return s.clientID }
