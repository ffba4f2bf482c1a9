package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity/cache"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/viant/afs"
	oaauth "github.com/viant/exchange-mcp/auth"
)

const (
	silentTokenTimeout = 500 * time.Millisecond
	deviceLoginTimeout = 15 * time.Minute
)

// Manager provides Microsoft Graph credentials and clients per caller namespace and account alias.
type Manager struct {
	clientID    string
	secretsBase string
	auth        *oaauth.Service
	fs          afs.Service
	logger      *slog.Logger

	mu sync.RWMutex
	// pending holds device-code prompts keyed by namespace|alias.
	pending map[string]*pendingAuth
	// clients caches GraphServiceClient instances per namespace|alias|tenant|scopes.
	clients map[string]*msgraphsdk.GraphServiceClient
	// creds caches device code credentials per namespace|alias until the process restarts.
	creds map[string]*azidentity.DeviceCodeCredential
}

type pendingAuth struct {
	mu      sync.Mutex
	message string
}

func (p *pendingAuth) set(msg string) {
	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
}

func (p *pendingAuth) get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.message
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithFileSystem replaces the storage used for authentication records.
func WithFileSystem(fs afs.Service) ManagerOption {
	return func(m *Manager) { m.fs = fs }
}

// NewManager creates a Manager persisting authentication records under secretsBase,
// any afs URL (file path, mem://, gs://, s3://).
func NewManager(clientID, secretsBase string, opts ...ManagerOption) *Manager {
	m := &Manager{
		clientID:    clientID,
		secretsBase: strings.TrimRight(expandPath(secretsBase), "/"),
		auth:        oaauth.New(),
		fs:          afs.New(),
		logger:      slog.Default(),
		pending:     map[string]*pendingAuth{},
		clients:     map[string]*msgraphsdk.GraphServiceClient{},
		creds:       map[string]*azidentity.DeviceCodeCredential{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) namespace(ctx context.Context) string {
	ns, _ := m.auth.Namespace(ctx)
	if ns == "" {
		ns = "default"
	}
	return ns
}

func (m *Manager) authRecordURL(ns, alias string) string {
	return m.secretsBase + "/outlook/" + safePart(ns) + "_" + safePart(alias) + "_auth_record.json"
}

func safePart(s string) string {
	s = strings.TrimSpace(os.ExpandEnv(s))
	repl := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "|", "_", " ", "_", "@", "_")
	return repl.Replace(s)
}

func expandPath(p string) string {
	if p == "" || strings.Contains(p, "://") {
		return p
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			if p == "~" {
				p = home
			} else if strings.HasPrefix(p, "~/") {
				p = filepath.Join(home, p[2:])
			}
		}
	}
	return p
}

func (m *Manager) loadRecord(ctx context.Context, ns, alias string) (azidentity.AuthenticationRecord, bool) {
	var rec azidentity.AuthenticationRecord
	if m.secretsBase == "" {
		return rec, false
	}
	rc, err := m.fs.OpenURL(ctx, m.authRecordURL(ns, alias))
	if err != nil || rc == nil {
		return rec, false
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil || len(data) == 0 {
		return rec, false
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		m.logger.Warn("ignoring corrupt auth record", "namespace", ns, "alias", alias, "error", err)
		return rec, false
	}
	return rec, true
}

func (m *Manager) saveRecord(ctx context.Context, ns, alias string, rec azidentity.AuthenticationRecord) error {
	if m.secretsBase == "" {
		return errors.New("secrets base is not configured")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	URL := m.authRecordURL(ns, alias)
	if err := m.fs.Upload(ctx, URL, 0o600, bytes.NewReader(data)); err != nil {
		return err
	}
	m.logger.Debug("saved auth record", "namespace", ns, "alias", alias, "url", URL)
	return nil
}

func (m *Manager) newCredential(ns, alias, tenantID string, rec *azidentity.AuthenticationRecord, prompt func(string)) (*azidentity.DeviceCodeCredential, error) {
	tokenCache, err := cache.New(&cache.Options{Name: "mcp-outlook-" + safePart(ns) + "-" + safePart(alias)})
	if err != nil {
		return nil, err
	}
	opts := &azidentity.DeviceCodeCredentialOptions{
		TenantID: tenantID,
		ClientID: m.clientID,
		Cache:    tokenCache,
		// Always capture the device code message so the SDK never prints it to stdout.
		UserPrompt: func(_ context.Context, msg azidentity.DeviceCodeMessage) error {
			if prompt != nil {
				prompt(msg.Message)
			}
			return nil
		},
	}
	if rec != nil {
		opts.AuthenticationRecord = *rec
	}
	return azidentity.NewDeviceCodeCredential(opts)
}

// NeedsInteractive reports, without prompting, whether a device login is required.
func (m *Manager) NeedsInteractive(ctx context.Context, alias, tenantID string, scopes []string) bool {
	ns := m.namespace(ctx)
	m.mu.RLock()
	cached := m.creds[ns+"|"+alias]
	m.mu.RUnlock()
	if cached == nil {
		rec, ok := m.loadRecord(ctx, ns, alias)
		if !ok {
			return true
		}
		cred, err := m.newCredential(ns, alias, tenantID, &rec, nil)
		if err != nil {
			return true
		}
		cached = cred
	}
	tctx, cancel := context.WithTimeout(ctx, silentTokenTimeout)
	defer cancel()
	_, err := cached.GetToken(tctx, policy.TokenRequestOptions{Scopes: scopes})
	return err != nil
}

// Client returns a GraphServiceClient for alias with the given scopes.
func (m *Manager) Client(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) (*msgraphsdk.GraphServiceClient, error) {
	key := m.clientKey(m.namespace(ctx), alias, tenantID, scopes)
	m.mu.RLock()
	if cli, ok := m.clients[key]; ok {
		m.mu.RUnlock()
		return cli, nil
	}
	m.mu.RUnlock()

	cred, err := m.Credential(ctx, alias, tenantID, scopes, prompt)
	if err != nil {
		return nil, err
	}
	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, scopes)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.clients[key]; ok {
		return existing, nil
	}
	m.clients[key] = client
	return client, nil
}

// Credential returns the cached device code credential for alias, acquiring one if needed.
func (m *Manager) Credential(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) (*azidentity.DeviceCodeCredential, error) {
	key := m.namespace(ctx) + "|" + alias
	m.mu.RLock()
	if c := m.creds[key]; c != nil {
		m.mu.RUnlock()
		return c, nil
	}
	m.mu.RUnlock()
	cred, err := m.acquireCredential(ctx, alias, tenantID, scopes, prompt)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing := m.creds[key]; existing != nil {
		return existing, nil
	}
	m.creds[key] = cred
	return cred, nil
}

// HasAuthRecord reports whether an authentication record is stored for alias.
func (m *Manager) HasAuthRecord(ctx context.Context, alias string) bool {
	if m.secretsBase == "" {
		return false
	}
	ok, err := m.fs.Exists(ctx, m.authRecordURL(m.namespace(ctx), alias))
	return err == nil && ok
}

// StartDeviceLogin runs the device code flow in the background; the prompt becomes
// available through DevicePrompt until the flow ends. onComplete receives the flow outcome.
// It returns false when a login for alias is already running.
func (m *Manager) StartDeviceLogin(ctx context.Context, alias, tenantID string, scopes []string, onComplete func(error)) bool {
	key := m.namespace(ctx) + "|" + alias
	m.mu.Lock()
	if _, ok := m.pending[key]; ok {
		m.mu.Unlock()
		return false
	}
	holder := &pendingAuth{}
	m.pending[key] = holder
	m.mu.Unlock()

	loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deviceLoginTimeout)
	go func() {
		defer cancel()
		defer func() {
			m.mu.Lock()
			delete(m.pending, key)
			m.mu.Unlock()
		}()
		cred, err := m.acquireCredential(loginCtx, alias, tenantID, scopes, holder.set)
		if err != nil {
			m.logger.Warn("device login failed", "alias", alias, "error", err)
		} else {
			m.mu.Lock()
			m.creds[key] = cred
			m.mu.Unlock()
			m.logger.Info("device login completed", "alias", alias)
		}
		if onComplete != nil {
			onComplete(err)
		}
	}()
	return true
}

// DevicePrompt returns the pending device-code message for alias in the caller's namespace.
func (m *Manager) DevicePrompt(ctx context.Context, alias string) string {
	return m.PromptFor(m.namespace(ctx), alias)
}

// PromptFor returns the pending device-code message for alias in namespace ns.
func (m *Manager) PromptFor(ns, alias string) string {
	if ns == "" {
		ns = "default"
	}
	m.mu.RLock()
	p, ok := m.pending[ns+"|"+alias]
	m.mu.RUnlock()
	if !ok {
		return ""
	}
	return p.get()
}

// acquireCredential builds a credential, reusing a stored record for silent login when it still works,
// otherwise running the interactive device flow and persisting the fresh record.
func (m *Manager) acquireCredential(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) (*azidentity.DeviceCodeCredential, error) {
	ns := m.namespace(ctx)
	var recPtr *azidentity.AuthenticationRecord
	if rec, ok := m.loadRecord(ctx, ns, alias); ok {
		recPtr = &rec
	}
	cred, err := m.newCredential(ns, alias, tenantID, recPtr, prompt)
	if err != nil {
		return nil, err
	}
	if recPtr != nil {
		tctx, cancel := context.WithTimeout(ctx, silentTokenTimeout)
		_, preErr := cred.GetToken(tctx, policy.TokenRequestOptions{Scopes: scopes})
		cancel()
		if preErr == nil {
			return cred, nil
		}
	}
	rec, err := cred.Authenticate(ctx, &policy.TokenRequestOptions{Scopes: scopes})
	if err != nil {
		return nil, err
	}
	if err := m.saveRecord(ctx, ns, alias, rec); err != nil {
		m.logger.Warn("auth record not saved", "alias", alias, "error", err)
	}
	return cred, nil
}

// DefaultScopes requests every delegated permission granted to the application.
func DefaultScopes() []string {
	return []string{"https://graph.microsoft.com/.default"}
}

// clientKey builds a stable cache key from namespace, alias, tenant and normalized scopes.
func (m *Manager) clientKey(ns, alias, tenantID string, scopes []string) string {
	norm := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s == "" {
			continue
		}
		norm = append(norm, strings.ToLower(s))
	}
	sort.Strings(norm)
	if ns == "" {
		ns = "default"
	}
	return ns + "|" + alias + "|" + tenantID + "|" + strings.Join(norm, ",")
}

func ptr[T any](v T) *T { return &v }

func ptrVal[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
