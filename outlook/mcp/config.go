package mcp

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/viant/afs"
	"github.com/viant/scy"
	"gopkg.in/yaml.v3"
)

// Config controls Outlook MCP server behaviour and authentication.
type Config struct {
	// Azure AD application (client) ID for Microsoft Graph.
	ClientID string `json:"clientID" yaml:"clientID"`
	// Tenant ID or "organizations"/"common".
	TenantID string `json:"tenantID" yaml:"tenantID"`

	// Mailbox is the user id or UPN whose contacts and mail are searched; empty means the signed-in user.
	Mailbox string `json:"mailbox,omitempty" yaml:"mailbox,omitempty"`

	// SecretsBase is an afs URL where auth records are persisted per namespace and account alias.
	SecretsBase string `json:"secretsBase,omitempty" yaml:"secretsBase,omitempty"`

	// CallbackBaseURL is used to generate absolute URLs for OOB flows.
	// Example: http://localhost:7788
	CallbackBaseURL string `json:"callbackBaseURL,omitempty" yaml:"callbackBaseURL,omitempty"`

	// If true, return tool results in the `data` field instead of `text`.
	UseData bool `json:"useData,omitempty" yaml:"useData,omitempty"`

	// RedisURL selects the redis cache backend (redis://host:6379/0); empty keeps the in-memory cache.
	RedisURL string `json:"redisURL,omitempty" yaml:"redisURL,omitempty"`
	// CacheTTLSeconds overrides how long directory searches stay cached.
	CacheTTLSeconds int `json:"cacheTTLSeconds,omitempty" yaml:"cacheTTLSeconds,omitempty"`
	// MaxHistoryItems caps messages scanned per folder when inferring people from email history.
	MaxHistoryItems int `json:"maxHistoryItems,omitempty" yaml:"maxHistoryItems,omitempty"`
	// DeviceWaitSeconds is how long the device page waits for a prompt before rendering a refresh page.
	DeviceWaitSeconds int `json:"deviceWaitSeconds,omitempty" yaml:"deviceWaitSeconds,omitempty"`

	// AzureRef optionally points to an Azure OAuth2 client config stored as a scy resource.
	// It uses EncodedResource syntax: "<URL>|<kmsKey>", where the key part is optional.
	// Examples:
	//  - file-based:    "~/.secret/azure.yaml|blowfish://default"
	//  - GCP secret:    "gcp://secretmanager/projects/myproj/secrets/azure-cred|blowfish://default"
	// The referenced content should unmarshal into github.com/viant/scy/cred.Azure.
	AzureRef scy.EncodedResource `json:"azureRef,omitempty" yaml:"azureRef,omitempty"`
}

// CacheTTL returns the configured directory cache TTL, zero when unset.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// DeviceWait returns how long the device page waits for a prompt.
func (c *Config) DeviceWait() time.Duration {
	if c.DeviceWaitSeconds <= 0 {
		return 8 * time.Second
	}
	return time.Duration(c.DeviceWaitSeconds) * time.Second
}

// LoadConfig reads a YAML (or JSON) config from any afs URL.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	rc, err := afs.New().OpenURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("open config %v: %w", URL, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read config %v: %w", URL, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %v: %w", URL, err)
	}
	return cfg, nil
}
