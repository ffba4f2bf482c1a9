package service

import (
	mcpservice "github.com/viant/exchange-mcp/outlook/mcp"
)

// Service mirrors the Outlook MCP service so callers can depend on outlook/service.
type Service = mcpservice.Service

// Config aliases the MCP service config for constructor parity.
type Config = mcpservice.Config

// Option aliases the MCP service option.
type Option = mcpservice.Option

// NewService constructs the Outlook service; delegates to outlook/mcp.NewService.
func NewService(cfg *Config, opts ...Option) *Service { return mcpservice.NewService(cfg, opts...) }
