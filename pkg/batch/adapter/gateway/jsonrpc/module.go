package jsonrpc

import (
	"go.uber.org/fx"

	"github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
)

// NewFromConfig is the Fx constructor of Client.
func NewFromConfig(cfg *config.RemoteConfig) *Client {
	return New(cfg, nil)
}

// Module provides the Client as the gateway.Gateway of the application.
var Module = fx.Provide(
	fx.Annotate(NewFromConfig, fx.As(new(gateway.Gateway))),
)
