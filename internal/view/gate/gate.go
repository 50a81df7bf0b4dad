package gate

import (
	"crypto/subtle"

	"github.com/catalogmf/catalog/internal/model"
)

// DefaultExpectedToken is the token the host shell must send.
const DefaultExpectedToken = "NICORIVERA"

// Decision is the result of evaluating a host configuration.
type Decision struct {
	// Valid is false when the configuration is missing or its token doesn't
	// match. Nothing but the setup view should run with an invalid decision.
	Valid     bool
	Config    *model.HostConfig
	UserName  string
	CanNotify bool
}

// Gate validates the host configuration before anything else is rendered.
type Gate struct {
	expected  string
	anonymous string
}

// New returns a new Gate.
func New(expectedToken, anonymousLabel string) Gate {
	if expectedToken == "" {
		expectedToken = DefaultExpectedToken
	}
	return Gate{expected: expectedToken, anonymous: anonymousLabel}
}

// Effective returns the configuration in use, the local override wins over
// the one supplied by the host.
func Effective(local, host *model.HostConfig) *model.HostConfig {
	if local != nil {
		return local
	}
	return host
}

// Valid returns true if the configuration has the expected token.
func (g Gate) Valid(cfg *model.HostConfig) bool {
	if cfg == nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cfg.Token), []byte(g.expected)) == 1
}

// DisplayName returns the name of the operator: the authenticated user,
// then the plain user and last the anonymous label.
func (g Gate) DisplayName(cfg *model.HostConfig) string {
	if cfg == nil {
		return g.anonymous
	}
	if cfg.Auth != nil && cfg.Auth.User != nil && cfg.Auth.User.Name != "" {
		return cfg.Auth.User.Name
	}
	if cfg.User != nil && cfg.User.Name != "" {
		return cfg.User.Name
	}
	return g.anonymous
}

// Decide evaluates the effective configuration.
func (g Gate) Decide(local, host *model.HostConfig) Decision {
	cfg := Effective(local, host)
	if !g.Valid(cfg) {
		return Decision{Config: cfg}
	}

	return Decision{
		Valid:     true,
		Config:    cfg,
		UserName:  g.DisplayName(cfg),
		CanNotify: cfg.Notifier != nil,
	}
}
