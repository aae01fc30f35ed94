package mailer

import (
	"context"
	"strings"
)

// Ensure Router implements Transport
var _ Transport = (*Router)(nil)

// Router picks the transport for the configured provider.
type Router struct {
	provider string
	mailgun  Transport
	smtp     Transport
}

// NewTransport builds a Router from cfg. Both providers are constructed so a
// misconfigured one fails per attempt instead of at startup.
func NewTransport(cfg Config) *Router {
	mgun := NewMailgun(cfg.Domain, cfg.AuthCredential, cfg.SenderAddress)
	if cfg.Provider != ProviderSMTP {
		mgun.SetAPIBase(cfg.ServiceHost)
	}
	r := &Router{provider: strings.ToLower(cfg.Provider), mailgun: mgun}
	if r.provider == ProviderSMTP {
		r.smtp = NewSMTP(cfg.ServiceHost, cfg.Username, cfg.AuthCredential, cfg.SenderAddress)
	} else {
		r.smtp = NewSMTP("", "", "", cfg.SenderAddress)
	}
	return r
}

func (r *Router) Provider() string { return r.provider }

func (r *Router) Deliver(ctx context.Context, msg Message) error {
	switch r.provider {
	case ProviderSMTP:
		return r.smtp.Deliver(ctx, msg)
	default:
		return r.mailgun.Deliver(ctx, msg)
	}
}
