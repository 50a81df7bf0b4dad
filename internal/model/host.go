package model

import "context"

// User is the operator the host shell is acting for.
type User struct {
	ID   string
	Name string
}

// AuthContext is the authenticated session the host may hand over.
type AuthContext struct {
	User  *User
	Roles []string
}

// NotifyOptions are the optional settings of a host notification.
type NotifyOptions struct {
	Title  string
	Target string
}

// Notifier is the capability the host shell injects to receive
// notifications from the catalog.
type Notifier interface {
	Notify(ctx context.Context, message string, opts NotifyOptions) error
}

// NotifierFunc is a helper to use functions as Notifiers.
type NotifierFunc func(ctx context.Context, message string, opts NotifyOptions) error

// Notify satisfies Notifier interface.
func (n NotifierFunc) Notify(ctx context.Context, message string, opts NotifyOptions) error {
	return n(ctx, message, opts)
}

// HostConfig is the configuration supplied by the embedding host shell.
// The catalog only reads it, all the fields except Token are optional.
type HostConfig struct {
	Token    string
	User     *User
	Auth     *AuthContext
	Notifier Notifier
}
