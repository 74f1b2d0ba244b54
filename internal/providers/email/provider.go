// Package email is the notification dispatch collaborator. Delivery is
// fire-and-forget: callers invoke it after their state change commits and
// treat failures as warnings, never rollbacks.
package email

import "context"

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

// NoOpProvider is wired when no SMTP host is configured, and in tests.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}
