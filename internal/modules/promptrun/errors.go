package promptrun

import "errors"

var (
	ErrDomainNotFound        = errors.New("domain not found")
	ErrPromptNotFound        = errors.New("prompt not found")
	ErrNoActivePrompts       = errors.New("no active prompts to run")
	ErrBatchInProgress       = errors.New("a prompt run batch is already in progress for this domain")
	ErrProviderNotConfigured = errors.New("provider not configured")
	ErrShuttingDown          = errors.New("prompt runs are shutting down")
)
