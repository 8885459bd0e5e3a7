// Package common defines shared constants and sentinel errors used across
// mindvault components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Authentication / key custody errors.
	ErrAuthentication = errors.New("authentication failed")
	ErrSessionExpired = errors.New("session expired")
	ErrVaultLocked    = errors.New("vault is locked")

	// Storage errors.
	ErrStorageIntegrity = errors.New("storage integrity check failed")

	// Inference-boundary errors. All are recoverable: the caller decides
	// whether to retry or degrade to a no-context response.
	ErrInference          = errors.New("inference service error")
	ErrBackendUnreachable = errors.New("inference backend unreachable")
	ErrBackendTimeout     = errors.New("inference backend timeout")
	ErrModelUnavailable   = errors.New("model unavailable")

	// Reflection errors.
	ErrDecisionParse = errors.New("retrieval decision parse error")
)
