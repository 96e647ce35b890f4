package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeInit       = "INIT_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeDecryption = "DECRYPTION_ERROR"
	ErrCodeStorage    = "STORAGE_ERROR"
	ErrCodeNetwork    = "NETWORK_ERROR"
	ErrCodeServer     = "SERVER_ERROR"
	ErrCodeConflict   = "CONFLICT"
	ErrCodeQuota      = "QUOTA_EXCEEDED"
	ErrCodeConfig     = "CONFIG_ERROR"
)

// Sentinel errors
var (
	ErrNotInitialized           = errors.New("store not initialized")
	ErrRecordNotFound           = errors.New("record not found")
	ErrRemoteNotFound           = errors.New("remote record not found")
	ErrSyncInProgress           = errors.New("sync already in progress")
	ErrDecryptionFailed         = errors.New("decryption failed")
	ErrEncryptionDisabled       = errors.New("encryption key not configured")
	ErrQuotaExceeded            = errors.New("storage quota exceeded")
	ErrManualResolutionRequired = errors.New("manual conflict resolution required")
	ErrInvalidConfig            = errors.New("invalid configuration")
)

// APIError represents an error returned by the remote sync API.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Retryable reports whether the failure is worth retrying.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// StoreError wraps a local persistence failure with the operation that hit it.
type StoreError struct {
	Op  string
	ID  string
	Err error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// DecryptError represents a record that could not be decrypted. It is
// recoverable at the call site; batch reads skip and report it.
type DecryptError struct {
	RecordID string
	Err      error
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("decrypt record %s: %v", e.RecordID, e.Err)
}

func (e *DecryptError) Unwrap() error { return e.Err }
