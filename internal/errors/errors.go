package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents a structured application error with context
type AppError struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	OAuthCode string `json:"-"`
	HTTPCode  int    `json:"-"`
	Retryable bool   `json:"-"`
	Cause     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Protocol/validation kinds: deterministic client errors, never retried.
const (
	KindClientNotFound         = "CLIENT_NOT_FOUND"
	KindClientInactive         = "CLIENT_INACTIVE"
	KindInvalidClientSecret    = "INVALID_CLIENT_SECRET"
	KindInvalidRedirectURI     = "INVALID_REDIRECT_URI"
	KindScopeNotAllowed        = "SCOPE_NOT_ALLOWED"
	KindPKCERequired           = "PKCE_REQUIRED"
	KindInvalidChallengeMethod = "INVALID_CHALLENGE_METHOD"
	KindPKCEVerificationFailed = "PKCE_VERIFICATION_FAILED"
	KindUserNotFound           = "USER_NOT_FOUND"
	KindCrossTenantAccess      = "CROSS_TENANT_ACCESS"
	KindUnsupportedResponse    = "UNSUPPORTED_RESPONSE_TYPE"
	KindInvalidState           = "INVALID_STATE"
	KindCodeNotFound           = "CODE_NOT_FOUND"
	KindCodeExpired            = "CODE_EXPIRED"
	KindCodeAlreadyUsed        = "CODE_ALREADY_USED"
	KindRedirectURIMismatch    = "REDIRECT_URI_MISMATCH"
	KindRefreshTokenNotFound   = "REFRESH_TOKEN_NOT_FOUND"
	KindRefreshTokenExpired    = "REFRESH_TOKEN_EXPIRED"
	KindRefreshTokenRevoked    = "REFRESH_TOKEN_REVOKED"
	KindClientMismatch         = "CLIENT_MISMATCH"
	KindScopeExpansionDenied   = "SCOPE_EXPANSION_DENIED"
	KindConsentRequired        = "CONSENT_REQUIRED"
)

// Infrastructure kinds: eligible for caller-side retry with backoff.
const (
	KindDatabaseError         = "DATABASE_ERROR"
	KindCacheError            = "CACHE_ERROR"
	KindSigningKeyUnavailable = "SIGNING_KEY_UNAVAILABLE"
	KindInternalError         = "INTERNAL_ERROR"
	KindConfigError           = "CONFIG_ERROR"
)

// OAuth 2.0 wire codes (RFC 6749 §5.2) the entry points emit.
const (
	OAuthInvalidRequest          = "invalid_request"
	OAuthInvalidClient           = "invalid_client"
	OAuthInvalidGrant            = "invalid_grant"
	OAuthInvalidScope            = "invalid_scope"
	OAuthAccessDenied            = "access_denied"
	OAuthUnsupportedResponseType = "unsupported_response_type"
	OAuthUnsupportedGrantType    = "unsupported_grant_type"
	OAuthServerError             = "server_error"
)

func newProtocolError(kind, oauthCode string, httpCode int, message string, cause error) *AppError {
	return &AppError{
		Kind:      kind,
		Message:   message,
		OAuthCode: oauthCode,
		HTTPCode:  httpCode,
		Cause:     cause,
	}
}

func ClientNotFoundError(message string, cause error) *AppError {
	return newProtocolError(KindClientNotFound, OAuthInvalidClient, http.StatusUnauthorized, message, cause)
}

func ClientInactiveError(message string, cause error) *AppError {
	return newProtocolError(KindClientInactive, OAuthInvalidClient, http.StatusUnauthorized, message, cause)
}

func InvalidClientSecretError(message string, cause error) *AppError {
	return newProtocolError(KindInvalidClientSecret, OAuthInvalidClient, http.StatusUnauthorized, message, cause)
}

func InvalidRedirectURIError(message string, cause error) *AppError {
	return newProtocolError(KindInvalidRedirectURI, OAuthInvalidRequest, http.StatusBadRequest, message, cause)
}

func ScopeNotAllowedError(message string, cause error) *AppError {
	return newProtocolError(KindScopeNotAllowed, OAuthInvalidScope, http.StatusBadRequest, message, cause)
}

func PKCERequiredError(message string, cause error) *AppError {
	return newProtocolError(KindPKCERequired, OAuthInvalidRequest, http.StatusBadRequest, message, cause)
}

func InvalidChallengeMethodError(message string, cause error) *AppError {
	return newProtocolError(KindInvalidChallengeMethod, OAuthInvalidRequest, http.StatusBadRequest, message, cause)
}

func PKCEVerificationFailedError(message string, cause error) *AppError {
	return newProtocolError(KindPKCEVerificationFailed, OAuthInvalidGrant, http.StatusBadRequest, message, cause)
}

func UserNotFoundError(message string, cause error) *AppError {
	return newProtocolError(KindUserNotFound, OAuthAccessDenied, http.StatusForbidden, message, cause)
}

func CrossTenantAccessError(message string, cause error) *AppError {
	return newProtocolError(KindCrossTenantAccess, OAuthAccessDenied, http.StatusForbidden, message, cause)
}

func UnsupportedResponseTypeError(message string, cause error) *AppError {
	return newProtocolError(KindUnsupportedResponse, OAuthUnsupportedResponseType, http.StatusBadRequest, message, cause)
}

func InvalidStateError(message string, cause error) *AppError {
	return newProtocolError(KindInvalidState, OAuthInvalidRequest, http.StatusBadRequest, message, cause)
}

func CodeNotFoundError(message string, cause error) *AppError {
	return newProtocolError(KindCodeNotFound, OAuthInvalidGrant, http.StatusBadRequest, message, cause)
}

func CodeExpiredError(message string, cause error) *AppError {
	return newProtocolError(KindCodeExpired, OAuthInvalidGrant, http.StatusBadRequest, message, cause)
}

func CodeAlreadyUsedError(message string, cause error) *AppError {
	return newProtocolError(KindCodeAlreadyUsed, OAuthInvalidGrant, http.StatusBadRequest, message, cause)
}

func RedirectURIMismatchError(message string, cause error) *AppError {
	return newProtocolError(KindRedirectURIMismatch, OAuthInvalidGrant, http.StatusBadRequest, message, cause)
}

func RefreshTokenNotFoundError(message string, cause error) *AppError {
	return newProtocolError(KindRefreshTokenNotFound, OAuthInvalidGrant, http.StatusBadRequest, message, cause)
}

func RefreshTokenExpiredError(message string, cause error) *AppError {
	return newProtocolError(KindRefreshTokenExpired, OAuthInvalidGrant, http.StatusBadRequest, message, cause)
}

func RefreshTokenRevokedError(message string, cause error) *AppError {
	return newProtocolError(KindRefreshTokenRevoked, OAuthInvalidGrant, http.StatusBadRequest, message, cause)
}

func ClientMismatchError(message string, cause error) *AppError {
	return newProtocolError(KindClientMismatch, OAuthInvalidGrant, http.StatusBadRequest, message, cause)
}

func ScopeExpansionDeniedError(message string, cause error) *AppError {
	return newProtocolError(KindScopeExpansionDenied, OAuthInvalidScope, http.StatusBadRequest, message, cause)
}

func ConsentRequiredError(message string, cause error) *AppError {
	return newProtocolError(KindConsentRequired, OAuthAccessDenied, http.StatusForbidden, message, cause)
}

// Infrastructure error constructors

func DatabaseError(message string, cause error) *AppError {
	return &AppError{
		Kind:      KindDatabaseError,
		Message:   message,
		OAuthCode: OAuthServerError,
		HTTPCode:  http.StatusServiceUnavailable,
		Retryable: true,
		Cause:     cause,
	}
}

func CacheError(message string, cause error) *AppError {
	return &AppError{
		Kind:      KindCacheError,
		Message:   message,
		OAuthCode: OAuthServerError,
		HTTPCode:  http.StatusServiceUnavailable,
		Retryable: true,
		Cause:     cause,
	}
}

func SigningKeyUnavailableError(message string, cause error) *AppError {
	return &AppError{
		Kind:      KindSigningKeyUnavailable,
		Message:   message,
		OAuthCode: OAuthServerError,
		HTTPCode:  http.StatusServiceUnavailable,
		Retryable: true,
		Cause:     cause,
	}
}

func InternalError(message string, cause error) *AppError {
	return &AppError{
		Kind:      KindInternalError,
		Message:   message,
		OAuthCode: OAuthServerError,
		HTTPCode:  http.StatusInternalServerError,
		Cause:     cause,
	}
}

func ConfigError(message string, cause error) *AppError {
	return &AppError{
		Kind:      KindConfigError,
		Message:   message,
		OAuthCode: OAuthServerError,
		HTTPCode:  http.StatusInternalServerError,
		Cause:     cause,
	}
}

// IsKind checks if an error carries a specific kind
func IsKind(err error, kind string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// IsRetryable reports whether the error is an infrastructure failure the
// caller may retry with backoff. Protocol rejections are never retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetHTTPCode extracts the HTTP status code from an error
func GetHTTPCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPCode
	}
	return http.StatusInternalServerError
}

// GetOAuthCode extracts the RFC 6749 wire code from an error
func GetOAuthCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.OAuthCode != "" {
		return appErr.OAuthCode
	}
	return OAuthServerError
}
