package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	apperrors "github.com/truxe-io/heimdall/internal/errors"
)

// OAuthErrorBody is the RFC 6749 §5.2 error body of the token endpoints.
type OAuthErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func Redirect(w http.ResponseWriter, status int, location string) {
	w.Header().Set("Location", location)
	w.WriteHeader(status)
}

func JSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// OAuthErrorResponse translates an application error into the RFC 6749 wire
// format. Internal details never leave the process; infrastructure errors
// collapse to server_error with a generic description.
func OAuthErrorResponse(w http.ResponseWriter, err error, logger *slog.Logger) {
	oauthCode := apperrors.GetOAuthCode(err)
	httpCode := apperrors.GetHTTPCode(err)

	description := "The request could not be processed"
	if appErr, ok := asAppError(err); ok && !appErr.Retryable && appErr.Kind != apperrors.KindInternalError {
		description = appErr.Message
	}

	if logger != nil {
		if apperrors.IsRetryable(err) || apperrors.IsKind(err, apperrors.KindInternalError) {
			logger.Error("request failed", "error", err.Error())
		} else {
			logger.Warn("request rejected", "oauth_code", oauthCode, "error", err.Error())
		}
	}

	JSONResponse(w, httpCode, OAuthErrorBody{
		Error:            oauthCode,
		ErrorDescription: description,
	})
}

// OAuthErrorRedirect sends an authorization endpoint error back to the
// client's redirect URI per RFC 6749 §4.1.2.1, round-tripping state.
func OAuthErrorRedirect(w http.ResponseWriter, redirectURI, state string, err error, logger *slog.Logger) {
	oauthCode := apperrors.GetOAuthCode(err)

	if logger != nil {
		logger.Warn("authorization request rejected", "oauth_code", oauthCode, "error", err.Error())
	}

	query := url.Values{}
	query.Set("error", oauthCode)
	if state != "" {
		query.Set("state", state)
	}

	Redirect(w, http.StatusSeeOther, redirectURI+"?"+query.Encode())
}

func asAppError(err error) (*apperrors.AppError, bool) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
