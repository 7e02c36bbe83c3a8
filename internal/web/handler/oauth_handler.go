package handler

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/truxe-io/heimdall/internal/config"
	"github.com/truxe-io/heimdall/internal/directory"
	apperrors "github.com/truxe-io/heimdall/internal/errors"
	"github.com/truxe-io/heimdall/internal/jwks"
	"github.com/truxe-io/heimdall/internal/oauth"
	"github.com/truxe-io/heimdall/internal/oauth/authorize"
	"github.com/truxe-io/heimdall/internal/oauth/token"
	"github.com/truxe-io/heimdall/internal/web/middleware"
	"github.com/truxe-io/heimdall/internal/web/response"
)

// AuthenticatedUserHeader carries the resident user's ID, set by the
// authentication layer in front of this server.
const AuthenticatedUserHeader = "X-Authenticated-User"

// ConsentApprovedHeader carries the space-delimited scopes the user approved
// on the consent prompt, set by the same upstream layer that authenticates
// the user. Approval never rides on the query string the client application
// constructs.
const ConsentApprovedHeader = "X-Consent-Approved"

type OAuthHandler struct {
	Config    *config.Config
	Logger    *slog.Logger
	Authorize *authorize.Service
	Tokens    *token.Service
	Signer    jwks.Signer
	Limiter   middleware.RateLimiter
}

// NewOAuthHandler wires the entry points. The limiter is owned by the
// caller; nil disables rate limiting.
func NewOAuthHandler(
	cfg *config.Config,
	logger *slog.Logger,
	authorizeService *authorize.Service,
	tokenService *token.Service,
	signer jwks.Signer,
	limiter middleware.RateLimiter,
) OAuthHandler {
	return OAuthHandler{
		Config:    cfg,
		Logger:    logger,
		Authorize: authorizeService,
		Tokens:    tokenService,
		Signer:    signer,
		Limiter:   limiter,
	}
}

func (h *OAuthHandler) RegisterRoutes(mux *http.ServeMux) {
	chain := []middleware.Middleware{
		middleware.SecurityHeaders(),
		middleware.MaxBodyBytes(1 << 20),
	}

	if h.Limiter != nil {
		chain = append(chain, middleware.RateLimitMiddleware(h.Limiter, middleware.RateLimit{
			Requests: h.Config.Server.RateLimitRequests,
			Window:   h.Config.Server.RateLimitWindow,
			KeyFunc:  middleware.KeyByIP,
		}))
	}

	secure := middleware.Chain(chain...)

	mux.Handle("/oauth/authorize", secure(http.HandlerFunc(h.HandleAuthorize)))
	mux.Handle("/oauth/token", secure(http.HandlerFunc(h.HandleToken)))
	mux.Handle("/oauth/introspect", secure(http.HandlerFunc(h.HandleIntrospect)))
	mux.Handle("/oauth/revoke", secure(http.HandlerFunc(h.HandleRevoke)))
	mux.Handle("/.well-known/jwks.json", middleware.SecurityHeaders()(http.HandlerFunc(h.HandleJWKS)))
}

// HandleAuthorize processes GET /oauth/authorize. Client and redirect URI
// violations answer directly; once the redirect URI is known-good, errors go
// back to the client per RFC 6749 §4.1.2.1.
func (h *OAuthHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	query := r.URL.Query()

	req := authorize.AuthorizationRequest{
		ClientID:            query.Get("client_id"),
		RedirectURI:         query.Get("redirect_uri"),
		ResponseType:        query.Get("response_type"),
		Scopes:              oauth.SplitScope(query.Get("scope")),
		State:               query.Get("state"),
		CodeChallenge:       query.Get("code_challenge"),
		CodeChallengeMethod: query.Get("code_challenge_method"),
	}

	client, err := h.Tokens.Validators.ValidateClient(ctx, req.ClientID)
	if err != nil {
		// Never redirect before the client and its URI check out.
		response.OAuthErrorResponse(w, err, h.Logger)
		return
	}

	if !client.AllowsRedirectURI(req.RedirectURI) {
		response.OAuthErrorResponse(w,
			apperrors.InvalidRedirectURIError("redirect URI is not registered", nil), h.Logger)
		return
	}

	userID, err := uuid.Parse(r.Header.Get(AuthenticatedUserHeader))
	if err != nil || userID == uuid.Nil {
		h.Logger.WarnContext(ctx, "authorization attempted without an authenticated user", "client_id", req.ClientID)
		response.Redirect(w, http.StatusSeeOther,
			req.RedirectURI+"?error="+apperrors.OAuthAccessDenied+"&state="+url.QueryEscape(req.State))
		return
	}
	req.UserID = userID

	if err := h.Authorize.ValidateAuthorizationRequest(ctx, req); err != nil {
		response.OAuthErrorRedirect(w, req.RedirectURI, req.State, err, h.Logger)
		return
	}

	needsConsent, err := h.Authorize.NeedsConsent(ctx, client, userID, req.Scopes)
	if err != nil {
		response.OAuthErrorRedirect(w, req.RedirectURI, req.State, err, h.Logger)
		return
	}

	if needsConsent {
		// Only the upstream consent layer can assert approval, and only for
		// scopes the user actually saw on the prompt.
		approved := oauth.SplitScope(r.Header.Get(ConsentApprovedHeader))
		if len(approved) == 0 || !oauth.ScopesWithin(req.Scopes, approved) {
			response.OAuthErrorRedirect(w, req.RedirectURI, req.State,
				apperrors.ConsentRequiredError("user consent is required for the requested scopes", nil), h.Logger)
			return
		}

		if err := h.Authorize.RecordUserConsent(ctx, userID, req.ClientID, req.Scopes); err != nil {
			response.OAuthErrorRedirect(w, req.RedirectURI, req.State, err, h.Logger)
			return
		}
	}

	issued, err := h.Authorize.GenerateAuthorizationCode(ctx, authorize.GenerateCodeRequest{
		ClientID:            req.ClientID,
		UserID:              userID,
		RedirectURI:         req.RedirectURI,
		Scopes:              req.Scopes,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	})
	if err != nil {
		response.OAuthErrorRedirect(w, req.RedirectURI, req.State, err, h.Logger)
		return
	}

	redirect := req.RedirectURI + "?code=" + url.QueryEscape(issued.Code) + "&state=" + url.QueryEscape(req.State)
	response.Redirect(w, http.StatusSeeOther, redirect)
}

// HandleToken processes POST /oauth/token for the authorization_code and
// refresh_token grants.
func (h *OAuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		response.JSONResponse(w, http.StatusBadRequest, response.OAuthErrorBody{
			Error:            apperrors.OAuthInvalidRequest,
			ErrorDescription: "Failed to parse request body",
		})
		return
	}

	client, err := h.authenticateClient(r)
	if err != nil {
		response.OAuthErrorResponse(w, err, h.Logger)
		return
	}

	switch r.FormValue("grant_type") {
	case "authorization_code":
		grant, err := h.Authorize.ValidateAndConsumeCode(ctx, authorize.ConsumeCodeRequest{
			Code:         r.FormValue("code"),
			ClientID:     client.ClientID,
			RedirectURI:  r.FormValue("redirect_uri"),
			CodeVerifier: r.FormValue("code_verifier"),
		})
		if err != nil {
			response.OAuthErrorResponse(w, err, h.Logger)
			return
		}

		pair, err := h.Tokens.GenerateTokenPair(ctx, client.ClientID, grant.UserID, grant.Scopes)
		if err != nil {
			response.OAuthErrorResponse(w, err, h.Logger)
			return
		}

		response.JSONResponse(w, http.StatusOK, pair)

	case "refresh_token":
		pair, err := h.Tokens.RefreshTokens(ctx,
			r.FormValue("refresh_token"),
			client.ClientID,
			oauth.SplitScope(r.FormValue("scope")),
		)
		if err != nil {
			response.OAuthErrorResponse(w, err, h.Logger)
			return
		}

		response.JSONResponse(w, http.StatusOK, pair)

	default:
		response.JSONResponse(w, http.StatusBadRequest, response.OAuthErrorBody{
			Error:            apperrors.OAuthUnsupportedGrantType,
			ErrorDescription: "Unsupported grant_type",
		})
	}
}

// HandleIntrospect processes POST /oauth/introspect per RFC 7662. Invalid
// tokens introspect as inactive with HTTP 200.
func (h *OAuthHandler) HandleIntrospect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		response.JSONResponse(w, http.StatusBadRequest, response.OAuthErrorBody{
			Error:            apperrors.OAuthInvalidRequest,
			ErrorDescription: "Failed to parse request body",
		})
		return
	}

	if _, err := h.authenticateClient(r); err != nil {
		response.OAuthErrorResponse(w, err, h.Logger)
		return
	}

	result, err := h.Tokens.IntrospectToken(ctx, r.FormValue("token"))
	if err != nil {
		response.OAuthErrorResponse(w, err, h.Logger)
		return
	}

	response.JSONResponse(w, http.StatusOK, result)
}

// HandleRevoke processes POST /oauth/revoke per RFC 7009. Revocation is
// idempotent; unknown tokens still answer 200.
func (h *OAuthHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		response.JSONResponse(w, http.StatusBadRequest, response.OAuthErrorBody{
			Error:            apperrors.OAuthInvalidRequest,
			ErrorDescription: "Failed to parse request body",
		})
		return
	}

	if _, err := h.authenticateClient(r); err != nil {
		response.OAuthErrorResponse(w, err, h.Logger)
		return
	}

	if err := h.Tokens.RevokeToken(ctx, r.FormValue("token")); err != nil {
		response.OAuthErrorResponse(w, err, h.Logger)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// HandleJWKS serves the public signing keys.
func (h *OAuthHandler) HandleJWKS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSONResponse(w, http.StatusOK, h.Signer.JWKS())
}

// authenticateClient resolves and authenticates the calling client from
// Basic auth or form parameters. Confidential clients must present their
// secret; public clients (no stored hash) rely on PKCE instead.
func (h *OAuthHandler) authenticateClient(r *http.Request) (directory.Client, error) {
	clientID := r.FormValue("client_id")
	clientSecret := r.FormValue("client_secret")

	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Basic "); ok {
		credentials, err := base64.StdEncoding.DecodeString(after)
		if err != nil {
			return directory.Client{}, apperrors.InvalidClientSecretError("failed to decode authorization header", err)
		}

		parts := strings.SplitN(string(credentials), ":", 2)
		if len(parts) != 2 {
			return directory.Client{}, apperrors.InvalidClientSecretError("malformed authorization header", nil)
		}

		clientID = parts[0]
		clientSecret = parts[1]
	}

	if clientID == "" {
		return directory.Client{}, apperrors.ClientNotFoundError("missing client_id", nil)
	}

	client, err := h.Tokens.Validators.ValidateClient(r.Context(), clientID)
	if err != nil {
		return directory.Client{}, err
	}

	if client.SecretHash != "" {
		if err := directory.VerifySecret(client, clientSecret); err != nil {
			return directory.Client{}, err
		}
	}

	return client, nil
}
