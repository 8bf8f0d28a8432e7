package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/identity"
	"github.com/jonathan/resume-optimizer/internal/server/middleware"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/jonathan/resume-optimizer/internal/web"
)

// nextCookie remembers where to go after the identity provider round trip.
const nextCookie = "ro_oauth_next"

const defaultLanding = "/app"

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	users     *UserService
	jwt       *JWTService
	jwtConfig *config.JWTConfig
	google    *identity.Google // nil when Google sign-in is not configured
	devBypass bool
	renderer  *web.Renderer
	logger    *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(users *UserService, jwt *JWTService, jwtConfig *config.JWTConfig,
	google *identity.Google, devBypass bool, renderer *web.Renderer, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		users:     users,
		jwt:       jwt,
		jwtConfig: jwtConfig,
		google:    google,
		devBypass: devBypass,
		renderer:  renderer,
		logger:    logger,
	}
}

// SignInPage renders the sign-in page, or skips it for users already signed in.
func (h *AuthHandler) SignInPage(w http.ResponseWriter, r *http.Request) {
	next := middleware.SafeNext(r.URL.Query().Get("next"), defaultLanding)
	if _, ok := middleware.GetClaims(r); ok {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	h.renderSignIn(w, r, http.StatusOK, next, "")
}

func (h *AuthHandler) renderSignIn(w http.ResponseWriter, r *http.Request, status int, next, message string) {
	h.renderer.Handler(web.PageSignIn, status, web.View{
		Title:  "Sign in",
		Active: web.PageSignIn,
		Data: web.SignInData{
			Next:          next,
			GoogleEnabled: h.google != nil,
			DevBypass:     h.devBypass,
			Error:         message,
		},
	}).ServeHTTP(w, r)
}

// GoogleStart redirects to the Google consent screen.
func (h *AuthHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.renderer.Error(w, r, http.StatusNotFound, "Google sign-in is not configured.", nil)
		return
	}

	st, err := identity.NewState()
	if err != nil {
		h.logger.Error("failed to create oauth state", "error", err)
		h.renderer.Error(w, r, http.StatusInternalServerError, "", nil)
		return
	}
	identity.SetStateCookie(w, st, h.jwtConfig.SecureCookie)
	http.SetCookie(w, &http.Cookie{
		Name:     nextCookie,
		Value:    middleware.SafeNext(r.URL.Query().Get("next"), defaultLanding),
		Path:     "/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.jwtConfig.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthCodeURL(st), http.StatusFound)
}

// GoogleCallback completes the authorization-code flow.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	next := defaultLanding
	if c, err := r.Cookie(nextCookie); err == nil {
		next = middleware.SafeNext(c.Value, defaultLanding)
	}
	http.SetCookie(w, &http.Cookie{Name: nextCookie, Path: "/auth", MaxAge: -1})

	if h.google == nil {
		h.renderer.Error(w, r, http.StatusNotFound, "Google sign-in is not configured.", nil)
		return
	}
	if msg := r.URL.Query().Get("error"); msg != "" {
		h.renderSignIn(w, r, http.StatusBadRequest, next, "Sign-in was cancelled.")
		return
	}
	if err := identity.CheckState(w, r, h.jwtConfig.SecureCookie); err != nil {
		h.logger.Warn("oauth state check failed", "error", err)
		h.renderSignIn(w, r, http.StatusBadRequest, next, "Your sign-in attempt expired. Please try again.")
		return
	}

	rawIDToken, id, err := h.google.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.logger.Warn("oauth exchange failed", "error", err)
		h.renderSignIn(w, r, http.StatusBadRequest, next, "Google sign-in failed. Please try again.")
		return
	}

	if err := h.complete(w, r, id, rawIDToken); err != nil {
		h.renderSignIn(w, r, HTTPStatus(err), next, UserMessage(err))
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// DevSignIn signs in the fixed development user.
func (h *AuthHandler) DevSignIn(w http.ResponseWriter, r *http.Request) {
	if !h.devBypass {
		h.renderer.Error(w, r, http.StatusNotFound, "", nil)
		return
	}
	next := middleware.SafeNext(r.FormValue("next"), defaultLanding)
	if err := h.complete(w, r, identity.DevIdentity(), ""); err != nil {
		h.renderSignIn(w, r, HTTPStatus(err), next, UserMessage(err))
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// SignOut clears the session cookie and the stored backend credential.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if claims, ok := middleware.GetClaims(r); ok {
		if err := h.users.SignOut(r.Context(), claims.GetUserID()); err != nil {
			h.logger.Warn("sign-out failed", "user_id", claims.GetUserID(), "error", err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) complete(w http.ResponseWriter, r *http.Request, id *types.Identity, rawIDToken string) error {
	user, err := h.users.SignIn(r.Context(), id, rawIDToken)
	if err != nil {
		h.logger.Error("sign-in failed", "subject", id.Subject, "error", err)
		return err
	}

	token, err := h.jwt.GenerateToken(user)
	if err != nil {
		return fmt.Errorf("failed to issue session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.jwtConfig.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.jwt.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.jwtConfig.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.jwtConfig.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.jwtConfig.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
