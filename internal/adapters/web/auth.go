package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/logger"

	"github.com/golang-jwt/jwt/v5"
)

type principalKey struct{}

// principalFromContext returns the authenticated principal stored in ctx.
func principalFromContext(ctx context.Context) (core.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(core.Principal)
	return p, ok
}

// jwtClaims is the JWT payload struct used for signing and parsing.
type jwtClaims struct {
	UserID      int      `json:"user_id"`
	CompanyID   int      `json:"company_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

func (c *jwtClaims) principal() core.Principal {
	perms := make([]core.Action, len(c.Permissions))
	for i, p := range c.Permissions {
		perms[i] = core.Action(p)
	}
	return core.Principal{UserID: c.UserID, CompanyID: c.CompanyID, Role: core.Role(c.Role), Permissions: perms}
}

// issueToken signs an HS256 token carrying p for ttl.
func issueToken(secret string, ttl time.Duration, p core.Principal) (string, error) {
	perms := make([]string, len(p.Permissions))
	for i, a := range p.Permissions {
		perms[i] = string(a)
	}
	now := time.Now()
	claims := &jwtClaims{
		UserID:      p.UserID,
		CompanyID:   p.CompanyID,
		Role:        string(p.Role),
		Permissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(p.UserID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (h *Handler) parseToken(raw string) (*jwtClaims, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// bearerToken returns the token from the Authorization header, falling back to the auth_token cookie.
func bearerToken(r *http.Request) string {
	if v := r.Header.Get("Authorization"); strings.HasPrefix(v, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(v, "Bearer "))
	}
	if c, err := r.Cookie("auth_token"); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth is chi middleware that validates the bearer token or auth_token cookie and
// injects the Principal into the request context. Returns 401 if the token is absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		claims, err := h.parseToken(raw)
		if err != nil {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, claims.principal())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission refuses the request with 403 unless the principal holds action.
func (h *Handler) requirePermission(action core.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFromContext(r.Context())
			if !ok {
				writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
				return
			}
			if !core.HasPermission(p, action) {
				writeError(w, r, "missing permission "+string(action), "FORBIDDEN", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// scoped resolves {code} to a tenant scope before calling fn. A principal of another
// tenant gets 403 whether or not the company exists.
func (h *Handler) scoped(fn scopedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := principalFromContext(r.Context())
		sc, err := h.svc.ResolveScope(r.Context(), p, companyCode(r))
		if err != nil {
			if errors.Is(err, core.ErrNotFound) && !p.IsSuperuser() {
				err = fmt.Errorf("company %s: %w", companyCode(r), core.ErrForbidden)
			}
			h.writeServiceError(w, r, err)
			return
		}
		fn(w, r, sc)
	}
}

type sessionResponse struct {
	Token       string         `json:"token"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	User        *core.User     `json:"user"`
	Principal   core.Principal `json:"principal"`
	CompanyCode string         `json:"companyCode"`
}

// login handles POST /api/auth/login.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.svc.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			writeError(w, r, "invalid username or password", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	signed, err := issueToken(h.jwtSecret, h.tokenTTL, session.Principal)
	if err != nil {
		logger.LogError(logger.FromContext(r.Context(), h.log), "web", "login", "issue token", session.Principal.UserID, err)
		writeError(w, r, "token generation failed", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.tokenTTL.Seconds()),
	})
	writeJSON(w, sessionResponse{
		Token:       signed,
		ExpiresAt:   time.Now().Add(h.tokenTTL),
		User:        session.User,
		Principal:   session.Principal,
		CompanyCode: session.CompanyCode,
	})
}

// logout handles POST /api/auth/logout: clears the auth cookie.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// me handles GET /api/auth/me: returns the current user's profile.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	result, err := h.svc.GetUser(r.Context(), p.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	type meResponse struct {
		User        *core.User     `json:"user"`
		Principal   core.Principal `json:"principal"`
		CompanyCode string         `json:"companyCode"`
	}
	writeJSON(w, meResponse{User: result.User, Principal: result.Principal, CompanyCode: result.CompanyCode})
}

// changePassword handles POST /api/auth/password.
func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	p, _ := principalFromContext(r.Context())
	if err := h.svc.ChangePassword(r.Context(), p.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listCompanies handles GET /api/companies.
func (h *Handler) listCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.svc.ListCompanies(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, companies)
}

// createCompany handles POST /api/companies.
func (h *Handler) createCompany(w http.ResponseWriter, r *http.Request) {
	var input core.CompanyInput
	if !decodeJSON(w, r, &input) {
		return
	}
	company, err := h.svc.CreateCompany(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, company)
}

