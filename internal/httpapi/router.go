package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	havenAuth "github.com/MrEthical07/havenAuth"
	"github.com/MrEthical07/havenAuth/middleware"
	"github.com/MrEthical07/havenAuth/otp"
	"github.com/MrEthical07/havenAuth/permission"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// CodeSender delivers one-time codes to users, by email or otherwise.
type CodeSender interface {
	SendCode(ctx context.Context, userID string, t otp.Type, code string) error
}

// Option configures a [Handler].
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithCodeSender sets where issued one-time codes go. Without one, codes are
// discarded with a warning.
func WithCodeSender(sender CodeSender) Option {
	return func(h *Handler) {
		if sender != nil {
			h.codes = sender
		}
	}
}

// WithMetricsHandler mounts handler at /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(h *Handler) {
		h.metrics = handler
	}
}

// Handler is the HTTP adapter over a built engine.
type Handler struct {
	engine  *havenAuth.Engine
	config  havenAuth.Config
	codes   CodeSender
	metrics http.Handler
	proxies *middleware.ProxyTrust
	logger  *slog.Logger
}

// NewHandler binds a Handler to engine.
func NewHandler(engine *havenAuth.Engine, opts ...Option) *Handler {
	h := &Handler{
		engine: engine,
		logger: slog.Default(),
	}
	if engine != nil {
		h.config = engine.Config()
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.codes == nil {
		h.codes = discardSender{logger: h.logger}
	}
	proxies, err := middleware.NewProxyTrust(h.config.HTTP.TrustedProxies)
	if err != nil {
		h.logger.Warn("ignoring trusted proxies",
			"module", "httpapi",
			"operation", "new_handler",
			"error", err,
		)
	}
	h.proxies = proxies
	return h
}

// NewRouter registers the routes and the middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)
	r.Use(h.proxies.RequestMeta)

	r.Get("/healthz", h.healthz)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	guard := middleware.SessionGuard(h.engine)
	challengeLimit := h.proxies.RateLimit(rate.Limit(h.config.Passkey.ChallengeRate), h.config.Passkey.ChallengeBurst)
	otpLimit := h.proxies.RateLimit(rate.Limit(h.config.OTP.RequestRate), h.config.OTP.RequestBurst)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signin", h.signIn)
		r.Post("/signout", h.signOut)
		r.Post("/_2fa/otp", h.verifySecondFactor)

		r.Group(func(r chi.Router) {
			r.Use(otpLimit)
			r.Post("/otp", h.issueOTP)
			r.Post("/otp/resend", h.resendOTP)
			r.Post("/otp/verify", h.verifyOTP)
		})

		r.Route("/webauthn", func(r chi.Router) {
			r.With(challengeLimit, middleware.OptionalSession(h.engine)).Post("/challenge", h.passkeyChallenge)
			r.With(challengeLimit).Post("/signin/options", h.passkeySignInOptions)
			r.Post("/signin", h.passkeySignIn)

			r.Group(func(r chi.Router) {
				r.Use(guard)
				r.With(challengeLimit).Post("/register/options", h.passkeyRegistrationOptions)
				r.Post("/register", h.passkeyRegister)
				r.Get("/credentials", h.listPasskeys)
				r.Delete("/credentials/{credentialID}", h.deletePasskey)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(guard)
			r.Get("/session", h.currentSession)
			r.Post("/signout-all", h.signOutAll)
			r.With(middleware.RequireRole(permission.RoleAdmin)).Post("/impersonate", h.impersonate)
		})
	})

	r.Route("/api/permissions", func(r chi.Router) {
		r.Use(guard)
		r.Get("/", h.permissionSummary)
		r.Get("/check", h.checkPermission)
		r.Post("/refresh", h.refreshPermissions)

		r.Route("/businesses/{businessID}", func(r chi.Router) {
			r.Use(middleware.RequireBusinessPermission(h.engine, businessParam, permission.ActionUpdate, permission.ResourceStaff))
			r.Get("/roles", h.listRoles)
			r.Post("/roles", h.createRole)
			r.Patch("/roles/{roleID}", h.updateRole)
			r.Get("/assignments", h.listAssignments)
			r.Put("/assignments/{userID}", h.assignRole)
			r.With(middleware.DenyRestrictedInBusiness(h.engine, businessParam, permission.RestrictNoDelete)).Delete("/assignments/{userID}", h.removeAssignment)
		})
	})

	return r
}

func businessParam(r *http.Request) string {
	return chi.URLParam(r, "businessID")
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	if h.engine == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "engine not ready")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

type discardSender struct {
	logger *slog.Logger
}

func (d discardSender) SendCode(ctx context.Context, userID string, t otp.Type, _ string) error {
	d.logger.WarnContext(ctx, "otp delivery not configured",
		"module", "httpapi",
		"operation", "otp_send",
		"outcome", "dropped",
		"user_id", userID,
		"type", string(t),
	)
	return nil
}
