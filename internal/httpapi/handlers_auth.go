package httpapi

import (
	"net/http"
	"strings"
	"time"

	havenAuth "github.com/MrEthical07/havenAuth"
	"github.com/MrEthical07/havenAuth/middleware"
	"github.com/MrEthical07/havenAuth/otp"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type secondFactorRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

type impersonateRequest struct {
	UserID string `json:"userId"`
}

type sessionResponse struct {
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// establishSession sets the cookie and answers with the session summary. The
// raw token only travels in the cookie.
func (h *Handler) establishSession(w http.ResponseWriter, res *havenAuth.SignInResult) {
	middleware.SetSessionCookie(w, res.Token, res.ExpiresAt, h.config.SecureCookies())
	writeSuccess(w, http.StatusOK, sessionResponse{
		UserID:    res.UserID,
		SessionID: res.SessionID,
		ExpiresAt: res.ExpiresAt,
	})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "email and password are required")
		return
	}
	res, err := h.engine.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, r, "signin", err)
		return
	}
	h.establishSession(w, res)
}

// verifySecondFactor spends an auth code and signs the user in.
func (h *Handler) verifySecondFactor(w http.ResponseWriter, r *http.Request) {
	var req secondFactorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	res, err := h.engine.VerifyOTP(r.Context(), req.UserID, req.Code, otp.TypeAuth)
	if err != nil {
		h.writeDomainError(w, r, "signin_2fa", err)
		return
	}
	if !res.Success {
		writeError(w, http.StatusUnauthorized, "INVALID_CODE", res.Message)
		return
	}
	signed, err := h.engine.SignIn(r.Context(), req.UserID)
	if err != nil {
		h.writeDomainError(w, r, "signin_2fa", err)
		return
	}
	h.establishSession(w, signed)
}

// signOut clears the cookie even when the session is already gone.
func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.SessionToken(r); ok {
		if err := h.engine.SignOut(r.Context(), token); err != nil {
			h.writeDomainError(w, r, "signout", err)
			return
		}
	}
	middleware.ClearSessionCookie(w, h.config.SecureCookies())
	writeMessage(w, http.StatusOK, "Signed out")
}

func (h *Handler) signOutAll(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if err := h.engine.SignOutAll(r.Context(), id); err != nil {
		h.writeDomainError(w, r, "signout_all", err)
		return
	}
	middleware.ClearSessionCookie(w, h.config.SecureCookies())
	writeMessage(w, http.StatusOK, "Signed out of all sessions")
}

// currentSession returns the identity and re-sets the cookie so a renewed
// expiry reaches the client.
func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if token, ok := middleware.SessionToken(r); ok {
		middleware.SetSessionCookie(w, token, id.Session.ExpiresAt, h.config.SecureCookies())
	}
	writeSuccess(w, http.StatusOK, id)
}

func (h *Handler) impersonate(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.IdentityFromContext(r.Context())
	var req impersonateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	res, err := h.engine.Impersonate(r.Context(), admin, req.UserID)
	if err != nil {
		h.writeDomainError(w, r, "impersonate", err)
		return
	}
	h.establishSession(w, res)
}
