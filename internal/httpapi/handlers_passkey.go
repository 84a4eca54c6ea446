package httpapi

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/MrEthical07/havenAuth/middleware"
	"github.com/MrEthical07/havenAuth/passkey"
	"github.com/go-chi/chi/v5"
)

type challengeRequest struct {
	Purpose passkey.Purpose `json:"purpose"`
}

// challengeResponse is read by passkey.ChallengeClient; the challenge is
// standard base64.
type challengeResponse struct {
	Challenge string `json:"challenge"`
	Ticket    string `json:"ticket"`
}

type registerRequest struct {
	UserID            string `json:"userId,omitempty"`
	Name              string `json:"name,omitempty"`
	AttestationObject string `json:"attestation_object"`
	ClientDataJSON    string `json:"client_data_json"`
	DeviceType        string `json:"device_type,omitempty"`
	Transports        string `json:"transports,omitempty"`
	Ticket            string `json:"ticket"`
}

type passkeySignInRequest struct {
	AuthenticatorData string `json:"authenticator_data"`
	ClientDataJSON    string `json:"client_data_json"`
	CredentialID      string `json:"credential_id"`
	Signature         string `json:"signature"`
	Ticket            string `json:"ticket"`
}

type credentialView struct {
	CredentialID string    `json:"credentialId"`
	Name         string    `json:"name"`
	DeviceType   string    `json:"deviceType"`
	Transports   string    `json:"transports,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toCredentialView(c *passkey.Credential) credentialView {
	return credentialView{
		CredentialID: c.CredentialID,
		Name:         c.DisplayName(),
		DeviceType:   c.DeviceType,
		Transports:   c.Transports,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// passkeyChallenge answers the challenge endpoint the passkey client calls.
// Registration challenges need a session; sign-in challenges do not.
func (h *Handler) passkeyChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if req.Purpose != passkey.PurposeRegister && req.Purpose != passkey.PurposeSignIn {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "unknown challenge purpose")
		return
	}
	id, _ := middleware.IdentityFromContext(r.Context())
	ch, err := h.engine.PasskeyChallenge(r.Context(), req.Purpose, id)
	if err != nil {
		h.writeDomainError(w, r, "passkey_challenge", err)
		return
	}
	writeJSON(w, http.StatusOK, challengeResponse{
		Challenge: base64.StdEncoding.EncodeToString(ch.Bytes),
		Ticket:    ch.Ticket,
	})
}

func (h *Handler) passkeyRegistrationOptions(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	opts, ticket, err := h.engine.PasskeyRegistrationOptions(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, "passkey_register_options", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"options": opts, "ticket": ticket})
}

func (h *Handler) passkeySignInOptions(w http.ResponseWriter, r *http.Request) {
	opts, ticket, err := h.engine.PasskeySignInOptions(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "passkey_signin_options", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"options": opts, "ticket": ticket})
}

func (h *Handler) passkeyRegister(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if req.UserID != "" && req.UserID != id.ID {
		writeError(w, http.StatusForbidden, codeForbidden, "Forbidden")
		return
	}
	cred, err := h.engine.RegisterPasskey(r.Context(), id, req.Name, passkey.RegistrationResult{
		AttestationObject: req.AttestationObject,
		ClientDataJSON:    req.ClientDataJSON,
		DeviceType:        req.DeviceType,
		Transports:        req.Transports,
		Ticket:            req.Ticket,
	})
	if err != nil {
		h.writeDomainError(w, r, "passkey_register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toCredentialView(cred))
}

func (h *Handler) passkeySignIn(w http.ResponseWriter, r *http.Request) {
	var req passkeySignInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	res, err := h.engine.SignInWithPasskey(r.Context(), passkey.AssertionResult{
		AuthenticatorData: req.AuthenticatorData,
		ClientDataJSON:    req.ClientDataJSON,
		CredentialID:      req.CredentialID,
		Signature:         req.Signature,
		Ticket:            req.Ticket,
	})
	if err != nil {
		h.writeDomainError(w, r, "passkey_signin", err)
		return
	}
	h.establishSession(w, res)
}

func (h *Handler) listPasskeys(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	creds, err := h.engine.Passkeys(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, "passkey_list", err)
		return
	}
	out := make([]credentialView, 0, len(creds))
	for i := range creds {
		out = append(out, toCredentialView(&creds[i]))
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) deletePasskey(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if err := h.engine.DeletePasskey(r.Context(), id, chi.URLParam(r, "credentialID")); err != nil {
		h.writeDomainError(w, r, "passkey_delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
