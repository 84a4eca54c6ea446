package httpapi

import (
	"net/http"

	"github.com/MrEthical07/havenAuth/otp"
)

type otpRequest struct {
	UserID string `json:"userId"`
	Type   string `json:"type"`
}

type otpVerifyRequest struct {
	UserID string `json:"userId"`
	Type   string `json:"type"`
	Code   string `json:"code"`
}

func (h *Handler) issueOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	t, err := otp.ParseType(req.Type)
	if err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, codeInvalidInput, otp.MsgInvalidParams)
		return
	}
	code, err := h.engine.IssueOTP(r.Context(), req.UserID, t)
	if err != nil {
		h.writeDomainError(w, r, "otp_issue", err)
		return
	}
	if err := h.codes.SendCode(r.Context(), req.UserID, t, code); err != nil {
		h.writeDomainError(w, r, "otp_send", err)
		return
	}
	writeMessage(w, http.StatusAccepted, "Verification code sent")
}

func (h *Handler) resendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	t, _ := otp.ParseType(req.Type)
	res, err := h.engine.ResendOTP(r.Context(), req.UserID, t)
	if err != nil {
		h.writeDomainError(w, r, "otp_resend", err)
		return
	}
	if !res.Success {
		if res.Message == otp.MsgWait {
			writeError(w, http.StatusTooManyRequests, codeRateLimited, res.Message)
			return
		}
		writeError(w, http.StatusBadRequest, codeInvalidInput, res.Message)
		return
	}
	if err := h.codes.SendCode(r.Context(), req.UserID, t, res.Code); err != nil {
		h.writeDomainError(w, r, "otp_send", err)
		return
	}
	writeMessage(w, http.StatusAccepted, "Verification code sent")
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	t, _ := otp.ParseType(req.Type)
	res, err := h.engine.VerifyOTP(r.Context(), req.UserID, req.Code, t)
	if err != nil {
		h.writeDomainError(w, r, "otp_verify", err)
		return
	}
	if !res.Success {
		writeError(w, http.StatusBadRequest, "INVALID_CODE", res.Message)
		return
	}
	writeMessage(w, http.StatusOK, res.Message)
}
