package handler

import (
	"encoding/json"
	"net/http"

	"github.com/concierge-api/internal/application/otp"
	"github.com/concierge-api/internal/pkg/validate"
)

// AuthHandler handles the one-time-code authentication endpoints.
type AuthHandler struct {
	svc otp.Service
}

func NewAuthHandler(svc otp.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req otp.RequestCodeInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	expiresIn, err := h.svc.RequestCode(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CodeRequestEnvelope{
		Message:   "verification code sent",
		ExpiresIn: expiresIn,
	})
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req otp.VerifyCodeInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.svc.VerifyCode(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{
		Bearer:       result.Bearer,
		RefreshToken: result.RefreshToken,
		Session:      result.Session,
	})
}
