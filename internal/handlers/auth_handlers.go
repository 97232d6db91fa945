package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/qcom/accounts/internal/middleware"
	"github.com/qcom/accounts/internal/models"
	"github.com/qcom/accounts/internal/service"
	"github.com/sirupsen/logrus"
)

type AuthHandlers struct {
	accounts *service.AccountService
	logger   *logrus.Logger
}

func NewAuthHandlers(accounts *service.AccountService, logger *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{
		accounts: accounts,
		logger:   logger,
	}
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserIDResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type LoginResponse struct {
	Message string                `json:"message"`
	Token   string                `json:"token"`
	User    models.AccountSummary `json:"user"`
}

type ProfileResponse struct {
	User models.AccountSummary `json:"user"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	userID, err := h.accounts.Register(r.Context(), service.RegisterInput{
		FullName: req.FullName,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to register account")
		return
	}

	h.respondWithJSON(w, http.StatusCreated, UserIDResponse{
		Message: "User registered successfully. Please verify your phone and email.",
		UserID:  userID,
	})
}

func (h *AuthHandlers) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req VerifyPhoneRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.accounts.VerifyPhone(r.Context(), req.UserID, req.OTP); err != nil {
		h.respondWithServiceError(w, err, "Failed to verify phone")
		return
	}

	h.respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Phone verified successfully"})
}

// VerifyEmail is reached from the link in the verification email, so the
// token arrives as a query parameter.
func (h *AuthHandlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "token: cannot be blank.")
		return
	}

	if err := h.accounts.VerifyEmail(r.Context(), token); err != nil {
		h.respondWithServiceError(w, err, "Failed to verify email")
		return
	}

	h.respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Email verified successfully"})
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Phone, req.Password)
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to log in")
		return
	}

	h.respondWithJSON(w, http.StatusOK, LoginResponse{
		Message: "Login successful",
		Token:   result.Token,
		User:    result.Account,
	})
}

func (h *AuthHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	userID, err := h.accounts.ForgotPassword(r.Context(), req.Phone)
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to start password reset")
		return
	}

	h.respondWithJSON(w, http.StatusOK, UserIDResponse{
		Message: "OTP sent to your phone number",
		UserID:  userID,
	})
}

func (h *AuthHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), req.UserID, req.OTP, req.NewPassword); err != nil {
		h.respondWithServiceError(w, err, "Failed to reset password")
		return
	}

	h.respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Password reset successfully"})
}

func (h *AuthHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Not authorized")
		return
	}

	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), accountID, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondWithServiceError(w, err, "Failed to change password")
		return
	}

	h.respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}

func (h *AuthHandlers) ResendPhoneOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.accounts.ResendPhoneOTP(r.Context(), req.UserID); err != nil {
		h.respondWithServiceError(w, err, "Failed to resend phone OTP")
		return
	}

	h.respondWithJSON(w, http.StatusOK, MessageResponse{Message: "OTP sent successfully"})
}

func (h *AuthHandlers) ResendEmailVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.accounts.ResendEmailVerification(r.Context(), req.UserID); err != nil {
		h.respondWithServiceError(w, err, "Failed to resend verification email")
		return
	}

	h.respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Verification email sent successfully"})
}

func (h *AuthHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Not authorized")
		return
	}

	profile, err := h.accounts.Profile(r.Context(), accountID)
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to load profile")
		return
	}

	h.respondWithJSON(w, http.StatusOK, ProfileResponse{User: *profile})
}

// decode reads and validates a JSON body, writing the 400 response itself
// when either step fails.
func (h *AuthHandlers) decode(w http.ResponseWriter, r *http.Request, req validation.Validatable) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return false
	}
	if err := req.Validate(); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
}

func (h *AuthHandlers) respondWithServiceError(w http.ResponseWriter, err error, logMessage string) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		h.logger.WithError(err).Error(logMessage)
		h.respondWithError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error")
		return
	}

	status, code := http.StatusBadRequest, "BAD_REQUEST"
	switch {
	case errors.Is(err, service.ErrConflict):
		code = "CONFLICT"
	case errors.Is(err, service.ErrAlreadyVerified):
		code = "ALREADY_VERIFIED"
	case errors.Is(err, service.ErrInvalid):
		code = "INVALID"
	case errors.Is(err, service.ErrExpired):
		code = "EXPIRED"
	case errors.Is(err, service.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, service.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	}
	h.respondWithError(w, status, code, svcErr.Message)
}

func (h *AuthHandlers) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

func (h *AuthHandlers) respondWithError(w http.ResponseWriter, status int, code, message string) {
	h.respondWithJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
