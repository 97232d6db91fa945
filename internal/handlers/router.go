package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/qcom/accounts/internal/middleware"
	"github.com/sirupsen/logrus"
)

func NewRouter(
	authHandlers *AuthHandlers,
	authMiddleware *middleware.AuthMiddleware,
	logger *logrus.Logger,
) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.LoggingMiddleware(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	api := router.PathPrefix("/api").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", authHandlers.Register).Methods("POST", "OPTIONS")
	auth.HandleFunc("/verify-phone", authHandlers.VerifyPhone).Methods("POST", "OPTIONS")
	auth.HandleFunc("/verify-email", authHandlers.VerifyEmail).Methods("GET", "OPTIONS")
	auth.HandleFunc("/login", authHandlers.Login).Methods("POST", "OPTIONS")
	auth.HandleFunc("/forgot-password", authHandlers.ForgotPassword).Methods("POST", "OPTIONS")
	auth.HandleFunc("/reset-password", authHandlers.ResetPassword).Methods("POST", "OPTIONS")
	auth.HandleFunc("/resend-phone-otp", authHandlers.ResendPhoneOTP).Methods("POST", "OPTIONS")
	auth.HandleFunc("/resend-email-verification", authHandlers.ResendEmailVerification).Methods("POST", "OPTIONS")

	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware.RequireAuth)
	protected.HandleFunc("/auth/change-password", authHandlers.ChangePassword).Methods("POST", "OPTIONS")
	protected.HandleFunc("/profile", authHandlers.Profile).Methods("GET", "OPTIONS")

	return router
}
