/**
 * @description
 * This file sets up the HTTP router for the wallet-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * the authentication and checksum middleware.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ytlpay/wallet-service/pkg/checksum"
)

// Routes creates and returns the router for the wallet service. The checksum
// gate applies only to transaction creation; every other endpoint relies on
// bearer-token authentication alone.
func Routes(h *WalletHandlers, jwtSecret string, verifier *checksum.Verifier, trustedOriginHeader string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.CreateAccountHandler)
			r.Get("/", h.ListAccountsHandler)
			r.Get("/by-user-id", h.GetAccountsByUserHandler)
			r.Get("/by-number/{accountNumber}", h.GetAccountByNumberHandler)
			r.Get("/{accountID}", h.GetAccountHandler)
			r.Patch("/{accountID}", h.UpdateAccountHandler)
			r.Delete("/{accountID}", h.DeleteAccountHandler)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.With(ChecksumMiddleware(verifier, trustedOriginHeader)).Post("/", h.CreateTransactionHandler)
			r.Get("/", h.ListTransactionsHandler)
			r.Get("/{transactionID}", h.GetTransactionHandler)
			r.Patch("/{transactionID}", h.UpdateTransactionHandler)
			r.Delete("/{transactionID}", h.DeleteTransactionHandler)
		})
	})

	return r
}
