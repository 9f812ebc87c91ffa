package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Services struct {
	Identity  IdentityService
	Carts     CartService
	Updates   Subscriber
	Checkout  CheckoutService
	Addresses AddressService
	Vouchers  VoucherService
	Admin     AdminService
}

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	SecureCookies      bool
}

// NewRouter mounts the storefront API. Streaming endpoints sit outside the
// request timeout.
func NewRouter(svc Services, cfg RouterConfig, log *slog.Logger) http.Handler {
	cartHandler := NewCartHandler(svc.Carts, svc.Updates, cfg.RequestTimeout, log)
	checkoutHandler := NewCheckoutHandler(svc.Checkout, cfg.RequestTimeout)
	accountHandler := NewAccountHandler(svc.Identity, svc.Addresses, svc.Vouchers, cfg.RequestTimeout)
	adminHandler := NewAdminHandler(svc.Admin, cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(BodyLimitMiddleware(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	timeout := middleware.Timeout(cfg.RequestTimeout)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(GuestMiddleware(cfg.SecureCookies))
		r.Use(AuthMiddleware(svc.Identity))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/events", cartHandler.Events)
			r.Group(func(r chi.Router) {
				r.Use(timeout)
				r.Get("/", cartHandler.GetCart)
				r.Get("/count", cartHandler.Count)
				r.Post("/items", cartHandler.AddItem)
				r.Patch("/items/{variantID}", cartHandler.ChangeQuantity)
				r.Delete("/items/{variantID}", cartHandler.RemoveItem)
				r.With(RequireUser).Post("/merge", cartHandler.Merge)
			})
		})

		r.Route("/orders/{order}", func(r chi.Router) {
			r.Get("/payment", checkoutHandler.WatchPayment)
			r.With(timeout).Get("/verify", checkoutHandler.VerifyOrder)
		})

		r.Group(func(r chi.Router) {
			r.Use(timeout)

			r.Get("/me", accountHandler.Me)
			r.Post("/me/refresh", accountHandler.Refresh)
			r.Post("/logout", accountHandler.Logout)

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", checkoutHandler.GetSession)
				r.Post("/session", checkoutHandler.StartSession)
				r.Post("/address", checkoutHandler.SetAddress)
				r.Post("/voucher", checkoutHandler.ApplyVoucher)
				r.Delete("/voucher", checkoutHandler.RemoveVoucher)
				r.Post("/submit", checkoutHandler.Submit)
			})

			r.Route("/addresses", func(r chi.Router) {
				r.Use(RequireUser)
				r.Get("/", accountHandler.ListAddresses)
				r.Post("/", accountHandler.CreateAddress)
				r.Put("/{id}", accountHandler.UpdateAddress)
				r.Delete("/{id}", accountHandler.DeleteAddress)
				r.Post("/{id}/default", accountHandler.SetDefaultAddress)
			})
			r.Get("/guest/address", accountHandler.GuestAddress)
			r.Put("/guest/address", accountHandler.SaveGuestAddress)

			r.Post("/vouchers/check", accountHandler.CheckVoucher)
			r.Group(func(r chi.Router) {
				r.Use(RequireUser)
				r.Get("/vouchers/saved", accountHandler.SavedVouchers)
				r.Post("/vouchers/{id}/save", accountHandler.SaveVoucher)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/collections", adminHandler.ListCollections)
				r.Post("/collections", adminHandler.CreateCollection)
				r.Put("/collections/{id}", adminHandler.UpdateCollection)
				r.Delete("/collections/{id}", adminHandler.DeleteCollection)
				r.Get("/vouchers", adminHandler.ListVouchers)
				r.Post("/vouchers", adminHandler.CreateVoucher)
				r.Put("/vouchers/{id}", adminHandler.UpdateVoucher)
				r.Delete("/vouchers/{id}", adminHandler.DeleteVoucher)
				r.Get("/staff", adminHandler.ListStaff)
				r.Post("/staff", adminHandler.CreateStaff)
				r.Put("/staff/{id}", adminHandler.UpdateStaff)
				r.Get("/statistics", adminHandler.Statistics)
			})
		})
	})

	return r
}
