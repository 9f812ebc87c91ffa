package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/admin"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/identity"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	GuestCookie  = "guest_id"
	TokenCookie  = "access_token"
	TabIDHeader  = "X-Tab-ID"
	guestIDTTL   = 365 * 24 * time.Hour
	requestIDHdr = "X-Request-ID"
)

type IdentityService interface {
	Resolve(ctx context.Context, token string) (*domain.User, error)
	Refresh(ctx context.Context, token string) (*domain.User, error)
	Clear(ctx context.Context, userID int64)
}

// RequestIDMiddleware exposes chi's request id to the backend client and the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHdr, requestID)
		next.ServeHTTP(w, r.WithContext(identity.WithRequestID(r.Context(), requestID)))
	})
}

// GuestMiddleware makes sure every caller carries a device id, logged in or not.
// Guest carts, guest addresses and checkout sessions are keyed by it.
func GuestMiddleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guestID := ""
			if c, err := r.Cookie(GuestCookie); err == nil {
				if id, err := uuid.Parse(c.Value); err == nil {
					guestID = id.String()
				}
			}
			if guestID == "" {
				guestID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     GuestCookie,
					Value:    guestID,
					Path:     "/",
					MaxAge:   int(guestIDTTL.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := identity.WithCaller(r.Context(), identity.Caller{GuestID: guestID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthMiddleware resolves the bearer token into the caller. Requests with a
// missing or rejected token continue as guests.
func AuthMiddleware(ids IdentityService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			caller := identity.CallerFromContext(ctx)

			cookie := ""
			if c, err := r.Cookie(TokenCookie); err == nil {
				cookie = c.Value
			}
			token := identity.TokenFromRequest(r.Header.Get("Authorization"), cookie)

			user, err := ids.Resolve(ctx, token)
			if err != nil {
				handleError(w, r, err)
				return
			}
			caller.User = user
			if user != nil {
				caller.Token = token
			}

			ctx = identity.WithCaller(ctx, caller)
			ctx = backend.WithCredentials(ctx, caller.Token, identity.RequestIDFromContext(ctx))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity.CallerFromContext(r.Context()).Guest() {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := identity.CallerFromContext(r.Context())
		if caller.Guest() {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		if !caller.User.IsAdmin() {
			handleError(w, r, admin.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BodyLimitMiddleware caps request bodies at limit bytes.
func BodyLimitMiddleware(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && limit > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tabID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(TabIDHeader))
}
