package identity

import (
	"context"
	"strconv"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
)

type ctxKey int

const (
	userKey ctxKey = iota
	guestKey
	requestIDKey
	tokenKey
)

// Caller is who a request acts for: a user, or the guest device otherwise.
type Caller struct {
	User    *domain.User
	GuestID string
	Token   string
}

func (c Caller) Guest() bool { return c.User == nil }

// Owner is the storage scope of the caller.
func (c Caller) Owner() string {
	if c.User != nil {
		return "user:" + strconv.FormatInt(c.User.ID, 10)
	}
	return "guest:" + c.GuestID
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	ctx = context.WithValue(ctx, userKey, c.User)
	ctx = context.WithValue(ctx, guestKey, c.GuestID)
	return context.WithValue(ctx, tokenKey, c.Token)
}

func CallerFromContext(ctx context.Context) Caller {
	user, _ := ctx.Value(userKey).(*domain.User)
	guestID, _ := ctx.Value(guestKey).(string)
	token, _ := ctx.Value(tokenKey).(string)
	return Caller{User: user, GuestID: guestID, Token: token}
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
