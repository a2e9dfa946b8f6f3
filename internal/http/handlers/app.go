package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"server/internal/billing"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/infra/google"
	"server/internal/middleware"
	"server/internal/providers/avatar"
	"server/internal/quota"
	"server/internal/storage"
)

// GoogleVerifier validates Google ID tokens into profiles.
type GoogleVerifier interface {
	VerifyIDToken(ctx context.Context, token string) (*google.Profile, error)
}

// UserAccounts is the user persistence the handlers need directly.
type UserAccounts interface {
	UpsertByGoogleSub(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// CheckoutProvider opens hosted checkout sessions.
type CheckoutProvider interface {
	Configured() bool
	CreateSession(ctx context.Context, userID string) (*billing.CheckoutSession, error)
}

// App wires the HTTP handlers to the application services.
type App struct {
	SQL       infra.SQLExecutor
	Logger    zerolog.Logger
	Config    *infra.Config
	JWTSecret string

	Verifier  GoogleVerifier
	Users     UserAccounts
	Sessions  *quota.Manager
	Gate      *quota.Gate
	Resolver  *quota.Resolver
	Counters  domain.CounterStore
	Activator *billing.Activator
	Checkout  CheckoutProvider
	Store     *storage.FileStore
	Avatars   avatar.Provider
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorResponse{Error: kind, Message: message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// currentIdentity builds the verified identity for gate and billing calls.
// The JWT middleware already checked the signature, so a present user id is
// a verified one.
func (a *App) currentIdentity(r *http.Request) domain.Identity {
	id := a.currentUserID(r)
	return domain.Identity{ID: id, Verified: id != ""}
}

// fileURL maps a storage key to its public URL.
func (a *App) fileURL(key string) string {
	if key == "" {
		return ""
	}
	return strings.TrimRight(a.Config.StorageBaseURL, "/") + "/" + strings.TrimLeft(key, "/")
}
