package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/middleware"
)

type googleVerifyRequest struct {
	IDToken string `json:"id_token"`
}

type googleVerifyResponse struct {
	Token string         `json:"token"`
	User  userProfileDTO `json:"user"`
}

type userProfileDTO struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Picture    string     `json:"picture"`
	Plan       string     `json:"plan"`
	Locale     string     `json:"locale"`
	UpgradedAt *time.Time `json:"upgraded_at,omitempty"`
}

func (a *App) AuthGoogleVerify(w http.ResponseWriter, r *http.Request) {
	var req googleVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.IDToken == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id_token required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	profile, err := a.Verifier.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		a.Logger.Error().Err(err).Msg("google verify failed")
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid google token")
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	if profile.Locale != "" {
		locale = profile.Locale
	}
	picture := profile.Picture
	if picture == "" && a.Avatars != nil {
		picture = a.Avatars.URL(profile.Name)
	}
	user, err := a.Users.UpsertByGoogleSub(r.Context(), &domain.User{
		ID:        uuid.NewString(),
		GoogleSub: profile.Sub,
		Email:     profile.Email,
		Name:      profile.Name,
		Picture:   picture,
		Locale:    locale,
		Plan:      domain.UserPlanFree,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("upsert user failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist user")
		return
	}
	token, err := middleware.SignJWT(a.JWTSecret, middleware.TokenClaims{
		Sub:      user.ID,
		Plan:     string(user.Plan),
		Locale:   user.Locale,
		Exp:      time.Now().Add(24 * time.Hour).Unix(),
		Issuer:   "synapse-api",
		Audience: "synapse-clients",
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign jwt failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}
	a.json(w, http.StatusOK, googleVerifyResponse{
		Token: token,
		User:  userDTO(user),
	})
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "user not found")
		return
	}
	a.json(w, http.StatusOK, userDTO(user))
}

// Logout destroys the server-side quota session; the client discards the
// token. The next sign-in reseeds the mirror from the durable counter.
func (a *App) Logout(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	a.Sessions.Drop(userID)
	w.WriteHeader(http.StatusNoContent)
}

func userDTO(u *domain.User) userProfileDTO {
	return userProfileDTO{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Picture:    u.Picture,
		Plan:       string(u.Plan),
		Locale:     u.Locale,
		UpgradedAt: u.UpgradedAt,
	}
}
