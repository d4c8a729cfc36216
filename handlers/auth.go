package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"twowatch/models"
	"twowatch/services/accounts"
	"twowatch/services/sessions"
)

type accountsService interface {
	Register(email, password, displayName string) (models.Account, error)
	Authenticate(email, password string) (models.Account, error)
	Get(id string) (models.Account, bool)
	Rename(id, displayName string) (models.Account, error)
	ChangePassword(id, current, next string) error
	Delete(id string) error
}

type sessionsService interface {
	Create(accountID string) (models.Session, error)
	Revoke(token string) error
	RevokeAccount(accountID string) (int, error)
}

var (
	_ accountsService = (*accounts.Service)(nil)
	_ sessionsService = (*sessions.Service)(nil)
)

// AuthResponse is returned after a successful sign-in.
type AuthResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Account   models.Account `json:"account"`
	// Merged counts the guest items copied into the account's watchlist on sign-in.
	Merged int `json:"merged"`
}

type AuthHandler struct {
	Accounts accountsService
	Sessions sessionsService
	Scope    StoreScope
}

func NewAuthHandler(accountsSvc accountsService, sessionsSvc sessionsService, scope StoreScope) *AuthHandler {
	return &AuthHandler{Accounts: accountsSvc, Sessions: sessionsSvc, Scope: scope}
}

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeBody(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := h.Accounts.Register(body.Email, body.Password, body.DisplayName)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, accounts.ErrEmailRequired),
			errors.Is(err, accounts.ErrEmailInvalid),
			errors.Is(err, accounts.ErrPasswordTooShort):
			status = http.StatusBadRequest
		case errors.Is(err, accounts.ErrEmailTaken):
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	h.signIn(w, r, account, http.StatusCreated)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeBody(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := h.Accounts.Authenticate(body.Email, body.Password)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			status = http.StatusUnauthorized
		}
		http.Error(w, err.Error(), status)
		return
	}

	h.signIn(w, r, account, http.StatusOK)
}

// signIn issues a session and folds the calling device's guest watchlist into the account.
func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, account models.Account, status int) {
	session, err := h.Sessions.Create(account.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	merged := 0
	if h.Scope != nil {
		ctx := sessions.WithAccountID(r.Context(), account.ID)
		merged = h.Scope(deviceID(r)).MergeLocalIntoRemote(ctx)
	}

	writeJSON(w, status, AuthResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Account:   account.Public(),
		Merged:    merged,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token == "" {
		http.Error(w, "bearer token required", http.StatusUnauthorized)
		return
	}
	if err := h.Sessions.Revoke(token); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me reports who the request is acting as: a signed-in account or a device guest.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		SignedIn bool            `json:"signedIn"`
		DeviceID string          `json:"deviceId,omitempty"`
		Account  *models.Account `json:"account,omitempty"`
	}{DeviceID: deviceID(r)}

	if accountID, ok := sessions.AccountIDFromContext(r.Context()); ok {
		account, found := h.Accounts.Get(accountID)
		if !found {
			http.Error(w, accounts.ErrAccountNotFound.Error(), http.StatusUnauthorized)
			return
		}
		public := account.Public()
		resp.SignedIn = true
		resp.Account = &public
	}
	writeJSON(w, http.StatusOK, resp)
}

type profileUpdate struct {
	DisplayName string `json:"displayName"`
}

// UpdateMe changes the signed-in account's display name.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := sessions.AccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, "sign-in required", http.StatusUnauthorized)
		return
	}

	var body profileUpdate
	if err := decodeBody(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := h.Accounts.Rename(accountID, body.DisplayName)
	if err != nil {
		http.Error(w, err.Error(), accountErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, account.Public())
}

type passwordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword replaces the signed-in account's password. Existing sessions stay valid.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID, ok := sessions.AccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, "sign-in required", http.StatusUnauthorized)
		return
	}

	var body passwordChange
	if err := decodeBody(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Accounts.ChangePassword(accountID, body.CurrentPassword, body.NewPassword); err != nil {
		http.Error(w, err.Error(), accountErrorStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMe removes the signed-in account and signs out every one of its sessions.
func (h *AuthHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := sessions.AccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, "sign-in required", http.StatusUnauthorized)
		return
	}

	if err := h.Accounts.Delete(accountID); err != nil {
		http.Error(w, err.Error(), accountErrorStatus(err))
		return
	}
	revoked, err := h.Sessions.RevokeAccount(accountID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Printf("[auth] deleted account %s, revoked %d session(s)", accountID, revoked)
	w.WriteHeader(http.StatusNoContent)
}

func accountErrorStatus(err error) int {
	switch {
	case errors.Is(err, accounts.ErrPasswordTooShort):
		return http.StatusBadRequest
	case errors.Is(err, accounts.ErrInvalidCredentials):
		return http.StatusForbidden
	case errors.Is(err, accounts.ErrAccountNotFound):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *AuthHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
