package handler

import (
	"net/http"

	"github.com/plinth-dev/plinth/internal/service"
)

// UsersHandler handles user account requests. Every route requires a
// bearer identity, and callers may only touch their own record.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(users *service.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// HandleCreate provisions the caller's account. The record ID is the
// token subject; a body that names a different ID is rejected.
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	var req struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.ID != "" && req.ID != identity.Sub {
		writeError(w, http.StatusForbidden, "You can only create your own user record.")
		return
	}

	email := req.Email
	if email == "" {
		email = identity.Email
	}
	firstName := req.FirstName
	if firstName == "" {
		firstName = identity.FirstName
	}
	lastName := req.LastName
	if lastName == "" {
		lastName = identity.LastName
	}

	user, err := h.users.Create(r.Context(), identity.Sub, email, req.Username, firstName, lastName)
	if err != nil {
		serviceError(w, err, "create user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": "User created",
		"data":    toUserDTO(user),
	})
}

// HandleGet returns the caller's own record.
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}
	if r.PathValue("id") != identity.Sub {
		writeError(w, http.StatusForbidden, "You can only access your own user data.")
		return
	}

	user, err := h.users.Get(r.Context(), identity.Sub)
	if err != nil {
		serviceError(w, err, "get user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   toUserDTO(user),
	})
}

// HandleUpdate applies a partial update to the caller's own record.
func (h *UsersHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}
	if r.PathValue("id") != identity.Sub {
		writeError(w, http.StatusForbidden, "You can only update your own user data.")
		return
	}

	var req struct {
		Email     *string `json:"email"`
		Username  *string `json:"username"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user, err := h.users.Update(r.Context(), identity.Sub, req.Email, req.Username, req.FirstName, req.LastName)
	if err != nil {
		serviceError(w, err, "update user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "User updated",
		"data":    toUserDTO(user),
	})
}

// HandleUpdateUsername replaces the caller's username.
func (h *UsersHandler) HandleUpdateUsername(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}
	if r.PathValue("id") != identity.Sub {
		writeError(w, http.StatusForbidden, "You can only update your own user data.")
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user, err := h.users.UpdateUsername(r.Context(), identity.Sub, req.Username)
	if err != nil {
		serviceError(w, err, "update username")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Username updated",
		"data":    toUserDTO(user),
	})
}
