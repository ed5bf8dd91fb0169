package web

import (
	"net/http"

	"github.com/open-tech-stack/mitic-web-sub002/internal/domain"
	"github.com/open-tech-stack/mitic-web-sub002/internal/dto"
	"github.com/open-tech-stack/mitic-web-sub002/internal/service"
)

// ListUsers returns paginated list of users / Retourne la liste paginée des utilisateurs
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	users, total, err := h.container.UserSvc.ListUsers(r.Context(), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, dto.UsersToDTO(users), total, page)
}

// GetUser returns one user / Retourne un utilisateur
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.container.UserSvc.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, dto.UserToDTO(user))
}

// CreateUser creates an account and sends the activation mail / Crée un compte et envoie le mail d'activation
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req dto.UserCreateDTOReq
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.container.UserSvc.CreateUser(r.Context(), req.ToDomain())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.UserToDTO(user))
}

// UpdateUser applies a partial update / Applique une mise à jour partielle
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req service.UserUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	actorID, _ := UserIDFromContext(r.Context())
	user, err := h.container.UserSvc.UpdateUser(r.Context(), actorID, id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, dto.UserToDTO(user))
}

// DeleteUser deletes a user by ID / Supprime un utilisateur par ID
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actorID, _ := UserIDFromContext(r.Context())
	if err := h.container.UserSvc.DeleteUser(r.Context(), actorID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPermissions returns the permission catalogue / Retourne le catalogue des permissions
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	writeList(w, h.container.RoleSvc.ListPermissions())
}

// ListRoles returns roles with their permissions / Retourne les rôles et leurs permissions
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.container.RoleSvc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, roles)
}

func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.container.RoleSvc.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, role)
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req domain.Role
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := h.container.RoleSvc.Create(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req domain.Role
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := h.container.RoleSvc.Update(r.Context(), r.PathValue("name"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, role)
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.container.RoleSvc.Delete(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
