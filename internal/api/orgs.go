// ABOUTME: Organization and login endpoint handlers
// ABOUTME: Translate JSON bodies to orgs.Service calls and results to response DTOs

package api

import (
	"net/http"
	"time"

	"github.com/2389/orgkeeper/internal/auth"
	"github.com/2389/orgkeeper/internal/orgs"
)

// CreateOrgRequest is the JSON body of POST /org/create.
type CreateOrgRequest struct {
	OrganizationName string `json:"organization_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
}

// UpdateOrgRequest is the JSON body of PUT /org/update/{name}.
type UpdateOrgRequest struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// LoginRequest is the JSON body of POST /admin/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OrgResponse describes an organization.
type OrgResponse struct {
	OrganizationID   string     `json:"organization_id"`
	OrganizationName string     `json:"organization_name"`
	CollectionName   string     `json:"collection_name"`
	AdminEmail       string     `json:"admin_email"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// UpdateOrgResponse reports a credential update.
type UpdateOrgResponse struct {
	OrganizationName string    `json:"organization_name"`
	AdminEmail       string    `json:"admin_email"`
	UpdatedFields    []string  `json:"updated_fields"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DeleteOrgResponse reports a deletion.
type DeleteOrgResponse struct {
	DeletedOrganization string    `json:"deleted_organization"`
	DeletedAt           time.Time `json:"deleted_at"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Admin     AdminResponse `json:"admin"`
}

// AdminResponse describes the logged-in admin.
type AdminResponse struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	OrganizationID   string `json:"organization_id,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateOrgRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	sum, err := h.svc.Create(r.Context(), orgs.CreateRequest{
		Name:     req.OrganizationName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSuccess(w, http.StatusCreated, "Organization created successfully", OrgResponse{
		OrganizationID:   sum.OrganizationID,
		OrganizationName: sum.Name,
		CollectionName:   sum.NamespaceID,
		AdminEmail:       sum.AdminEmail,
		CreatedAt:        sum.CreatedAt,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	updated := sum.UpdatedAt
	h.writeSuccess(w, http.StatusOK, "", OrgResponse{
		OrganizationID:   sum.OrganizationID,
		OrganizationName: sum.Name,
		CollectionName:   sum.NamespaceID,
		AdminEmail:       sum.AdminEmail,
		CreatedAt:        sum.CreatedAt,
		UpdatedAt:        &updated,
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrgRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.Update(r.Context(), auth.FromContext(r.Context()), r.PathValue("name"), orgs.UpdateRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, "Organization updated successfully", UpdateOrgResponse{
		OrganizationName: res.Name,
		AdminEmail:       res.AdminEmail,
		UpdatedFields:    res.UpdatedFields,
		UpdatedAt:        res.UpdatedAt,
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Delete(r.Context(), auth.FromContext(r.Context()), r.PathValue("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, "Organization and associated admin deleted successfully", DeleteOrgResponse{
		DeletedOrganization: rec.Name,
		DeletedAt:           rec.DeletedAt,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Success:   true,
		Message:   "Login successful",
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Admin: AdminResponse{
			ID:               res.AdminID,
			Email:            res.Email,
			OrganizationID:   res.OrganizationID,
			OrganizationName: res.OrganizationName,
		},
	})
}
