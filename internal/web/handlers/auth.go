package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/officeflow/attendance/internal/attendance"
	"github.com/officeflow/attendance/internal/auth"
	"github.com/officeflow/attendance/internal/database"
	"github.com/officeflow/attendance/internal/faceid"
	"github.com/officeflow/attendance/internal/logging"
	"github.com/officeflow/attendance/internal/web/middleware"
)

// Indexer receives directory changes that affect candidate selection.
// Satisfied by database.CandidateIndex; nil disables index updates.
type Indexer interface {
	Add(identity attendance.Identity)
}

// AuthHandler handles enrollment, login and profile retrieval.
type AuthHandler struct {
	directory database.DirectoryWriter
	extractor faceid.Extractor
	tokens    *auth.TokenManager
	index     Indexer
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(directory database.DirectoryWriter, extractor faceid.Extractor, tokens *auth.TokenManager, index Indexer) *AuthHandler {
	return &AuthHandler{
		directory: directory,
		extractor: extractor,
		tokens:    tokens,
		index:     index,
	}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	EmployeeID  string `json:"employee_id"`
	Designation string `json:"designation"`
	Department  string `json:"department"`
	Image       string `json:"image"` // base64, optionally a data URI
	DeviceID    string `json:"device_id"`
}

// Register enrolls a new employee: profile, password hash, and the face
// embedding extracted from the enrollment photo.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" || req.FullName == "" || req.Image == "" {
		respondError(w, http.StatusBadRequest, "email, password, full_name and image are required")
		return
	}

	existing, err := h.directory.GetByEmail(r.Context(), req.Email)
	if err != nil {
		logging.From(r.Context()).Error("directory lookup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "email already registered")
		return
	}

	probe, err := faceid.NormalizeProbe(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid image payload")
		return
	}

	embedding, err := h.extractor.Extract(r.Context(), probe)
	if err != nil {
		respondFlowError(w, r, "register", err)
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		logging.From(r.Context()).Error("password hashing failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	emp := &database.StoredEmployee{
		ID:             uuid.New().String(),
		Email:          req.Email,
		FullName:       req.FullName,
		EmployeeID:     req.EmployeeID,
		Designation:    req.Designation,
		Department:     req.Department,
		HashedPassword: hashed,
		Embedding:      embedding,
		Dim:            len(embedding),
		DeviceID:       req.DeviceID,
		CreatedAt:      time.Now(),
	}
	if err := h.directory.Create(r.Context(), emp); err != nil {
		logging.From(r.Context()).Error("enrollment failed", "email", sanitizeForLog(req.Email), "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if h.index != nil {
		h.index.Add(emp.Identity())
	}

	token, err := h.tokens.Issue(emp.Email)
	if err != nil {
		logging.From(r.Context()).Error("token issue failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	logging.From(r.Context()).Info("employee enrolled", "email", sanitizeForLog(req.Email))
	resp := profileResponse(emp)
	resp["access_token"] = token
	resp["token_type"] = "bearer"
	respondJSON(w, http.StatusCreated, resp)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
}

// Login verifies credentials, enforces the device binding when one
// exists, and issues a session token. A first login from a device binds
// it.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	emp, err := h.directory.GetByEmail(r.Context(), req.Email)
	if err != nil {
		logging.From(r.Context()).Error("directory lookup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if emp == nil || !auth.CheckPassword(emp.HashedPassword, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if req.DeviceID != "" {
		switch {
		case emp.DeviceID == "":
			if err := h.directory.BindDevice(r.Context(), emp.Email, req.DeviceID); err != nil {
				logging.From(r.Context()).Error("device binding failed", "email", sanitizeForLog(emp.Email), "error", err)
			} else {
				emp.DeviceID = req.DeviceID
			}
		case emp.DeviceID != req.DeviceID:
			respondFlowError(w, r, "login", goerr.Wrap(attendance.ErrDeviceMismatch, "login from an unbound device"))
			return
		}
	}

	token, err := h.tokens.Issue(emp.Email)
	if err != nil {
		logging.From(r.Context()).Error("token issue failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := profileResponse(emp)
	resp["access_token"] = token
	resp["token_type"] = "bearer"
	respondJSON(w, http.StatusOK, resp)
}

// profileResponse is the employee profile block shared by the register,
// login and me responses.
func profileResponse(emp *database.StoredEmployee) map[string]any {
	return map[string]any{
		"email":        emp.Email,
		"full_name":    emp.FullName,
		"employee_id":  emp.EmployeeID,
		"designation":  emp.Designation,
		"department":   emp.Department,
		"device_bound": emp.DeviceID != "",
		"enrolled_at":  emp.CreatedAt,
	}
}

// Me returns the authenticated employee's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	email := middleware.AuthenticatedEmail(r.Context())
	emp, err := h.directory.GetByEmail(r.Context(), email)
	if err != nil {
		logging.From(r.Context()).Error("directory lookup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if emp == nil {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}

	respondJSON(w, http.StatusOK, profileResponse(emp))
}
