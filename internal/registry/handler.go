package registry

import (
	"crypto/subtle"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/saveenergy/brofiler/internal/logging"
	"github.com/saveenergy/brofiler/pkg/errors"
	"github.com/saveenergy/brofiler/pkg/types"
)

type Handler struct {
	service *Service
	logger  *logging.Logger
	apiKey  string
}

func NewHandler(service *Service, logger *logging.Logger, apiKey string) *Handler {
	if logger == nil {
		logger = logging.NewLogger("registry")
	}
	return &Handler{
		service: service,
		logger:  logger,
		apiKey:  apiKey,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/devices", h.ListDevices)
	mux.HandleFunc("POST /api/v1/devices", h.RegisterDevice)
	mux.HandleFunc("GET /api/v1/devices/{name}", h.GetDevice)
	mux.HandleFunc("DELETE /api/v1/devices/{name}", h.DeregisterDevice)
	mux.HandleFunc("POST /api/v1/scripts", h.AddScript)
}

func (h *Handler) authenticate(r *http.Request) bool {
	if h.apiKey == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && auth[:7] == "Bearer " {
		return subtle.ConstantTimeCompare([]byte(auth[7:]), []byte(h.apiKey)) == 1
	}
	return false
}

// maxRegistryBodySize limits JSON request bodies for registry endpoints.
const maxRegistryBodySize = 1024 * 16

type deviceRequest struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	Host      string `json:"host"`
	Interface string `json:"interface,omitempty"`
}

type scriptRequest struct {
	Script string `json:"script"`
}

func respondRegistryJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Warn("registry: encode response", logging.Field{Key: "error", Value: err})
	}
}

func respondRegistryError(w http.ResponseWriter, msg string, code int) {
	respondRegistryJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps registry and config-write errors to HTTP status codes.
func statusFor(err error) int {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case errors.ErrCodeInvalidDevice, errors.ErrCodeInvalidScript:
		return http.StatusBadRequest
	case errors.ErrCodeDeviceExists:
		return http.StatusConflict
	case errors.ErrCodeDeviceNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List()
	if err != nil {
		h.logger.Error("list devices", logging.Field{Key: "error", Value: err})
		respondRegistryError(w, "internal error", http.StatusInternalServerError)
		return
	}
	respondRegistryJSON(w, http.StatusOK, map[string]any{
		"devices": entries,
		"count":   len(entries),
	})
}

func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Get(r.PathValue("name"))
	if err != nil {
		respondRegistryError(w, err.Error(), statusFor(err))
		return
	}
	respondRegistryJSON(w, http.StatusOK, entry)
}

func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(r) {
		respondRegistryError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRegistryBodySize)
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondRegistryError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	d, err := types.NewDeviceDescriptor(req.Name, types.Role(req.Role), req.Host, req.Interface)
	if err != nil {
		respondRegistryError(w, err.Error(), statusFor(err))
		return
	}
	if err := h.service.Register(d); err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			h.logger.Error("register device", logging.Field{Key: "error", Value: err})
		}
		respondRegistryError(w, err.Error(), code)
		return
	}

	respondRegistryJSON(w, http.StatusCreated, map[string]any{
		"status": "registered",
		"device": d,
	})
}

func (h *Handler) DeregisterDevice(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(r) {
		respondRegistryError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	name := r.PathValue("name")
	if err := h.service.Deregister(name); err != nil {
		respondRegistryError(w, err.Error(), statusFor(err))
		return
	}
	respondRegistryJSON(w, http.StatusOK, map[string]string{
		"status": "deregistered",
		"name":   name,
	})
}

func (h *Handler) AddScript(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(r) {
		respondRegistryError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRegistryBodySize)
	var req scriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondRegistryError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.AddScript(req.Script); err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			h.logger.Error("add script", logging.Field{Key: "error", Value: err})
		}
		respondRegistryError(w, err.Error(), code)
		return
	}
	respondRegistryJSON(w, http.StatusCreated, map[string]string{
		"status": "added",
		"script": req.Script,
	})
}
