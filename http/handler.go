package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clubledger/objectgate"
)

// DefaultMaxUploadBytes caps local fallback upload bodies.
const DefaultMaxUploadBytes int64 = 64 << 20

// Gateway is the part of objectgate.Gateway the handlers call.
type Gateway interface {
	IssueUploadTarget(ctx context.Context) objectgate.UploadTarget
	FinalizeAndAuthorize(ctx context.Context, rawPath string, policy objectgate.AclPolicy) (string, error)
	AuthorizeAndStream(w http.ResponseWriter, r *http.Request, requestPath string, principal objectgate.Principal, perm objectgate.Permission) error
	DownloadURL(ctx context.Context, objectPath string, principal objectgate.Principal) (string, error)
	Policy(ctx context.Context, objectPath string, principal objectgate.Principal) (objectgate.AclPolicy, error)
	SetPolicy(ctx context.Context, objectPath string, principal objectgate.Principal, policy objectgate.AclPolicy) error
	ServePublicObject(w http.ResponseWriter, r *http.Request, filePath string) error
}

// LocalUploads accepts bytes PUT to a local fallback upload target.
type LocalUploads interface {
	Create(ctx context.Context, id, contentType string, content io.Reader) (objectgate.LocalUpload, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

type HandlerConfig struct {
	Auth           AuthConfig
	CORS           CORSConfig
	MaxUploadBytes int64
	// Middleware wraps every route, outermost first.
	Middleware []func(http.Handler) http.Handler
	// Metrics, when set, is served on GET /metrics.
	Metrics http.Handler
	// Health, when set, is pinged by GET /healthz.
	Health Pinger
}

// Handler provides the gateway's HTTP surface.
type Handler struct {
	config   HandlerConfig
	gateway  Gateway
	uploads  LocalUploads
	profiles objectgate.ProfileStore
}

// NewHandler creates a new Handler with the given configuration and collaborators.
func NewHandler(config *HandlerConfig, gateway Gateway, uploads LocalUploads, profiles objectgate.ProfileStore) *Handler {
	cfg := *config
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		config:   cfg,
		gateway:  gateway,
		uploads:  uploads,
		profiles: profiles,
	}
}

// Router returns an http.Handler with every route mounted. Object and API
// routes require a bearer token. Local uploads, public objects, health and
// metrics do not.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	for _, mw := range h.config.Middleware {
		r.Use(mw)
	}
	r.Use(RequestLogger)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/healthz", h.handleHealth)
	if h.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.config.Metrics)
	}

	r.Get("/local-uploads/{id}", h.handleLocalGet)
	r.Head("/local-uploads/{id}", h.handleLocalGet)
	r.Get("/public-objects/*", h.handlePublicGet)
	r.Head("/public-objects/*", h.handlePublicGet)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.config.Auth))

		r.Get("/objects/*", h.handleObjectGet)
		r.Head("/objects/*", h.handleObjectGet)

		r.Post("/api/objects/upload", h.handleIssueUpload)
		r.Post("/api/objects/download-url", h.handleDownloadURL)
		r.Get("/api/objects/acl", h.handleGetPolicy)
		r.Put("/api/objects/acl", h.handleSetPolicy)
		r.Put("/api/profile-images", h.handleProfileImage)
		r.Put("/api/local-uploads-upload/{id}", h.handleLocalPut)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.config.Health != nil {
		if err := h.config.Health.Ping(r.Context()); err != nil {
			WriteError(w, http.StatusServiceUnavailable, "unhealthy", "Database unreachable")
			return
		}
	}
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleObjectGet(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFrom(r.Context())
	if err := h.gateway.AuthorizeAndStream(w, r, r.URL.Path, principal, objectgate.PermissionRead); err != nil {
		HandleError(w, r, err)
	}
}

// handleLocalGet serves fallback objects to anyone holding the id.
func (h *Handler) handleLocalGet(w http.ResponseWriter, r *http.Request) {
	if err := h.gateway.AuthorizeAndStream(w, r, r.URL.Path, objectgate.Principal{}, objectgate.PermissionRead); err != nil {
		HandleError(w, r, err)
	}
}

func (h *Handler) handlePublicGet(w http.ResponseWriter, r *http.Request) {
	filePath := chi.URLParam(r, "*")
	err := h.gateway.ServePublicObject(w, r, filePath)
	switch {
	case err == nil:
	case errors.Is(err, objectgate.ErrObjectNotFound):
		writeDefaultNotFound(w)
	default:
		HandleError(w, r, err)
	}
}

func (h *Handler) handleIssueUpload(w http.ResponseWriter, r *http.Request) {
	target := h.gateway.IssueUploadTarget(r.Context())
	_ = WriteJSON(w, http.StatusOK, target)
}

type objectPathRequest struct {
	ObjectPath string `json:"objectPath"`
}

type downloadURLResponse struct {
	DownloadURL string `json:"downloadURL"`
}

func (h *Handler) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	var req objectPathRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}
	if req.ObjectPath == "" {
		WriteError(w, http.StatusBadRequest, "invalid_input", "objectPath is required")
		return
	}

	signed, err := h.gateway.DownloadURL(r.Context(), req.ObjectPath, PrincipalFrom(r.Context()))
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, downloadURLResponse{DownloadURL: signed})
}

func (h *Handler) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	objectPath := r.URL.Query().Get("path")
	if objectPath == "" {
		WriteError(w, http.StatusBadRequest, "invalid_input", "path is required")
		return
	}

	policy, err := h.gateway.Policy(r.Context(), objectPath, PrincipalFrom(r.Context()))
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, policy)
}

type setPolicyRequest struct {
	ObjectPath string                `json:"objectPath"`
	Visibility objectgate.Visibility `json:"visibility"`
	Rules      []objectgate.AclRule  `json:"rules"`
}

// handleSetPolicy replaces the whole policy. The owner is kept.
func (h *Handler) handleSetPolicy(w http.ResponseWriter, r *http.Request) {
	var req setPolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}
	if req.ObjectPath == "" {
		WriteError(w, http.StatusBadRequest, "invalid_input", "objectPath is required")
		return
	}

	policy := objectgate.AclPolicy{Visibility: req.Visibility, Rules: req.Rules}
	if err := h.gateway.SetPolicy(r.Context(), req.ObjectPath, PrincipalFrom(r.Context()), policy); err != nil {
		HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type profileImageRequest struct {
	ProfileImageURL string `json:"profileImageUrl"`
}

type objectPathResponse struct {
	ObjectPath string `json:"objectPath"`
}

// handleProfileImage attaches a public policy owned by the caller to the
// uploaded image and records it on the caller's profile.
func (h *Handler) handleProfileImage(w http.ResponseWriter, r *http.Request) {
	var req profileImageRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}
	if req.ProfileImageURL == "" {
		WriteError(w, http.StatusBadRequest, "invalid_input", "profileImageUrl is required")
		return
	}

	principal := PrincipalFrom(r.Context())
	objectPath, err := h.gateway.FinalizeAndAuthorize(r.Context(), req.ProfileImageURL, objectgate.AclPolicy{
		Owner:      principal.ID,
		Visibility: objectgate.VisibilityPublic,
	})
	if err != nil {
		HandleError(w, r, err)
		return
	}

	if err := h.profiles.SetProfileImage(r.Context(), principal.ID, objectPath); err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, objectPathResponse{ObjectPath: objectPath})
}

func (h *Handler) handleLocalPut(w http.ResponseWriter, r *http.Request) {
	if h.uploads == nil {
		HandleError(w, r, objectgate.ErrConfigurationMissing)
		return
	}

	id := chi.URLParam(r, "id")
	body := http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)

	upload, err := h.uploads.Create(r.Context(), id, r.Header.Get("Content-Type"), body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "Upload exceeds size limit")
			return
		}
		HandleError(w, r, err)
		return
	}

	w.Header().Set("ETag", `"`+upload.ETag+`"`)
	_ = WriteJSON(w, http.StatusOK, objectPathResponse{
		ObjectPath: objectgate.LocalUploadsPrefix + upload.ID,
	})
}
