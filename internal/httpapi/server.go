package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	GetLoadedModels(backend types.BackendType) []types.LoadedModel
	ActiveModelID() string
	LoadModel(ctx context.Context, req types.LoadRequest) (types.LoadResult, error)
	UnloadModel(modelID string) (bool, error)
	SelectModel(modelID string) error
	Estimate(req types.EstimateRequest) (types.EstimateResponse, error)
	ResourceStatus() (types.ResourceStatusResponse, error)
	Status() types.StatusResponse
	Ready() bool
}

// NewMux builds the HTTP handler. events may be nil when the websocket
// feed is disabled.
func NewMux(svc Service, events *WSPublisher) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID)
	root.Use(middleware.RealIP)
	root.Use(middleware.Recoverer)
	if corsEnabled {
		root.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	// The websocket upgrade needs the raw ResponseWriter; keep /events out
	// of the Compress and metrics wrappers, which hide http.Hijacker.
	if events != nil {
		root.Get("/events", events.ServeHTTP)
	}

	r := chi.NewRouter()
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	})

	r.Get("/models/loaded", func(w http.ResponseWriter, r *http.Request) {
		backend := types.BackendType(r.URL.Query().Get("backend"))
		writeJSON(w, http.StatusOK, types.LoadedModelsResponse{
			Models:        svc.GetLoadedModels(backend),
			ActiveModelID: svc.ActiveModelID(),
		})
	})

	r.Post("/models/load", func(w http.ResponseWriter, r *http.Request) {
		var req types.LoadRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.ModelID) == "" {
			writeJSONError(w, http.StatusBadRequest, "model_id is required")
			return
		}
		res, err := svc.LoadModel(r.Context(), req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Post("/models/unload", func(w http.ResponseWriter, r *http.Request) {
		var req types.UnloadRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.ModelID) == "" {
			writeJSONError(w, http.StatusBadRequest, "model_id is required")
			return
		}
		ok, err := svc.UnloadModel(req.ModelID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if !ok {
			writeJSONError(w, http.StatusNotFound, "model not loaded: "+req.ModelID)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"unloaded": req.ModelID})
	})

	r.Post("/models/select", func(w http.ResponseWriter, r *http.Request) {
		var req types.SelectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.ModelID) == "" {
			writeJSONError(w, http.StatusBadRequest, "model_id is required")
			return
		}
		if err := svc.SelectModel(req.ModelID); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"active_model_id": req.ModelID})
	})

	r.Get("/resources", func(w http.ResponseWriter, r *http.Request) {
		rs, err := svc.ResourceStatus()
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rs)
	})

	r.Post("/resources/estimate", func(w http.ResponseWriter, r *http.Request) {
		var req types.EstimateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ModelPath == "" && req.ModelID == "" {
			writeJSONError(w, http.StatusBadRequest, "model_path or model_id is required")
			return
		}
		resp, err := svc.Estimate(req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("starting"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	root.Mount("/", r)
	return root
}

// decodeJSON enforces the JSON content type and body limit, then strictly
// decodes into dst. Writes the error response itself and returns false on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logError(err, "encode response")
	}
}
