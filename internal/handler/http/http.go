package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	_ "embed"

	"github.com/go-chi/chi/v5"
	"github.com/jgivc/spaproxy/internal/common"
	"github.com/jgivc/spaproxy/internal/config"
	"github.com/jgivc/spaproxy/internal/entity"
	"github.com/jgivc/spaproxy/internal/service/static"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/status.html
var statusTemplateContent string

type ResolverService interface {
	Resolve(requestPath string) (*entity.Property, string, error)
}

type StaticService interface {
	Open(prop *entity.Property, remainder string) (*static.Asset, error)
}

type IndexService interface {
	TryReload(ctx context.Context) error
}

type PropertyLister interface {
	Properties() []*entity.Property
	Size() int
}

type HistoryService interface {
	History(ctx context.Context) ([]string, error)
}

// NewProxyHandler is the catch-all request path: resolve the owning
// property, locate the asset, stream it. Outcomes map to status codes, no
// retries.
func NewProxyHandler(resolver ResolverService, staticSrv StaticService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ProxyHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)

			return
		}

		prop, remainder, err := resolver.Resolve(r.URL.Path)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrPathNotFoundError), errors.Is(err, common.ErrIndexNotReadyError):
				http.Error(w, "Not found", http.StatusNotFound)
			default:
				log.Error("Cannot resolve path", slog.String("path", r.URL.Path), slog.Any("error", err))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}

			return
		}

		asset, err := staticSrv.Open(prop, remainder)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrTraversalRejectedError):
				http.Error(w, "Forbidden", http.StatusForbidden)
			case errors.Is(err, common.ErrAssetNotFoundError):
				http.Error(w, "Not found", http.StatusNotFound)
			default:
				log.Error("Cannot open asset",
					slog.String("path", r.URL.Path), slog.String("property", prop.Path),
					slog.String("remainder", remainder), slog.Any("error", err))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}

			return
		}
		defer asset.Close()

		w.Header().Set("Content-Type", asset.ContentType)
		http.ServeContent(w, r, filepath.Base(asset.Name), asset.ModTime, asset.File)
	}
}

// NewReindexHandler triggers a manual rescan, the HTTP twin of SIGUSR1.
func NewReindexHandler(srv IndexService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ReindexHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		if err := srv.TryReload(r.Context()); err != nil {
			switch {
			case errors.Is(err, common.ErrScanProcessHasAlreadyStarted):
				http.Error(w, "Scan process has already started", http.StatusConflict)
			default:
				log.Error("Cannot reindex", slog.Any("error", err))
				http.Error(w, "Cannot start scan process", http.StatusInternalServerError)
			}

			return
		}

		w.Write([]byte("done"))
	}
}

// NewPropertiesHandler renders the operator status page: every active
// property with its path, ref and rendered description.
func NewPropertiesHandler(lister PropertyLister, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "PropertiesHandler"))

	tmpl := template.Must(template.New("status").Funcs(template.FuncMap{
		"safeHTML": func(s string) template.HTML { return template.HTML(s) },
	}).Parse(statusTemplateContent))

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		if err := tmpl.Execute(w, lister.Properties()); err != nil {
			log.Error("Cannot render status page", slog.Any("error", err))
		}
	}
}

// NewDeploymentsHandler lists recent deployments recorded in redis. When no
// history repository is configured it reports that instead of failing.
func NewDeploymentsHandler(srv HistoryService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "DeploymentsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		if srv == nil {
			w.Write([]byte("deployment history is not configured\n"))

			return
		}

		lines, err := srv.History(r.Context())
		if err != nil {
			switch {
			case errors.Is(err, common.ErrNoDeploymentsFoundError):
				w.Write([]byte("no deployments recorded yet\n"))
			default:
				log.Error("Cannot get deploy history", slog.Any("error", err))
				http.Error(w, "Cannot get deploy history", http.StatusInternalServerError)
			}

			return
		}

		w.Write([]byte(strings.Join(lines, "\n") + "\n"))
	}
}

func NewHealthHandler(lister PropertyLister, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "HealthHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status     string `json:"status"`
			Properties int    `json:"properties"`
		}{
			Status:     "ok",
			Properties: lister.Size(),
		}

		// No index published yet: the process is alive but not serving.
		if status.Properties < 0 {
			status.Status = "starting"
			status.Properties = 0
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(&status); err != nil {
			log.Error("Cannot encode health status", slog.Any("error", err))
		}
	}
}

// NewRouter assembles the full HTTP surface: operator endpoints under the
// internal prefix, everything else handled by the proxy.
func NewRouter(cfg *config.ServerConfig, resolver ResolverService, staticSrv StaticService,
	indexSrv IndexService, lister PropertyLister, history HistoryService, log *slog.Logger) *chi.Mux {

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(log))

	r.Route(cfg.InternalPrefix, func(r chi.Router) {
		r.Get("/healthz", NewHealthHandler(lister, log))
		r.Get("/properties", NewPropertiesHandler(lister, log))
		r.Get("/deployments", NewDeploymentsHandler(history, log))
		r.Post("/reindex", NewReindexHandler(indexSrv, log))
		r.Handle("/metrics", promhttp.Handler())
	})

	proxy := NewProxyHandler(resolver, staticSrv, log)
	r.NotFound(proxy)
	r.MethodNotAllowed(proxy)

	return r
}
