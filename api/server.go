package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"canalpro-publisher/models"
	"canalpro-publisher/services"
	"canalpro-publisher/storage"
	"canalpro-publisher/utils"
)

// CEPLookup resolves postal codes for the address form.
type CEPLookup interface {
	Lookup(ctx context.Context, cep string) (*services.Address, error)
}

// Server exposes the editing layer over HTTP.
type Server struct {
	store     storage.PropertyStore
	publisher *services.Publisher
	cep       CEPLookup
	dashboard *services.DashboardService
	logger    *utils.Logger
}

// NewServer wires the HTTP handlers to their collaborators.
func NewServer(store storage.PropertyStore, publisher *services.Publisher, cep CEPLookup,
	dashboard *services.DashboardService, logger *utils.Logger) *Server {
	return &Server{
		store:     store,
		publisher: publisher,
		cep:       cep,
		dashboard: dashboard,
		logger:    logger,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/imoveis", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/imoveis/{codigo}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/imoveis/{codigo}/anuncio", s.handleSaveDraft).Methods(http.MethodPut)
	api.HandleFunc("/imoveis/{codigo}/publicar", s.handlePublish).Methods(http.MethodPost)
	api.HandleFunc("/imoveis/{codigo}/publicado", s.handleMarkPublished).Methods(http.MethodPost)
	api.HandleFunc("/cep/{cep}", s.handleCEP).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("[api] %s %s -> %d (%s)", r.Method, r.URL.Path, sw.status, time.Since(start).Round(time.Millisecond))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListProperties(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if rows == nil {
		rows = []*models.PropertySummary{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type propertyView struct {
	Imovel  *models.PropertyRecord `json:"imovel"`
	Anuncio *models.ListingDraft   `json:"anuncio"`
	Status  models.ListingStatus   `json:"status"`
	Faltam  []string               `json:"faltam"`
	Rodando bool                   `json:"rodando"`
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	codigo := mux.Vars(r)["codigo"]
	p, err := s.store.GetProperty(r.Context(), codigo)
	if err != nil {
		s.fail(w, err)
		return
	}
	d, err := s.store.EnsureDraft(r.Context(), codigo)
	if err != nil {
		s.fail(w, err)
		return
	}
	missing := models.BuildJob(p, d).Missing()
	if missing == nil {
		missing = []string{}
	}
	writeJSON(w, http.StatusOK, propertyView{
		Imovel:  p,
		Anuncio: d,
		Status:  models.DeriveStatus(d),
		Faltam:  missing,
		Rodando: s.publisher.Running(codigo),
	})
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	codigo := mux.Vars(r)["codigo"]
	current, err := s.store.EnsureDraft(r.Context(), codigo)
	if err != nil {
		s.fail(w, err)
		return
	}

	// Fields absent from the body keep their stored values.
	in := *current
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if in.CEP != "" {
		cep, err := services.NormalizeCEP(in.CEP)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		in.CEP = cep
	}
	if in.ModoExibicao == "" {
		in.ModoExibicao = models.DefaultAddressDisplay
	}
	in.Codigo = codigo
	in.Publicado = current.Publicado

	if err := s.store.SaveDraft(r.Context(), &in); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &in)
}

type publishResponse struct {
	Outcome     string `json:"outcome"`
	Message     string `json:"message"`
	Diagnostics string `json:"diagnostics"`
	ExitCode    int    `json:"exit_code"`
	Log         string `json:"log"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	codigo := mux.Vars(r)["codigo"]
	res, err := s.publisher.Publish(r.Context(), codigo)
	if err != nil {
		s.fail(w, err)
		return
	}
	status := http.StatusOK
	if !res.Success() {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, publishResponse{
		Outcome:     string(res.Outcome),
		Message:     res.Message(),
		Diagnostics: res.Diagnostics,
		ExitCode:    res.ExitCode,
		Log:         res.Log,
	})
}

func (s *Server) handleMarkPublished(w http.ResponseWriter, r *http.Request) {
	codigo := mux.Vars(r)["codigo"]
	if err := s.store.MarkPublished(r.Context(), codigo); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"codigo": codigo, "status": string(models.StatusPublicado)})
}

func (s *Server) handleCEP(w http.ResponseWriter, r *http.Request) {
	addr, err := s.cep.Lookup(r.Context(), mux.Vars(r)["cep"])
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addr)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.FetchAll(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	drafts, err := s.store.FetchDrafts(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dashboard.Generate(records, drafts))
}

// fail maps domain errors to status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, services.ErrCEPNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidCEP):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNotReady):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("[api] %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(msg)})
}
