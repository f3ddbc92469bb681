package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"inspectd/internal/cycle"
	"inspectd/internal/domain"
	"inspectd/internal/scheduler"
	"inspectd/internal/store"
)

type Server struct {
	repo       store.Repository
	backend    scheduler.Backend
	reconciler *scheduler.Reconciler
}

// NewServer wires the boundary routes. Task mutations write to the store first
// (the source of truth) and then update the live schedule best-effort; a
// schedule update failure is logged loudly since it seeds exactly the drift the
// reconciler repairs.
func NewServer(repo store.Repository, backend scheduler.Backend) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{
		repo:       repo,
		backend:    backend,
		reconciler: scheduler.NewReconciler(repo, backend),
	}

	r.Get("/health", s.health)
	r.Post("/api/tasks", s.createTask)
	r.Get("/api/tasks", s.listTasks)
	r.Get("/api/tasks/{id}", s.getTask)
	r.Put("/api/tasks/{id}", s.updateTask)
	r.Delete("/api/tasks/{id}", s.deleteTask)
	r.Get("/api/tasks/{id}/records", s.listRecords)
	r.Get("/api/schedule/drift", s.scheduleDrift)
	r.Post("/api/schedule/recover", s.scheduleRecover)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type taskReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Cycle       *string `json:"cycle"`
	Enabled     *bool   `json:"enabled"`
}

func validCycle(c string) bool {
	return cycle.Named(c) || cycle.Validate(c) == nil
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Name == nil || *req.Name == "" {
		http.Error(w, "name is required", 400)
		return
	}
	if req.Cycle == nil || *req.Cycle == "" {
		http.Error(w, "cycle is required", 400)
		return
	}
	if !validCycle(*req.Cycle) {
		http.Error(w, "invalid cycle: not a named cycle or cron expression", 400)
		return
	}

	t := domain.Task{
		Name:    *req.Name,
		Cycle:   *req.Cycle,
		Enabled: true,
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Enabled != nil {
		t.Enabled = *req.Enabled
	}

	id, err := s.repo.CreateTask(r.Context(), t)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	t.ID = id

	if err := s.backend.Add(t); err != nil {
		log.Error().Err(err).Str("task_id", id).Msg("task stored but not armed; run recover")
	}

	created, err := s.repo.GetTask(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusCreated, t)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	var f store.TaskFilter
	switch r.URL.Query().Get("enabled") {
	case "true":
		v := true
		f.Enabled = &v
	case "false":
		v := false
		f.Enabled = &v
	}
	tasks, err := s.repo.ListTasks(r.Context(), f)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.repo.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", 404)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.repo.GetTask(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", 404)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}

	var req taskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			http.Error(w, "name must not be empty", 400)
			return
		}
		t.Name = *req.Name
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Cycle != nil {
		if !validCycle(*req.Cycle) {
			http.Error(w, "invalid cycle: not a named cycle or cron expression", 400)
			return
		}
		t.Cycle = *req.Cycle
	}
	if req.Enabled != nil {
		t.Enabled = *req.Enabled
	}

	if err := s.repo.UpdateTask(r.Context(), t); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if err := s.backend.Update(t); err != nil {
		log.Error().Err(err).Str("task_id", id).Msg("task updated but schedule not refreshed; run recover")
	}
	writeJSON(w, 200, t)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.repo.DeleteTask(r.Context(), id); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.backend.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := s.repo.ListRecordsByTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if recs == nil {
		recs = []domain.Record{}
	}
	writeJSON(w, 200, recs)
}

type driftResp struct {
	scheduler.Drift
	InSync    bool `json:"in_sync"`
	Scheduled int  `json:"scheduled"`
}

func (s *Server) scheduleDrift(w http.ResponseWriter, r *http.Request) {
	d, err := s.reconciler.Diff(r.Context())
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, driftResp{Drift: d, InSync: d.InSync(), Scheduled: len(s.backend.ScheduledIDs())})
}

// scheduleRecover re-arms missing tasks. The interactive confirmation lives in
// the CLI client; reaching this endpoint is the confirmation.
func (s *Server) scheduleRecover(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reconciler.Recover(r.Context(), nil)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, rep)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
