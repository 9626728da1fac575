package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/apuntes/internal/config"
	"github.com/hyperjump/apuntes/internal/export"
	"github.com/hyperjump/apuntes/internal/extract"
	"github.com/hyperjump/apuntes/internal/keyword"
	"github.com/hyperjump/apuntes/internal/library"
	"github.com/hyperjump/apuntes/internal/llm"
	"github.com/hyperjump/apuntes/internal/models"
	"github.com/hyperjump/apuntes/internal/pipeline"
	"github.com/hyperjump/apuntes/internal/settings"
	"github.com/hyperjump/apuntes/internal/storage"
	"github.com/hyperjump/apuntes/internal/study"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type kindStatus struct {
	Uploads int64 `json:"uploads"`
	Records int   `json:"records"`
	Parsed  bool  `json:"parsed"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kinds := make(map[models.Kind]kindStatus, len(models.Kinds))
	for _, kind := range models.Kinds {
		n, err := s.library.Count(ctx, kind)
		if err != nil {
			s.logger.Error("status: count uploads failed", zap.String("kind", string(kind)), zap.Error(err))
			s.respondErr(w, err)
			return
		}
		ks := kindStatus{Uploads: n}
		batch, err := s.pipeline.Load(ctx, kind)
		switch {
		case err == nil:
			ks.Parsed = true
			ks.Records = batch.Len()
		case !errors.Is(err, pipeline.ErrNoBatch):
			s.logger.Error("status: load batch failed", zap.String("kind", string(kind)), zap.Error(err))
			s.respondErr(w, err)
			return
		}
		kinds[kind] = ks
	}
	key, err := s.settings.EffectiveAPIKey(ctx)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	resp := map[string]interface{}{
		"kinds":          kinds,
		"api_key_set":    key != "",
		"model":          s.config.LLM.Model,
		"kv_backend":     s.config.Storage.KVBackend,
		"database_path":  s.config.Storage.DatabasePath,
		"watch_dirs":     s.config.Watch.Directories,
		"access_token":   s.config.Server.AccessToken != "",
		"max_upload_mb":  s.config.Server.MaxUploadMB,
		"search_enabled": s.index != nil,
	}
	if s.index != nil {
		if n, err := s.index.DocCount(); err == nil {
			resp["indexed_records"] = n
		}
	}
	paths := []string{s.config.Storage.DatabasePath}
	if s.config.Storage.KVBackend == config.KVBackendBolt {
		paths = append(paths, s.config.Storage.KVPath)
	}
	if diskBytes, err := storage.StoreSizeBytes(paths...); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.config.Server.MaxUploadMB)<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files in field \"file\"")
		return
	}
	uploaded := make([]*models.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Debug("upload request", zap.String("kind", string(kind)), zap.String("name", fh.Filename), zap.Int("bytes", len(data)))
		file, err := s.library.Add(r.Context(), kind, fh.Filename, data, fh.Header.Get("Content-Type"))
		if err != nil {
			s.logger.Error("upload failed", zap.String("name", fh.Filename), zap.Error(err))
			s.respondErr(w, err)
			return
		}
		uploaded = append(uploaded, file)
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"kind": kind, "files": uploaded})
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	files, err := s.library.List(r.Context(), kind)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"kind": kind, "files": files})
}

func (s *Server) handleClearUploads(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	s.logger.Debug("clear request", zap.String("kind", string(kind)))
	if err := s.library.Clear(r.Context(), kind); err != nil {
		s.logger.Error("clear failed", zap.String("kind", string(kind)), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"kind": string(kind), "status": "cleared"})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	status, err := s.pipeline.Parse(r.Context(), kind)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	batch, err := s.pipeline.Load(r.Context(), kind)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, batch)
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	notes, err := s.study.Notes(r.Context(), kind)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"kind": string(kind), "notes": notes})
}

func (s *Server) handleNotesPDF(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	notes, err := s.study.Notes(r.Context(), kind)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	doc, err := export.Render(kind, notes)
	if err != nil {
		s.logger.Error("render notes failed", zap.String("kind", string(kind)), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(kind)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

type quizRequest struct {
	Kind  string `json:"kind"`
	Count int    `json:"count,omitempty"`
}

func (s *Server) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind, err := models.ParseKind(req.Kind)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Count == 0 {
		req.Count = study.DefaultQuestions
	}
	quiz, err := s.study.Questions(r.Context(), kind, req.Count)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, quiz)
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := s.study.Quiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, quiz)
}

type answerRequest struct {
	Question int    `json:"question"`
	Answer   string `json:"answer"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	feedback, err := s.study.Correct(r.Context(), id, req.Question, req.Answer)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"quiz":     id,
		"question": req.Question,
		"feedback": feedback,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.respondError(w, http.StatusNotImplemented, "search not enabled")
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit := s.config.Search.DefaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	if s.config.Search.MaxLimit > 0 && limit > s.config.Search.MaxLimit {
		limit = s.config.Search.MaxLimit
	}
	opts := &keyword.SearchOptions{FuzzyEnabled: q.Get("fuzzy") == "true"}
	if v := q.Get("kind"); v != "" {
		kind, err := models.ParseKind(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Kind = kind
	}
	s.logger.Debug("search request", zap.String("query", query), zap.Int("limit", limit))
	result, err := s.index.Search(r.Context(), query, limit, opts)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetAPIKey(w http.ResponseWriter, r *http.Request) {
	s.respondAPIKey(w, r)
}

type apiKeyRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleSetAPIKey(w http.ResponseWriter, r *http.Request) {
	var req apiKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.settings.SetAPIKey(r.Context(), req.Key); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondAPIKey(w, r)
}

func (s *Server) handleClearAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := s.settings.ClearAPIKey(r.Context()); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondAPIKey(w, r)
}

// respondAPIKey reports which key is in effect without revealing it.
func (s *Server) respondAPIKey(w http.ResponseWriter, r *http.Request) {
	user, err := s.settings.APIKey(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	effective, err := s.settings.EffectiveAPIKey(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	source := "none"
	switch {
	case user != "":
		source = "user"
	case effective != "":
		source = "config"
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"configured": effective != "",
		"source":     source,
		"masked":     settings.Mask(effective),
	})
}

func (s *Server) kindParam(w http.ResponseWriter, r *http.Request) (models.Kind, bool) {
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return kind, true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var parseErr *extract.ParseError
	var remoteErr *llm.RemoteError
	switch {
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &remoteErr):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, study.ErrQuizNotFound):
		return http.StatusNotFound
	case errors.Is(err, study.ErrMissingInput),
		errors.Is(err, pipeline.ErrNoBatch),
		errors.Is(err, llm.ErrMissingAPIKey),
		errors.Is(err, export.ErrNoNotes),
		errors.Is(err, library.ErrUnsupportedFile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
