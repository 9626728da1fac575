package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/apuntes/internal/config"
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

type fakeLLM struct {
	reply    string
	err      error
	requests []*llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req *llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type testEnv struct {
	handler http.Handler
	client  *fakeLLM
	cfg     *config.Config
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	blobs, err := storage.NewSQLiteBlobStore(filepath.Join(dir, "uploads.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { blobs.Close() })
	kv, err := storage.NewBoltKV(filepath.Join(dir, "kv.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })
	idx, err := keyword.NewIndex()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	cfg := config.Default()
	cfg.Server.AccessToken = token
	cfg.Storage.DatabasePath = filepath.Join(dir, "uploads.db")
	cfg.Storage.KVPath = filepath.Join(dir, "kv.db")

	client := &fakeLLM{reply: "Respuesta"}
	lib := library.New(blobs, kv, library.WithIndex(idx))
	pipe := pipeline.New(blobs, kv, pipeline.WithIndex(idx))
	svc := study.New(pipe, client, kv, study.Config{Model: "test-model"})
	keys := settings.New(kv, "")
	srv := NewServer(lib, pipe, svc, keys, idx, cfg, zap.NewNop())
	return &testEnv{handler: srv.Router(), client: client, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, body)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	if e.cfg.Server.AccessToken != "" {
		r.Header.Set("Authorization", "Bearer "+e.cfg.Server.AccessToken)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) doJSON(t *testing.T, method, path string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(data)
	}
	return e.do(t, method, path, body, "application/json")
}

func (e *testEnv) upload(t *testing.T, kind string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return e.do(t, http.MethodPost, "/api/v1/uploads/"+kind, &buf, mw.FormDataContentType())
}

func deck(t *testing.T, texts ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, text := range texts {
		f, err := zw.Create(fmt.Sprintf("ppt/slides/slide%d.xml", i+1))
		if err != nil {
			t.Fatal(err)
		}
		_, err = f.Write([]byte(`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`))
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(t, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestAccessToken(t *testing.T) {
	env := newTestEnv(t, "secreto")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: got %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	r.Header.Set("Authorization", "Bearer otro")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: got %d", w.Code)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/status", nil, ""); w.Code != http.StatusOK {
		t.Errorf("valid token: got %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("health should stay open: got %d", w.Code)
	}
}

func TestUploadParseAndBatch(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.upload(t, "slides", map[string][]byte{"deck.pptx": deck(t, "Intro", "Fotosintesis")})
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: got %d %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/v1/uploads/pptx", nil, "")
	var listed struct {
		Kind  models.Kind            `json:"kind"`
		Files []*models.UploadedFile `json:"files"`
	}
	decode(t, w, &listed)
	if listed.Kind != models.KindSlides || len(listed.Files) != 1 || listed.Files[0].Name != "deck.pptx" {
		t.Fatalf("list: %+v", listed)
	}

	w = env.do(t, http.MethodGet, "/api/v1/batches/slides", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("batch before parse: got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/v1/parse/slides", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("parse: got %d %s", w.Code, w.Body.String())
	}
	var status pipeline.Status
	decode(t, w, &status)
	if status.Outcome != pipeline.Parsed || status.Records != 2 {
		t.Errorf("parse status: %+v", status)
	}

	w = env.do(t, http.MethodGet, "/api/v1/batches/slides", nil, "")
	var batch models.SlidesBatch
	decode(t, w, &batch)
	if len(batch.Slides) != 2 || batch.Slides[1].Text != "Fotosintesis" || batch.Slides[1].OriginFile != "deck.pptx" {
		t.Errorf("batch: %+v", batch)
	}

	w = env.do(t, http.MethodGet, "/api/v1/search?q=fotosintesis", nil, "")
	var result keyword.Result
	decode(t, w, &result)
	if len(result.Hits) != 1 || result.Hits[0].OriginFile != "deck.pptx" {
		t.Errorf("search: %+v", result)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/uploads/slides", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear: got %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/search?q=fotosintesis", nil, "")
	result = keyword.Result{}
	decode(t, w, &result)
	if len(result.Hits) != 0 {
		t.Errorf("search after clear: %+v", result.Hits)
	}
}

func TestUpload_rejectsWrongExtension(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.upload(t, "documents", map[string][]byte{"deck.pptx": deck(t, "x")})
	if w.Code != http.StatusBadRequest {
		t.Errorf("got %d", w.Code)
	}
}

func TestUpload_tooLarge(t *testing.T) {
	env := newTestEnv(t, "")
	env.cfg.Server.MaxUploadMB = 1
	w := env.upload(t, "documents", map[string][]byte{"big.pdf": bytes.Repeat([]byte("x"), 2<<20)})
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("got %d", w.Code)
	}
}

func TestUnknownKind(t *testing.T) {
	env := newTestEnv(t, "")
	if w := env.do(t, http.MethodGet, "/api/v1/uploads/xlsx", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("got %d", w.Code)
	}
}

func TestParse_invalidArchive(t *testing.T) {
	env := newTestEnv(t, "")
	if w := env.upload(t, "slides", map[string][]byte{"broken.pptx": []byte("not a zip")}); w.Code != http.StatusCreated {
		t.Fatalf("upload: got %d", w.Code)
	}
	w := env.do(t, http.MethodPost, "/api/v1/parse/slides", nil, "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("got %d %s", w.Code, w.Body.String())
	}
}

func TestParse_nothingToParse(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(t, http.MethodPost, "/api/v1/parse/documents", nil, "")
	var status pipeline.Status
	decode(t, w, &status)
	if status.Outcome != pipeline.NothingToParse {
		t.Errorf("got %+v", status)
	}
}

func TestNotesAndPDF(t *testing.T) {
	env := newTestEnv(t, "")
	env.upload(t, "slides", map[string][]byte{"deck.pptx": deck(t, "Intro")})
	env.do(t, http.MethodPost, "/api/v1/parse/slides", nil, "")
	env.client.reply = "Apuntes detallados"

	w := env.do(t, http.MethodPost, "/api/v1/notes/slides", nil, "")
	var notes map[string]string
	decode(t, w, &notes)
	if notes["notes"] != "Apuntes detallados" {
		t.Errorf("notes: %v", notes)
	}
	if len(env.client.requests) != 1 || env.client.requests[0].Model != "test-model" {
		t.Errorf("requests: %+v", env.client.requests)
	}

	w = env.do(t, http.MethodPost, "/api/v1/notes/slides/pdf", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("pdf: got %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "Apuntes-PPT.pdf") {
		t.Errorf("content disposition: %s", cd)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Error("body is not a PDF")
	}
}

func TestNotes_withoutBatch(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(t, http.MethodPost, "/api/v1/notes/documents", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("got %d", w.Code)
	}
	if len(env.client.requests) != 0 {
		t.Error("no remote call expected without text")
	}
}

func TestNotes_remoteFailure(t *testing.T) {
	env := newTestEnv(t, "")
	env.upload(t, "slides", map[string][]byte{"deck.pptx": deck(t, "Intro")})
	env.do(t, http.MethodPost, "/api/v1/parse/slides", nil, "")
	env.client.err = &llm.RemoteError{Err: errors.New("503")}
	if w := env.do(t, http.MethodPost, "/api/v1/notes/slides", nil, ""); w.Code != http.StatusBadGateway {
		t.Errorf("got %d", w.Code)
	}
}

func TestQuizFlow(t *testing.T) {
	env := newTestEnv(t, "")
	env.upload(t, "slides", map[string][]byte{"deck.pptx": deck(t, "Celula")})
	env.do(t, http.MethodPost, "/api/v1/parse/slides", nil, "")
	env.client.reply = "1. ¿Qué es una célula?\n2. ¿Qué es el núcleo?"

	w := env.doJSON(t, http.MethodPost, "/api/v1/quizzes", quizRequest{Kind: "pptx", Count: 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("create quiz: got %d %s", w.Code, w.Body.String())
	}
	var quiz models.Quiz
	decode(t, w, &quiz)
	if len(quiz.Questions) != 2 || quiz.Questions[0] != "¿Qué es una célula?" {
		t.Fatalf("quiz: %+v", quiz)
	}

	w = env.do(t, http.MethodGet, "/api/v1/quizzes/"+quiz.ID, nil, "")
	var loaded models.Quiz
	decode(t, w, &loaded)
	if loaded.ID != quiz.ID || loaded.Kind != models.KindSlides {
		t.Errorf("loaded: %+v", loaded)
	}

	env.client.reply = "Correcto"
	w = env.doJSON(t, http.MethodPost, "/api/v1/quizzes/"+quiz.ID+"/answers", answerRequest{Question: 1, Answer: "El centro"})
	var feedback map[string]interface{}
	decode(t, w, &feedback)
	if feedback["feedback"] != "Correcto" {
		t.Errorf("feedback: %v", feedback)
	}

	w = env.doJSON(t, http.MethodPost, "/api/v1/quizzes/"+quiz.ID+"/answers", answerRequest{Question: 5, Answer: "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad index: got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/quizzes/missing", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing quiz: got %d", w.Code)
	}
}

func TestQuiz_countOutOfRange(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.doJSON(t, http.MethodPost, "/api/v1/quizzes", quizRequest{Kind: "slides", Count: 21})
	if w.Code != http.StatusBadRequest {
		t.Errorf("got %d", w.Code)
	}
}

func TestSearch_requiresQuery(t *testing.T) {
	env := newTestEnv(t, "")
	if w := env.do(t, http.MethodGet, "/api/v1/search", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/search?q=x&limit=abc", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: got %d", w.Code)
	}
}

func TestAPIKeySettings(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/v1/settings/api-key", nil, "")
	var out map[string]interface{}
	decode(t, w, &out)
	if out["configured"] != false || out["source"] != "none" {
		t.Errorf("initial: %v", out)
	}

	w = env.doJSON(t, http.MethodPut, "/api/v1/settings/api-key", apiKeyRequest{Key: " sk-1234567890abcd "})
	out = nil
	decode(t, w, &out)
	if out["configured"] != true || out["source"] != "user" || out["masked"] != "sk-1*********abcd" {
		t.Errorf("after set: %v", out)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/settings/api-key", nil, "")
	out = nil
	decode(t, w, &out)
	if out["configured"] != false {
		t.Errorf("after clear: %v", out)
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t, "")
	env.upload(t, "documents", map[string][]byte{"a.pdf": []byte("%PDF-1.4")})
	w := env.do(t, http.MethodGet, "/api/v1/status", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("got %d", w.Code)
	}
	var out struct {
		Kinds map[models.Kind]kindStatus `json:"kinds"`
		Model string                     `json:"model"`
	}
	decode(t, w, &out)
	if out.Kinds[models.KindDocuments].Uploads != 1 || out.Kinds[models.KindDocuments].Parsed {
		t.Errorf("documents: %+v", out.Kinds[models.KindDocuments])
	}
	if out.Model != "gpt-3.5-turbo" {
		t.Errorf("model: %s", out.Model)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&extract.ParseError{Kind: extract.InvalidArchive}, http.StatusUnprocessableEntity},
		{fmt.Errorf("parse x: %w", &extract.ParseError{Kind: extract.InvalidDocument}), http.StatusUnprocessableEntity},
		{&llm.RemoteError{Err: errors.New("boom")}, http.StatusBadGateway},
		{storage.ErrNotFound, http.StatusNotFound},
		{study.ErrQuizNotFound, http.StatusNotFound},
		{study.ErrMissingInput, http.StatusBadRequest},
		{pipeline.ErrNoBatch, http.StatusBadRequest},
		{llm.ErrMissingAPIKey, http.StatusBadRequest},
		{&storage.Error{Op: "list", Err: errors.New("disk")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
