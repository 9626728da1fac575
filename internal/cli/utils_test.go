package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/apuntes/internal/keyword"
	"github.com/hyperjump/apuntes/internal/models"
	"github.com/hyperjump/apuntes/internal/pipeline"
)

func TestWriteSearchResults_JSON(t *testing.T) {
	result := &keyword.Result{
		Query: "celula",
		Hits: []*keyword.Hit{
			{Kind: models.KindSlides, OriginFile: "bio.pptx", Part: "ppt/slides/slide2.xml", Snippet: "La celula", Score: 0.9},
		},
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, result, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded keyword.Result
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != "celula" || len(decoded.Hits) != 1 || decoded.Hits[0].OriginFile != "bio.pptx" {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	result := &keyword.Result{
		Query: "celula",
		Hits: []*keyword.Hit{
			{Kind: models.KindDocuments, OriginFile: "bio.pdf", Snippet: strings.Repeat("a", 300), Score: 0.5},
		},
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, result, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Found 1 results") || !strings.Contains(out, "[documents] bio.pdf") {
		t.Errorf("text output missing header or hit:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("a", 201)) {
		t.Error("snippet should be truncated to 200 characters")
	}
}

func TestWriteSearchResults_Suggestion(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteSearchResults(&buf, &keyword.Result{Query: "celulla", Suggestion: "celula"}, OutputText)
	if !strings.Contains(buf.String(), "Did you mean: celula") {
		t.Errorf("got:\n%s", buf.String())
	}
}

func TestWriteUploads(t *testing.T) {
	files := []*models.UploadedFile{
		{ID: 1, Name: "deck.pptx", Size: 2048, CreatedAt: time.Now()},
	}
	var buf bytes.Buffer
	if err := WriteUploads(&buf, models.KindSlides, files, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "deck.pptx") || !strings.Contains(buf.String(), "2.0 KB") {
		t.Errorf("got:\n%s", buf.String())
	}

	buf.Reset()
	_ = WriteUploads(&buf, models.KindDocuments, nil, OutputText)
	if !strings.Contains(buf.String(), "No documents uploaded.") {
		t.Errorf("got:\n%s", buf.String())
	}
}

func TestWriteParseStatus(t *testing.T) {
	var buf bytes.Buffer
	status := &pipeline.Status{Kind: models.KindDocuments, Outcome: pipeline.NothingToParse, Message: "No hay PDF para parsear."}
	_ = WriteParseStatus(&buf, status, OutputText)
	if buf.String() != "No hay PDF para parsear.\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteQuiz(t *testing.T) {
	quiz := &models.Quiz{ID: "q1", Questions: []string{"¿Uno?", "¿Dos?"}}
	var buf bytes.Buffer
	_ = WriteQuiz(&buf, quiz, OutputText)
	out := buf.String()
	if !strings.Contains(out, "1. ¿Uno?\n2. ¿Dos?") || !strings.Contains(out, "-quiz q1") {
		t.Errorf("got:\n%s", out)
	}
}

func TestParseOutputFormat(t *testing.T) {
	if f, err := ParseOutputFormat("JSON"); err != nil || f != OutputJSON {
		t.Errorf("JSON: %v %v", f, err)
	}
	if f, err := ParseOutputFormat(""); err != nil || f != OutputText {
		t.Errorf("empty: %v %v", f, err)
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestHumanBytes(t *testing.T) {
	tests := map[int64]string{
		512:     "512 B",
		1536:    "1.5 KB",
		2 << 20: "2.0 MB",
		3 << 30: "3.0 GB",
	}
	for n, want := range tests {
		if got := HumanBytes(n); got != want {
			t.Errorf("HumanBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
