// Package study generates study notes, quiz questions and answer feedback from extracted text.
package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/apuntes/internal/llm"
	"github.com/hyperjump/apuntes/internal/models"
	"github.com/hyperjump/apuntes/internal/storage"
)

// Question count bounds.
const (
	MinQuestions     = 1
	MaxQuestions     = 20
	DefaultQuestions = 3
)

var (
	// ErrMissingInput is returned before any remote call when required input is absent.
	ErrMissingInput = errors.New("missing input")
	// ErrQuizNotFound is returned for an unknown quiz id.
	ErrQuizNotFound = errors.New("quiz not found")
)

// questionPrefixRe matches list markers such as "1.", "2)" or "-" at the start of a line.
var questionPrefixRe = regexp.MustCompile(`^[-\d.)]+\s*`)

// TextSource returns the combined extracted text of a kind.
type TextSource interface {
	LoadText(ctx context.Context, kind models.Kind) (string, error)
}

// Config holds model parameters.
type Config struct {
	Model            string
	NotesTemperature float64
	QuizTemperature  float64
}

// Service builds prompts over extracted text and sends them to an llm.Client.
type Service struct {
	texts  TextSource
	client llm.Client
	kv     storage.KVStore
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New returns a Service. Quizzes are persisted in kv.
func New(texts TextSource, client llm.Client, kv storage.KVStore, cfg Config, opts ...Option) *Service {
	s := &Service{
		texts:  texts,
		client: client,
		kv:     kv,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) text(ctx context.Context, kind models.Kind) (string, error) {
	text, err := s.texts.LoadText(ctx, kind)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: the parsed %s contain no text", ErrMissingInput, kind)
	}
	return text, nil
}

// Notes asks for detailed study notes over the whole text of kind.
func (s *Service) Notes(ctx context.Context, kind models.Kind) (string, error) {
	text, err := s.text(ctx, kind)
	if err != nil {
		return "", err
	}
	notes, err := s.client.Complete(ctx, &llm.Request{
		Model:       s.cfg.Model,
		Messages:    notesMessages(kind, text),
		Temperature: s.cfg.NotesTemperature,
	})
	if err != nil {
		s.logger.Error("failed to generate notes", zap.String("kind", string(kind)), zap.Error(err))
		return "", err
	}
	return notes, nil
}

// Questions asks for n open questions over the text of kind and saves them as a quiz.
func (s *Service) Questions(ctx context.Context, kind models.Kind, n int) (*models.Quiz, error) {
	if n < MinQuestions || n > MaxQuestions {
		return nil, fmt.Errorf("%w: question count must be between %d and %d, got %d", ErrMissingInput, MinQuestions, MaxQuestions, n)
	}
	text, err := s.text(ctx, kind)
	if err != nil {
		return nil, err
	}
	reply, err := s.client.Complete(ctx, &llm.Request{
		Model:       s.cfg.Model,
		Messages:    questionMessages(text, n),
		Temperature: s.cfg.QuizTemperature,
	})
	if err != nil {
		s.logger.Error("failed to generate questions", zap.String("kind", string(kind)), zap.Error(err))
		return nil, err
	}

	quiz := &models.Quiz{
		ID:        uuid.New().String(),
		Kind:      kind,
		Questions: ParseQuestions(reply),
		CreatedAt: s.now().UTC(),
	}
	data, err := json.Marshal(quiz)
	if err != nil {
		return nil, fmt.Errorf("encode quiz: %w", err)
	}
	if err := s.kv.Set(ctx, models.QuizSlot(quiz.ID), data); err != nil {
		return nil, err
	}
	s.logger.Info("generated quiz", zap.String("id", quiz.ID), zap.Int("questions", len(quiz.Questions)))
	return quiz, nil
}

// Quiz returns a saved quiz.
func (s *Service) Quiz(ctx context.Context, id string) (*models.Quiz, error) {
	data, err := s.kv.Get(ctx, models.QuizSlot(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrQuizNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var quiz models.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return nil, fmt.Errorf("decode quiz %s: %w", id, err)
	}
	return &quiz, nil
}

// Correct asks for feedback on answer to question index (0-based) of a saved quiz.
func (s *Service) Correct(ctx context.Context, quizID string, index int, answer string) (string, error) {
	quiz, err := s.Quiz(ctx, quizID)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(quiz.Questions) {
		return "", fmt.Errorf("%w: quiz %s has no question %d", ErrMissingInput, quizID, index)
	}
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("%w: empty answer", ErrMissingInput)
	}
	text, err := s.text(ctx, quiz.Kind)
	if err != nil {
		return "", err
	}
	feedback, err := s.client.Complete(ctx, &llm.Request{
		Model:       s.cfg.Model,
		Messages:    correctionMessages(text, quiz.Questions[index], answer),
		Temperature: s.cfg.QuizTemperature,
	})
	if err != nil {
		s.logger.Error("failed to correct answer", zap.String("quiz", quizID), zap.Int("question", index), zap.Error(err))
		return "", err
	}
	return feedback, nil
}

// ParseQuestions splits a model reply into questions: one per line, trimmed, list markers
// removed, empty lines dropped.
func ParseQuestions(reply string) []string {
	questions := make([]string, 0)
	for _, line := range strings.Split(reply, "\n") {
		q := questionPrefixRe.ReplaceAllString(strings.TrimSpace(line), "")
		if q != "" {
			questions = append(questions, q)
		}
	}
	return questions
}
