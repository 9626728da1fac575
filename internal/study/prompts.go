package study

import (
	"fmt"

	"github.com/hyperjump/apuntes/internal/llm"
	"github.com/hyperjump/apuntes/internal/models"
)

const (
	notesSystemSlides    = "Eres un asistente que crea apuntes de estudio en español."
	notesSystemDocuments = "Eres un asistente que crea apuntes de estudio en español desde PDF."
	questionsSystem      = "Eres un asistente que responde en español usando SOLO el texto provisto."
	correctionSystem     = "Eres un asistente que verifica la respuesta usando SOLO el texto provisto."
)

func notesMessages(kind models.Kind, text string) []llm.Message {
	if kind == models.KindSlides {
		return []llm.Message{
			{Role: llm.RoleSystem, Content: notesSystemSlides},
			{Role: llm.RoleUser, Content: fmt.Sprintf(`
Aquí tienes el texto extraído de un PowerPoint:

%s

Por favor, elabora apuntes de estudio detallados en español,
para repasar todo el contenido importante.
No inventes datos ni uses info externa.
`, text)},
		}
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: notesSystemDocuments},
		{Role: llm.RoleUser, Content: fmt.Sprintf(`
Aquí tienes el texto extraído de uno o varios PDFs:

%s

Por favor, elabora apuntes de estudio detallados en español,
para repasar el contenido importante.
No inventes datos ni uses info externa.
`, text)},
	}
}

func questionMessages(text string, n int) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: questionsSystem},
		{Role: llm.RoleUser, Content: fmt.Sprintf(`
Texto:
%s

Genera %d preguntas de examen abiertas (sin opciones) en español,
basadas únicamente en el texto anterior.
NO enumeres ni listes las preguntas (sin '1.', '2.', etc.).
`, text, n)},
	}
}

func correctionMessages(text, question, answer string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: correctionSystem},
		{Role: llm.RoleUser, Content: fmt.Sprintf(`
Texto:
%s

Pregunta:
%s

Respuesta del estudiante:
%s

Basándote EXCLUSIVAMENTE en el texto,
indica si la respuesta es correcta o qué está mal, y cómo mejorarla.
`, text, question, answer)},
	}
}
