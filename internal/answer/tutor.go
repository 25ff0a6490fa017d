// Package answer turns retrieved textbook context into a grounded answer.
// It sits downstream of retrieval: a question with no relevant context gets a
// fixed "not found" reply and never reaches the generator.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
	"github.com/Aman-CERP/tutor/internal/retrieve"
)

// Default retrieval parameters for answering.
const (
	DefaultTopK            = 5
	DefaultMaxContextChars = 6000
)

// Retriever is the retrieval dependency of a Tutor.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK, maxContextChars int) (*retrieve.Result, error)
}

// Generator produces prose for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
	Close() error
}

// Answer is the outcome of one question.
type Answer struct {
	Question string           `json:"question"`
	Text     string           `json:"answer"`
	Found    bool             `json:"found"`
	Context  string           `json:"context,omitempty"`
	Sources  []retrieve.Match `json:"sources"`

	// Generated is false when no generator is configured; Text is then empty
	// and callers show the retrieved passages instead.
	Generated bool `json:"generated"`
}

// Options tune a Tutor.
type Options struct {
	TopK            int
	MaxContextChars int
	System          string // Empty uses SystemInstructions
}

// Tutor answers questions from the indexed textbooks.
type Tutor struct {
	retriever Retriever
	generator Generator
	opts      Options
}

// NewTutor creates a Tutor. generator may be nil for retrieval-only answers.
func NewTutor(r Retriever, g Generator, opts Options) *Tutor {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = DefaultMaxContextChars
	}
	if opts.System == "" {
		opts.System = SystemInstructions
	}
	return &Tutor{retriever: r, generator: g, opts: opts}
}

// Answer retrieves context for question and, when there is any, asks the
// generator for a grounded answer.
func (t *Tutor) Answer(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()

	res, err := t.retriever.Retrieve(ctx, question, t.opts.TopK, t.opts.MaxContextChars)
	if err != nil {
		return nil, err
	}

	ans := &Answer{Question: question, Sources: res.Chunks}
	if !res.Found() {
		ans.Text = NotFoundAnswer
		slog.Info("answer_not_found", slog.Int("question_chars", len(question)))
		return ans, nil
	}
	ans.Found = true
	ans.Context = res.Context

	if t.generator == nil {
		return ans, nil
	}

	prompt := BuildPrompt(t.opts.System, question, res.Context)
	text, err := t.generator.Generate(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if tutorerrors.GetCode(err) != "" {
			return nil, err
		}
		return nil, tutorerrors.New(tutorerrors.ErrCodeGenerationFailed,
			fmt.Sprintf("generate answer with %s", t.generator.ModelName()), err)
	}
	ans.Text = strings.TrimSpace(text)
	ans.Generated = true

	slog.Info("answer_complete",
		slog.Int("sources", len(ans.Sources)),
		slog.Int("prompt_chars", len(prompt)),
		slog.String("model", t.generator.ModelName()),
		slog.Duration("duration", time.Since(start)))

	return ans, nil
}
