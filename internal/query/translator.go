package query

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kyleking/timesheet-sql/internal/errors"
	"github.com/kyleking/timesheet-sql/internal/logging"
)

// Translation is the result of turning one question into SQL
type Translation struct {
	RequestID string        `json:"request_id"`
	Question  string        `json:"question"`
	Intent    *Intent       `json:"intent"`
	SQL       string        `json:"sql"`
	Duration  time.Duration `json:"duration"`
}

// Translator runs the parse and build steps for a question
type Translator struct {
	parser  *Parser
	builder *Builder
	logger  *logging.Logger
}

// NewTranslator wires a parser and builder together
func NewTranslator(parser *Parser, builder *Builder, logger *logging.Logger) *Translator {
	if logger == nil {
		logger = logging.Discard()
	}

	return &Translator{parser: parser, builder: builder, logger: logger}
}

// Translate parses question and renders its SQL
func (t *Translator) Translate(ctx context.Context, question string) (*Translation, error) {
	if strings.TrimSpace(question) == "" {
		return nil, apperrors.New(apperrors.ErrTypeValidation, "question is empty").
			WithSuggestion(`Ask something like: "total posted hours for project A in 2025-11"`)
	}

	start := time.Now()
	requestID := uuid.NewString()
	logger := t.logger.WithField("request_id", requestID)

	intent, err := t.parser.Parse(ctx, question)
	if err != nil {
		logger.WithError(err).Warn("Failed to parse question")
		return nil, err
	}

	logger.WithField("intent", intent.Summary()).Debug("Parsed question")

	sql, err := t.builder.Build(intent)
	if err != nil {
		logger.WithError(err).Warn("Failed to build SQL")
		return nil, err
	}

	tr := &Translation{
		RequestID: requestID,
		Question:  intent.Raw,
		Intent:    intent,
		SQL:       sql,
		Duration:  time.Since(start),
	}

	logger.WithFields(map[string]any{
		"aggregation": intent.Aggregation.String(),
		"filters":     len(intent.Filters),
		"duration":    tr.Duration.String(),
	}).Info("Translated question")

	return tr, nil
}
