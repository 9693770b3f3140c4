// Package nl2sparql turns a natural-language question into a SPARQL query
// with one deterministic LLM completion.
package nl2sparql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"kgquery/internal/llm"
	"kgquery/internal/prompts"
)

// ErrEmptyQuestion is returned for a blank question
var ErrEmptyQuestion = errors.New("please type a question")

// ConfigError reports a missing credential
type ConfigError struct {
	EnvVar string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s not found in environment or .env", e.EnvVar)
}

// Translator asks a Completer for a query and cleans up its answer
type Translator struct {
	completer llm.Completer
	envVar    string
	logger    *zap.Logger
}

// New creates a translator. A nil completer means the credential named by
// envVar was not available; Translate then fails with a *ConfigError.
func New(completer llm.Completer, envVar string, logger *zap.Logger) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{completer: completer, envVar: envVar, logger: logger.Named("nl2sparql")}
}

// Translate returns the cleaned SPARQL answer to question
func (t *Translator) Translate(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}
	if t.completer == nil {
		return "", &ConfigError{EnvVar: t.envVar}
	}

	raw, err := t.completer.Complete(ctx, prompts.Translation(question))
	if err != nil {
		return "", fmt.Errorf("failed to translate question: %w", err)
	}

	q := CleanQuery(raw)
	t.logger.Debug("translated question", zap.String("question", question), zap.String("query", q))
	return q, nil
}

// CleanQuery strips code fences and PREFIX lines from a model answer
func CleanQuery(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.ReplaceAll(text, "```sparql", "")
		text = strings.ReplaceAll(text, "```", "")
		text = strings.TrimSpace(text)
	}

	var kept []string
	for _, line := range splitLines(text) {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "prefix") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// splitLines splits on every line boundary (\n, \r\n, \r, \v, \f, \x1c,
// \x1d, \x1e, U+0085, U+2028, U+2029) without producing a trailing empty line
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if !isLineBreak(r) {
			continue
		}
		if r == '\n' && i > 0 && s[i-1] == '\r' {
			start = i + 1
			continue
		}
		lines = append(lines, s[start:i])
		start = i + utf8.RuneLen(r)
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
