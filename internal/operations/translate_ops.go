package operations

import (
	"context"

	"kgquery/internal/nl2sparql"
)

// TranslateOps turns questions into queries for a session's editor
type TranslateOps struct {
	translator *nl2sparql.Translator
}

// NewTranslateOps creates a new TranslateOps instance
func NewTranslateOps(translator *nl2sparql.Translator) *TranslateOps {
	return &TranslateOps{translator: translator}
}

// Question translates question and places the result in the session's
// editor. The query is not run; the editor is unchanged on failure.
func (t *TranslateOps) Question(ctx context.Context, sess *Session, question string) (string, error) {
	q, err := t.translator.Translate(ctx, question)
	if err != nil {
		return "", NewOperationError("translate question", sess.ID, err)
	}
	sess.Workflow.SetEditor(q)
	return q, nil
}
