package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kgquery/internal/sparql"
)

// PeopleQuery is re-run after every successful update so the caller always
// sees the current people table
const PeopleQuery = `SELECT ?person ?name ?age ?company WHERE {
  ?person a foaf:Person .
  ?person foaf:name ?name .
  OPTIONAL { ?person ex:age ?age . }
  OPTIONAL { ?person ex:worksAt ?company . }
}`

// DefaultQuery is the sample shown in a fresh editor
const DefaultQuery = `SELECT ?person ?name ?age ?company WHERE {
  ?person a foaf:Person .
  ?person foaf:name ?name .
  OPTIONAL { ?person ex:age ?age . }
  OPTIONAL { ?person ex:worksAt ?company . }
} LIMIT 20
`

// InfoExecuted is the message attached to every successful envelope
const InfoExecuted = "Query executed."

// DataSource is the graph a query runs against
type DataSource interface {
	Query(ctx context.Context, text string) (*sparql.Results, error)
	Update(ctx context.Context, text string) error
}

// Executor runs queries and converts every outcome into an Envelope
type Executor struct {
	logger *zap.Logger
}

// NewExecutor creates an executor; a nil logger discards output
func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger.Named("executor")}
}

// Execute runs q against src. Queries starting with insert, delete or update
// are applied as updates and answered with PeopleQuery; everything else is
// evaluated as a query. Errors, including panics in the data source, become
// a *Failure carrying the message verbatim.
func (e *Executor) Execute(ctx context.Context, src DataSource, q string) (env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("data source panicked", zap.Any("panic", r))
			env = &Failure{Message: fmt.Sprint(r)}
		}
	}()

	var (
		res *sparql.Results
		err error
	)
	if isWrite(q) {
		if err = src.Update(ctx, q); err != nil {
			e.logger.Debug("update failed", zap.Error(err))
			return &Failure{Message: err.Error()}
		}
		res, err = src.Query(ctx, PeopleQuery)
	} else {
		res, err = src.Query(ctx, q)
	}
	if err != nil {
		e.logger.Debug("query failed", zap.Error(err))
		return &Failure{Message: err.Error()}
	}

	e.logger.Debug("query executed", zap.Int("rows", len(res.Rows)), zap.Strings("vars", res.Vars))
	return &Success{Info: InfoExecuted, Vars: res.Vars, Rows: toRows(res)}
}

func toRows(res *sparql.Results) []Row {
	rows := make([]Row, 0, len(res.Rows))
	for _, r := range res.Rows {
		row := make(Row, len(res.Vars))
		for i, v := range res.Vars {
			if i < len(r) && r[i] != nil {
				row[v] = Value(r[i].String())
			} else {
				row[v] = Absent
			}
		}
		rows = append(rows, row)
	}
	return rows
}
