package query

import (
	"encoding/json"
)

// Envelope is the outcome of executing a query: either a *Failure or a
// *Success, never both.
type Envelope interface {
	isEnvelope()
}

// Failure carries the data source's error message verbatim
type Failure struct {
	Message string `json:"error"`
}

// Success carries an informational message and the result table
type Success struct {
	Info string   `json:"info,omitempty"`
	Vars []string `json:"vars"`
	Rows []Row    `json:"rows"`
}

func (*Failure) isEnvelope() {}
func (*Success) isEnvelope() {}

func (f *Failure) Error() string { return f.Message }

// Cell is one value of a result row. An unbound variable has Bound false.
type Cell struct {
	Value string
	Bound bool
}

// Value returns a bound cell
func Value(s string) Cell { return Cell{Value: s, Bound: true} }

// Absent is the marker for a variable with no binding in a row
var Absent = Cell{}

// String renders the cell for display; unbound cells render empty
func (c Cell) String() string {
	if !c.Bound {
		return ""
	}
	return c.Value
}

// MarshalJSON encodes an unbound cell as null
func (c Cell) MarshalJSON() ([]byte, error) {
	if !c.Bound {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// UnmarshalJSON decodes null as an unbound cell
func (c *Cell) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Absent
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = Value(s)
	return nil
}

// Row maps every result variable to a cell
type Row map[string]Cell
