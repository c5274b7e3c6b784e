// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package expression

import (
	"fmt"

	"github.com/Stars1233/relopt/pkg/types"
	"github.com/pingcap/errors"
)

// CorrelationID names one specific apply operator's outer-input row. It is
// minted once when the apply is built and stays unique for the whole
// compilation, so a correlated column can always be traced back to the apply
// that defines it.
type CorrelationID int64

// Column represents a column produced by some operator in the plan.
type Column struct {
	// UniqueID is the global identity of the column inside one compilation.
	// Schema membership tests go through it, never through names.
	UniqueID int64
	// Index is the column's offset in its producer's output row.
	Index int
	// OrigName keeps the user-visible name for plan dumps, may be empty.
	OrigName string
}

// String implements fmt.Stringer interface.
func (col *Column) String() string {
	if col.OrigName != "" {
		return col.OrigName
	}
	return fmt.Sprintf("Column#%d", col.UniqueID)
}

// Eval implements Expression interface.
func (col *Column) Eval(row []types.Datum) (types.Datum, error) {
	if col.Index < 0 || col.Index >= len(row) {
		return types.Datum{}, errors.Errorf("column %s offset %d out of row of width %d", col, col.Index, len(row))
	}
	return row[col.Index], nil
}

// Clone implements Expression interface.
func (col *Column) Clone() Expression {
	newCol := *col
	return &newCol
}

// Equal implements Expression interface.
func (col *Column) Equal(e Expression) bool {
	other, ok := e.(*Column)
	return ok && col.UniqueID == other.UniqueID
}

// EqualColumn checks whether two columns share the same identity.
func (col *Column) EqualColumn(other *Column) bool {
	return other != nil && col.UniqueID == other.UniqueID
}

// Decorrelate implements Expression interface.
func (col *Column) Decorrelate(_ *Schema) Expression {
	return col
}

// CorrelatedColumn reads one field of the row named by a correlation
// identifier. It appears only inside scalar expressions of operators placed
// in the inner subtree of the apply that minted CorrID; the embedded Column
// is the identity of the referenced outer column, and its Index is the field
// offset into the outer row.
type CorrelatedColumn struct {
	Column

	CorrID CorrelationID
	// Data is the binding slot the reference evaluator fills with the current
	// outer row's field before evaluating the inner subtree.
	Data *types.Datum
}

// String implements fmt.Stringer interface.
func (col *CorrelatedColumn) String() string {
	return fmt.Sprintf("$cor%d.%s", col.CorrID, col.Column.String())
}

// Eval implements Expression interface.
func (col *CorrelatedColumn) Eval(_ []types.Datum) (types.Datum, error) {
	if col.Data == nil {
		return types.Datum{}, errors.Errorf("correlated column %s evaluated without a bound outer row", col)
	}
	return *col.Data, nil
}

// Clone implements Expression interface. The binding slot is shared between
// clones so rewrites never detach an already-bound reference.
func (col *CorrelatedColumn) Clone() Expression {
	newCol := *col
	return &newCol
}

// Equal implements Expression interface.
func (col *CorrelatedColumn) Equal(e Expression) bool {
	other, ok := e.(*CorrelatedColumn)
	return ok && col.CorrID == other.CorrID && col.UniqueID == other.UniqueID
}

// Decorrelate implements Expression interface.
func (col *CorrelatedColumn) Decorrelate(schema *Schema) Expression {
	if !schema.Contains(&col.Column) {
		return col
	}
	return &col.Column
}
