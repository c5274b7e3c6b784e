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

// Expression represents a scalar expression carried by a logical operator:
// a projection item, a selection condition or a join condition.
type Expression interface {
	fmt.Stringer

	// Eval evaluates the expression against a row laid out as the input
	// schema. Column offsets must already be resolved against that layout.
	Eval(row []types.Datum) (types.Datum, error)

	// Clone copies the expression deeply.
	Clone() Expression

	// Equal checks whether two expressions are structurally identical.
	Equal(e Expression) bool

	// Decorrelate turns every correlated column whose referenced column
	// belongs to schema into that ordinary column. Other correlated columns
	// are left alone.
	Decorrelate(schema *Schema) Expression
}

// EvalBool evaluates an expression to a boolean in SQL terms: NULL and zero
// are both false.
func EvalBool(expr Expression, row []types.Datum) (bool, error) {
	data, err := expr.Eval(row)
	if err != nil {
		return false, errors.Trace(err)
	}
	if data.IsNull() {
		return false, nil
	}
	i, err := data.ToBool()
	if err != nil {
		return false, errors.Trace(err)
	}
	return i != 0, nil
}

// Column2Exprs converts a slice of columns to a slice of expressions.
func Column2Exprs(cols []*Column) []Expression {
	result := make([]Expression, 0, len(cols))
	for _, col := range cols {
		result = append(result, col)
	}
	return result
}

// ScalarFuncs2Exprs converts a slice of scalar functions to a slice of
// expressions.
func ScalarFuncs2Exprs(funcs []*ScalarFunction) []Expression {
	result := make([]Expression, 0, len(funcs))
	for _, f := range funcs {
		result = append(result, f)
	}
	return result
}

// CloneExprs clones a slice of expressions.
func CloneExprs(exprs []Expression) []Expression {
	result := make([]Expression, 0, len(exprs))
	for _, e := range exprs {
		result = append(result, e.Clone())
	}
	return result
}
