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
	"github.com/bits-and-blooms/bitset"
)

// ExtractCorColumns extracts correlated columns from an expression, in
// left-to-right traversal order with duplicates preserved.
func ExtractCorColumns(expr Expression) (cols []*CorrelatedColumn) {
	switch v := expr.(type) {
	case *CorrelatedColumn:
		return []*CorrelatedColumn{v}
	case *ScalarFunction:
		for _, arg := range v.GetArgs() {
			cols = append(cols, ExtractCorColumns(arg)...)
		}
	}
	return cols
}

// ExtractColumns extracts ordinary columns from an expression.
func ExtractColumns(expr Expression) (cols []*Column) {
	switch v := expr.(type) {
	case *Column:
		return []*Column{v}
	case *ScalarFunction:
		for _, arg := range v.GetArgs() {
			cols = append(cols, ExtractColumns(arg)...)
		}
	}
	return cols
}

// ExtractColumnSet collects the unique IDs of all ordinary columns in the
// expressions into a bitset.
func ExtractColumnSet(exprs ...Expression) *bitset.BitSet {
	set := bitset.New(0)
	for _, expr := range exprs {
		for _, col := range ExtractColumns(expr) {
			set.Set(uint(col.UniqueID))
		}
	}
	return set
}

// EvaluateExprWithNull substitutes every column of schema in the expression
// with a null literal and folds the result. Callers use it to decide whether
// an expression is null-preserving over its input: pulling an aggregate above
// an outer join is only sound when a null-extended row contributes the same
// value as an empty group would.
func EvaluateExprWithNull(schema *Schema, expr Expression) Expression {
	switch v := expr.(type) {
	case *Column:
		if schema.Contains(v) {
			return NewNull()
		}
		return v
	case *ScalarFunction:
		newFunc := v.Clone().(*ScalarFunction)
		for i, arg := range newFunc.GetArgs() {
			newFunc.SetArg(i, EvaluateExprWithNull(schema, arg))
		}
		return FoldConstant(newFunc)
	}
	return expr
}

// ColumnSubstituteAll substitutes the columns in the expression by the
// expressions at the same offsets in newExprs, resolved through schema. The
// returned flag reports a column that could not be substituted; callers treat
// that as "leave the tree alone".
func ColumnSubstituteAll(expr Expression, schema *Schema, newExprs []Expression) (Expression, bool) {
	switch v := expr.(type) {
	case *Column:
		idx := schema.ColumnIndex(v)
		if idx == -1 {
			return expr, true
		}
		return newExprs[idx].Clone(), false
	case *ScalarFunction:
		newFunc := v.Clone().(*ScalarFunction)
		for i, arg := range newFunc.GetArgs() {
			newArg, failed := ColumnSubstituteAll(arg, schema, newExprs)
			if failed {
				return expr, true
			}
			newFunc.SetArg(i, newArg)
		}
		return newFunc, false
	}
	return expr, false
}
