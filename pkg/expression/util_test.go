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
	"testing"

	"github.com/Stars1233/relopt/pkg/types"
	"github.com/stretchr/testify/require"
)

func testCol(id int64, idx int, name string) *Column {
	return &Column{UniqueID: id, Index: idx, OrigName: name}
}

func testCorCol(corrID CorrelationID, col *Column) *CorrelatedColumn {
	return &CorrelatedColumn{Column: *col, CorrID: corrID, Data: new(types.Datum)}
}

func TestExtractCorColumns(t *testing.T) {
	a := testCol(1, 0, "a")
	b := testCol(2, 1, "b")
	cor := testCorCol(3, b)
	expr := NewFunctionInternal(Plus, a, NewFunctionInternal(Mul, cor, NewOne()))

	corCols := ExtractCorColumns(expr)
	require.Len(t, corCols, 1)
	require.Equal(t, CorrelationID(3), corCols[0].CorrID)

	cols := ExtractColumns(expr)
	require.Len(t, cols, 1)
	require.Equal(t, int64(1), cols[0].UniqueID)
}

func TestExtractColumnSet(t *testing.T) {
	a := testCol(1, 0, "a")
	b := testCol(4, 1, "b")
	set := ExtractColumnSet(NewFunctionInternal(Plus, a, b), a)
	require.True(t, set.Test(1))
	require.True(t, set.Test(4))
	require.False(t, set.Test(2))
	require.Equal(t, uint(2), set.Count())
}

func TestDecorrelateResolvesAgainstSchema(t *testing.T) {
	a := testCol(1, 0, "a")
	schema := NewSchema(a)
	cor := testCorCol(7, a)
	resolved := cor.Decorrelate(schema)
	col, ok := resolved.(*Column)
	require.True(t, ok)
	require.Equal(t, int64(1), col.UniqueID)

	other := testCorCol(7, testCol(9, 0, "z"))
	require.Same(t, other, other.Decorrelate(schema))
}

func TestColumnSubstituteAll(t *testing.T) {
	a := testCol(1, 0, "a")
	b := testCol(2, 1, "b")
	schema := NewSchema(a, b)
	newExprs := []Expression{NewConstant(types.NewIntDatum(10)), NewConstant(types.NewIntDatum(20))}

	expr := NewFunctionInternal(Plus, a, b)
	substituted, failed := ColumnSubstituteAll(expr, schema, newExprs)
	require.False(t, failed)
	folded := FoldConstant(substituted)
	con, ok := folded.(*Constant)
	require.True(t, ok)
	require.Equal(t, int64(30), con.Value.GetInt64())

	// A column outside the schema must fail the whole substitution.
	outside := testCol(9, 0, "z")
	_, failed = ColumnSubstituteAll(NewFunctionInternal(Plus, a, outside), schema, newExprs)
	require.True(t, failed)

	// Correlated references pass through untouched.
	cor := testCorCol(5, testCol(8, 0, "w"))
	substituted, failed = ColumnSubstituteAll(NewFunctionInternal(Plus, a, cor), schema, newExprs)
	require.False(t, failed)
	require.Len(t, ExtractCorColumns(substituted), 1)
}

func TestEvaluateExprWithNull(t *testing.T) {
	a := testCol(1, 0, "a")
	b := testCol(2, 1, "b")
	schema := NewSchema(a)

	// a+1 goes null when a is null.
	got := EvaluateExprWithNull(schema, NewFunctionInternal(Plus, a, NewOne()))
	con, ok := got.(*Constant)
	require.True(t, ok)
	require.True(t, con.Value.IsNull())

	// A constant expression does not.
	got = EvaluateExprWithNull(schema, NewFunctionInternal(Plus, NewOne(), NewOne()))
	con, ok = got.(*Constant)
	require.True(t, ok)
	require.False(t, con.Value.IsNull())

	// Columns outside the schema survive.
	got = EvaluateExprWithNull(schema, NewFunctionInternal(Plus, a, b))
	_, isConst := got.(*Constant)
	require.False(t, isConst)
}

func TestFoldConstantIsBestEffort(t *testing.T) {
	a := testCol(1, 0, "a")
	// Non-constant subtrees stay as they are.
	expr := NewFunctionInternal(Plus, a, NewOne())
	require.Equal(t, expr.String(), FoldConstant(expr).String())

	folded := FoldConstant(NewFunctionInternal(Mul, NewConstant(types.NewIntDatum(6)), NewConstant(types.NewIntDatum(7))))
	con, ok := folded.(*Constant)
	require.True(t, ok)
	require.Equal(t, int64(42), con.Value.GetInt64())
}

func TestSchemaOperations(t *testing.T) {
	a := testCol(1, 0, "a")
	b := testCol(2, 1, "b")
	c := testCol(3, 0, "c")
	left := NewSchema(a, b)
	right := NewSchema(c)

	require.Equal(t, 1, left.ColumnIndex(b))
	require.Equal(t, -1, left.ColumnIndex(c))
	require.True(t, left.Contains(a))
	require.False(t, left.Contains(c))

	merged := MergeSchema(left, right)
	require.Equal(t, 3, merged.Len())
	require.Equal(t, 2, merged.ColumnIndex(c))

	clone := left.Clone()
	require.Equal(t, left.Len(), clone.Len())
	require.NotSame(t, left.Columns[0], clone.Columns[0])
	require.True(t, clone.Contains(a))
}
