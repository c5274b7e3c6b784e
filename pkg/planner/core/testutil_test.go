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

package core

import (
	"sort"
	"strings"
	"testing"

	"github.com/Stars1233/relopt/pkg/expression"
	"github.com/Stars1233/relopt/pkg/expression/aggregation"
	"github.com/Stars1233/relopt/pkg/types"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

// planBuilder assembles small logical plans for tests, the way the external
// validator/converter would hand them to the engine.
type planBuilder struct {
	ctx *PlanContext
}

func newPlanBuilder() *planBuilder {
	ctx := NewPlanContext()
	ctx.Trace = &LogicalOptimizeOp{}
	return &planBuilder{ctx: ctx}
}

func (b *planBuilder) column(name string, idx int) *expression.Column {
	return &expression.Column{UniqueID: b.ctx.AllocPlanColumnID(), Index: idx, OrigName: name}
}

// scan builds a table scan leaf. When keyed is set the first column becomes a
// unique key, which the scalar aggregate rewrites group on.
func (b *planBuilder) scan(table string, keyed bool, colNames ...string) *DataSource {
	cols := make([]*expression.Column, 0, len(colNames))
	for i, name := range colNames {
		cols = append(cols, b.column(table+"."+name, i))
	}
	ds := DataSource{TableName: table}.Init(b.ctx)
	schema := expression.NewSchema(cols...)
	if keyed {
		schema.Keys = []expression.KeyInfo{{cols[0]}}
	}
	ds.SetSchema(schema)
	return ds
}

func (b *planBuilder) values(colNames []string, tuples ...[]*expression.Constant) *LogicalValues {
	cols := make([]*expression.Column, 0, len(colNames))
	for i, name := range colNames {
		cols = append(cols, b.column(name, i))
	}
	v := LogicalValues{Tuples: tuples}.Init(b.ctx)
	v.SetSchema(expression.NewSchema(cols...))
	return v
}

func (b *planBuilder) projection(child LogicalPlan, exprs ...expression.Expression) *LogicalProjection {
	proj := LogicalProjection{Exprs: exprs}.Init(b.ctx)
	proj.SetChildren(child)
	cols := make([]*expression.Column, 0, len(exprs))
	for i := range exprs {
		cols = append(cols, b.column("", i))
	}
	proj.SetSchema(expression.NewSchema(cols...))
	return proj
}

func (b *planBuilder) selection(child LogicalPlan, conds ...expression.Expression) *LogicalSelection {
	sel := LogicalSelection{Conditions: conds}.Init(b.ctx)
	sel.SetChildren(child)
	sel.SetSchema(child.Schema())
	return sel
}

func (b *planBuilder) aggregate(child LogicalPlan, groupBy []expression.Expression, funcs ...*aggregation.AggFuncDesc) *LogicalAggregation {
	agg := LogicalAggregation{AggFuncs: funcs, GroupByItems: groupBy}.Init(b.ctx)
	agg.SetChildren(child)
	cols := make([]*expression.Column, 0, len(funcs))
	for i := range funcs {
		cols = append(cols, b.column("", i))
	}
	agg.SetSchema(expression.NewSchema(cols...))
	return agg
}

func (b *planBuilder) maxOneRow(child LogicalPlan) *LogicalMaxOneRow {
	m := LogicalMaxOneRow{}.Init(b.ctx)
	m.SetChildren(child)
	m.SetSchema(child.Schema())
	return m
}

func (b *planBuilder) sort(child LogicalPlan, byItems ...expression.Expression) *LogicalSort {
	s := LogicalSort{ByItems: byItems}.Init(b.ctx)
	s.SetChildren(child)
	s.SetSchema(child.Schema())
	return s
}

func (b *planBuilder) limit(child LogicalPlan, offset, count uint64) *LogicalLimit {
	li := LogicalLimit{Offset: offset, Count: count}.Init(b.ctx)
	li.SetChildren(child)
	li.SetSchema(child.Schema())
	return li
}

func (b *planBuilder) join(jt JoinType, left, right LogicalPlan) *LogicalJoin {
	j := LogicalJoin{}.Init(b.ctx)
	j.JoinType = jt
	j.SetChildren(left, right)
	j.SetSchema(expression.MergeSchema(left.Schema(), right.Schema()))
	return j
}

func (b *planBuilder) apply(jt JoinType, id expression.CorrelationID, outer, inner LogicalPlan) *LogicalApply {
	la := LogicalApply{CorrID: id}.Init(b.ctx)
	la.JoinType = jt
	la.SetChildren(outer, inner)
	if jt.IsSemiJoin() {
		la.SetSchema(outer.Schema().Clone())
	} else {
		la.SetSchema(expression.MergeSchema(outer.Schema(), inner.Schema()))
	}
	return la
}

// corRef builds a correlated reference to an outer column, with a binding
// slot so the reference evaluator can run the correlated original.
func corRef(id expression.CorrelationID, col *expression.Column) *expression.CorrelatedColumn {
	return &expression.CorrelatedColumn{Column: *col, CorrID: id, Data: new(types.Datum)}
}

func intCon(v int64) *expression.Constant {
	return expression.NewConstant(types.NewIntDatum(v))
}

func eq(l, r expression.Expression) expression.Expression {
	return expression.NewFunctionInternal(expression.EQ, l, r)
}

func lt(l, r expression.Expression) expression.Expression {
	return expression.NewFunctionInternal(expression.LT, l, r)
}

func plus(l, r expression.Expression) expression.Expression {
	return expression.NewFunctionInternal(expression.Plus, l, r)
}

func aggFunc(t *testing.T, name string, arg expression.Expression) *aggregation.AggFuncDesc {
	f, err := aggregation.NewAggFuncDesc(name, []expression.Expression{arg}, false)
	require.NoError(t, err)
	return f
}

// execContext is the reference row evaluator the semantic equivalence tests
// run plans on. It interprets every operator naively over in-memory tables,
// including the correlated apply the engine exists to eliminate, so the
// original and the rewritten plan can be compared row for row.
type execContext struct {
	tables map[string][][]types.Datum
}

func (e *execContext) execute(p LogicalPlan) ([][]types.Datum, error) {
	switch x := p.(type) {
	case *DataSource:
		return e.tables[x.TableName], nil
	case *LogicalValues:
		rows := make([][]types.Datum, 0, len(x.Tuples))
		for _, tuple := range x.Tuples {
			row := make([]types.Datum, 0, len(tuple))
			for _, con := range tuple {
				row = append(row, con.Value)
			}
			rows = append(rows, row)
		}
		return rows, nil
	case *LogicalSelection:
		childRows, err := e.execute(x.Children()[0])
		if err != nil {
			return nil, err
		}
		schema := x.Children()[0].Schema()
		var out [][]types.Datum
		for _, row := range childRows {
			ok, err := evalCondsOnRow(x.Conditions, schema, row)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, row)
			}
		}
		return out, nil
	case *LogicalProjection:
		childRows, err := e.execute(x.Children()[0])
		if err != nil {
			return nil, err
		}
		schema := x.Children()[0].Schema()
		out := make([][]types.Datum, 0, len(childRows))
		for _, row := range childRows {
			newRow := make([]types.Datum, 0, len(x.Exprs))
			for _, expr := range x.Exprs {
				d, err := evalExprOnRow(expr, schema, row)
				if err != nil {
					return nil, err
				}
				newRow = append(newRow, d)
			}
			out = append(out, newRow)
		}
		return out, nil
	case *LogicalSort:
		// Result sets are compared as multisets, ordering is irrelevant here.
		return e.execute(x.Children()[0])
	case *LogicalLimit:
		childRows, err := e.execute(x.Children()[0])
		if err != nil {
			return nil, err
		}
		if x.Offset >= uint64(len(childRows)) {
			return nil, nil
		}
		childRows = childRows[x.Offset:]
		if x.Count < uint64(len(childRows)) {
			childRows = childRows[:x.Count]
		}
		return childRows, nil
	case *LogicalMaxOneRow:
		childRows, err := e.execute(x.Children()[0])
		if err != nil {
			return nil, err
		}
		if len(childRows) > 1 {
			return nil, errors.Errorf("subquery returns %d rows, expected at most one", len(childRows))
		}
		return childRows, nil
	case *LogicalAggregation:
		return e.executeAggregation(x)
	case *LogicalApply:
		return e.executeApply(x)
	case *LogicalJoin:
		leftRows, err := e.execute(x.Children()[0])
		if err != nil {
			return nil, err
		}
		rightRows, err := e.execute(x.Children()[1])
		if err != nil {
			return nil, err
		}
		return e.joinRows(x, leftRows, rightRows)
	}
	return nil, errors.Errorf("cannot execute operator %s", p.TP())
}

func (e *execContext) executeAggregation(agg *LogicalAggregation) ([][]types.Datum, error) {
	childRows, err := e.execute(agg.Children()[0])
	if err != nil {
		return nil, err
	}
	schema := agg.Children()[0].Schema()
	type group struct {
		args [][]types.Datum
	}
	groups := make(map[string]*group)
	var order []string
	for _, row := range childRows {
		keyParts := make([]string, 0, len(agg.GroupByItems))
		for _, item := range agg.GroupByItems {
			d, err := evalExprOnRow(item, schema, row)
			if err != nil {
				return nil, err
			}
			keyParts = append(keyParts, d.String())
		}
		key := strings.Join(keyParts, "|")
		g, ok := groups[key]
		if !ok {
			g = &group{args: make([][]types.Datum, len(agg.AggFuncs))}
			groups[key] = g
			order = append(order, key)
		}
		for i, f := range agg.AggFuncs {
			d, err := evalExprOnRow(f.Args[0], schema, row)
			if err != nil {
				return nil, err
			}
			g.args[i] = append(g.args[i], d)
		}
	}
	// A scalar aggregate returns exactly one row even over empty input.
	if len(groups) == 0 && agg.IsScalarAgg() {
		groups[""] = &group{args: make([][]types.Datum, len(agg.AggFuncs))}
		order = append(order, "")
	}
	out := make([][]types.Datum, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		row := make([]types.Datum, 0, len(agg.AggFuncs))
		for i, f := range agg.AggFuncs {
			d, err := f.EvalGroup(g.args[i])
			if err != nil {
				return nil, err
			}
			row = append(row, d)
		}
		out = append(out, row)
	}
	return out, nil
}

func (e *execContext) executeApply(la *LogicalApply) ([][]types.Datum, error) {
	outerSchema := la.Children()[0].Schema()
	outerRows, err := e.execute(la.Children()[0])
	if err != nil {
		return nil, err
	}
	corCols := extractCorColumnsBySchema(la.Children()[1], outerSchema)
	var out [][]types.Datum
	for _, outerRow := range outerRows {
		for _, c := range corCols {
			idx := outerSchema.ColumnIndex(&c.Column)
			if idx == -1 {
				return nil, errors.Errorf("correlated column %s not found in outer schema", c)
			}
			*c.Data = outerRow[idx]
		}
		innerRows, err := e.execute(la.Children()[1])
		if err != nil {
			return nil, err
		}
		joined, err := e.joinRows(&la.LogicalJoin, [][]types.Datum{outerRow}, innerRows)
		if err != nil {
			return nil, err
		}
		out = append(out, joined...)
	}
	return out, nil
}

func (e *execContext) joinRows(j *LogicalJoin, leftRows, rightRows [][]types.Datum) ([][]types.Datum, error) {
	conds := j.OwnedExprs()
	mergedSchema := expression.MergeSchema(j.Children()[0].Schema(), j.Children()[1].Schema())
	rightWidth := j.Children()[1].Schema().Len()
	var out [][]types.Datum
	for _, l := range leftRows {
		matched := false
		for _, r := range rightRows {
			row := make([]types.Datum, 0, len(l)+len(r))
			row = append(append(row, l...), r...)
			ok, err := evalCondsOnRow(conds, mergedSchema, row)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			matched = true
			switch j.JoinType {
			case InnerJoin, LeftOuterJoin:
				out = append(out, row)
			case SemiJoin:
				out = append(out, l)
			}
			if j.JoinType == SemiJoin {
				break
			}
		}
		if !matched {
			switch j.JoinType {
			case LeftOuterJoin:
				row := make([]types.Datum, 0, len(l)+rightWidth)
				row = append(row, l...)
				for i := 0; i < rightWidth; i++ {
					row = append(row, types.Datum{})
				}
				out = append(out, row)
			case AntiSemiJoin:
				out = append(out, l)
			}
		}
	}
	return out, nil
}

// evalExprOnRow resolves the expression's column offsets against the schema
// the row is laid out as, then evaluates it.
func evalExprOnRow(expr expression.Expression, schema *expression.Schema, row []types.Datum) (types.Datum, error) {
	resolved := make([]expression.Expression, 0, schema.Len())
	for i, col := range schema.Columns {
		resolved = append(resolved, &expression.Column{UniqueID: col.UniqueID, Index: i})
	}
	bound, failed := expression.ColumnSubstituteAll(expr, schema, resolved)
	if failed {
		return types.Datum{}, errors.Errorf("expression %s reads columns outside schema %s", expr, schema)
	}
	return bound.Eval(row)
}

func evalCondsOnRow(conds []expression.Expression, schema *expression.Schema, row []types.Datum) (bool, error) {
	for _, cond := range conds {
		d, err := evalExprOnRow(cond, schema, row)
		if err != nil {
			return false, err
		}
		if d.IsNull() {
			return false, nil
		}
		b, err := d.ToBool()
		if err != nil {
			return false, err
		}
		if b == 0 {
			return false, nil
		}
	}
	return true, nil
}

func sortedRowStrings(rows [][]types.Datum) []string {
	strs := make([]string, 0, len(rows))
	for _, row := range rows {
		parts := make([]string, 0, len(row))
		for i := range row {
			parts = append(parts, row[i].String())
		}
		strs = append(strs, strings.Join(parts, ", "))
	}
	sort.Strings(strs)
	return strs
}

// requireSameResult evaluates both plans against the same tables and asserts
// they produce the same multiset of rows.
func requireSameResult(t *testing.T, tables map[string][][]types.Datum, original, rewritten LogicalPlan) {
	e := &execContext{tables: tables}
	want, err := e.execute(original)
	require.NoError(t, err)
	got, err := e.execute(rewritten)
	require.NoError(t, err)
	require.Equal(t, sortedRowStrings(want), sortedRowStrings(got))
}
