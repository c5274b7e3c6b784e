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
	"testing"

	"github.com/Stars1233/relopt/pkg/expression"
	"github.com/Stars1233/relopt/pkg/expression/aggregation"
	"github.com/stretchr/testify/require"
)

func TestUncorrelatedApplySimplifiesToJoin(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a", "b")
	sScan := b.scan("s", false, "x")
	id := b.ctx.AllocCorrelationID()
	apply := b.apply(InnerJoin, id, tScan, sScan)

	np, err := DecorrelateQuery(b.ctx, apply)
	require.NoError(t, err)
	join, ok := np.(*LogicalJoin)
	require.True(t, ok)
	require.Equal(t, "Join", join.TP())
	_, stillApply := np.(*LogicalApply)
	require.False(t, stillApply)
}

func TestCorrelatedSelectionBecomesJoinCondition(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a", "b")
	sScan := b.scan("s", false, "x")
	colA := tScan.Schema().Columns[0]
	colX := sScan.Schema().Columns[0]
	id := b.ctx.AllocCorrelationID()
	sel := b.selection(sScan, eq(colX, corRef(id, colA)))
	apply := b.apply(InnerJoin, id, tScan, sel)

	np, err := DecorrelateQuery(b.ctx, apply)
	require.NoError(t, err)
	require.NoError(t, VerifyNoCorrelation(np))
	join, ok := np.(*LogicalJoin)
	require.True(t, ok)
	require.Len(t, join.EqualConditions, 1)
	// Normalized so the left argument comes from the outer side.
	require.True(t, join.EqualConditions[0].GetArgs()[0].Equal(colA))
	require.True(t, join.EqualConditions[0].GetArgs()[1].Equal(colX))
	require.Same(t, sScan, join.Children()[1])
}

func TestMaxOneRowOverSingleRowChildIsRemoved(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a", "b")
	colB := tScan.Schema().Columns[1]
	id := b.ctx.AllocCorrelationID()
	vals := b.values(nil, []*expression.Constant{})
	proj := b.projection(vals, plus(corRef(id, colB), intCon(1)))
	m := b.maxOneRow(proj)
	apply := b.apply(LeftOuterJoin, id, tScan, m)

	np, err := DecorrelateQuery(b.ctx, apply)
	require.NoError(t, err)
	require.NoError(t, VerifyNoCorrelation(np))
	requireNoOperator(t, np, func(p LogicalPlan) bool {
		_, ok := p.(*LogicalMaxOneRow)
		return ok
	})
}

func TestLimitOverSingleRowChildIsRemoved(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a", "b")
	colB := tScan.Schema().Columns[1]
	id := b.ctx.AllocCorrelationID()
	vals := b.values(nil, []*expression.Constant{})
	proj := b.projection(vals, plus(corRef(id, colB), intCon(1)))
	li := b.limit(proj, 0, 1)
	apply := b.apply(InnerJoin, id, tScan, li)

	np, err := DecorrelateQuery(b.ctx, apply)
	require.NoError(t, err)
	require.NoError(t, VerifyNoCorrelation(np))
	requireNoOperator(t, np, func(p LogicalPlan) bool {
		_, ok := p.(*LogicalLimit)
		return ok
	})
}

func TestLimitZeroNullExtendsOuterRows(t *testing.T) {
	build := func() (*PlanContext, LogicalPlan) {
		b := newPlanBuilder()
		tScan := b.scan("t", false, "a", "b")
		colB := tScan.Schema().Columns[1]
		id := b.ctx.AllocCorrelationID()
		vals := b.values(nil, []*expression.Constant{})
		proj := b.projection(vals, plus(corRef(id, colB), intCon(1)))
		li := b.limit(proj, 0, 0)
		return b.ctx, b.apply(LeftOuterJoin, id, tScan, li)
	}
	decorrelateAndCompare(t, build)

	ctx, plan := build()
	np, err := DecorrelateQuery(ctx, plan)
	require.NoError(t, err)
	require.NoError(t, VerifyNoCorrelation(np))
	requireNoOperator(t, np, func(p LogicalPlan) bool {
		_, ok := p.(*LogicalLimit)
		return ok
	})

	// LIMIT 0 means the subquery never yields a row, so every outer row
	// comes out null-extended. Keeping the limit's child instead would leak
	// the inner value.
	e := &execContext{tables: testTables()}
	rows, err := e.execute(np)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		require.True(t, r[2].IsNull())
	}
}

func TestSortUnderApplyIsRemoved(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a", "b")
	sScan := b.scan("s", false, "x")
	colA := tScan.Schema().Columns[0]
	colX := sScan.Schema().Columns[0]
	id := b.ctx.AllocCorrelationID()
	sel := b.selection(sScan, eq(colX, corRef(id, colA)))
	sort := b.sort(sel, colX)
	apply := b.apply(InnerJoin, id, tScan, sort)

	np, err := DecorrelateQuery(b.ctx, apply)
	require.NoError(t, err)
	require.NoError(t, VerifyNoCorrelation(np))
	requireNoOperator(t, np, func(p LogicalPlan) bool {
		_, ok := p.(*LogicalSort)
		return ok
	})
}

func TestCorrelatedInnerJoinConditionIsHoisted(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a", "b")
	sScan := b.scan("s", false, "x")
	uScan := b.scan("u", false, "v")
	colA := tScan.Schema().Columns[0]
	colX := sScan.Schema().Columns[0]
	colV := uScan.Schema().Columns[0]
	id := b.ctx.AllocCorrelationID()
	innerJoin := b.join(InnerJoin, sScan, uScan)
	innerJoin.AttachOnConds([]expression.Expression{
		eq(colX, colV),
		eq(colX, corRef(id, colA)),
	})
	apply := b.apply(InnerJoin, id, tScan, innerJoin)

	np, err := DecorrelateQuery(b.ctx, apply)
	require.NoError(t, err)
	require.NoError(t, VerifyNoCorrelation(np))
}

func TestCountOverEmptyGroupGetsDefaultProjection(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", true, "a", "b")
	sScan := b.scan("s", false, "x", "y")
	colA := tScan.Schema().Columns[0]
	colX := sScan.Schema().Columns[0]
	id := b.ctx.AllocCorrelationID()
	sel := b.selection(sScan, eq(colX, corRef(id, colA)))
	// count over a constant does not go null on null-extended rows, so the
	// aggregate cannot move above the join; the equal condition gets pulled
	// up instead and the count keeps its empty-group zero via IFNULL.
	agg := b.aggregate(sel, nil, aggFunc(t, aggregation.AggFuncCount, intCon(1)))
	apply := b.apply(LeftOuterJoin, id, tScan, agg)

	np, err := DecorrelateQuery(b.ctx, apply)
	require.NoError(t, err)
	require.NoError(t, VerifyNoCorrelation(np))

	proj, ok := np.(*LogicalProjection)
	require.True(t, ok)
	require.Len(t, proj.Exprs, 3)
	ifNull, ok := proj.Exprs[2].(*expression.ScalarFunction)
	require.True(t, ok)
	require.Equal(t, expression.IfNull, ifNull.FuncName)

	join, ok := proj.Children()[0].(*LogicalJoin)
	require.True(t, ok)
	require.Equal(t, LeftOuterJoin, join.JoinType)
	require.Len(t, join.EqualConditions, 1)
	newAgg, ok := join.Children()[1].(*LogicalAggregation)
	require.True(t, ok)
	require.Len(t, newAgg.GroupByItems, 1)
	require.True(t, newAgg.GroupByItems[0].Equal(colX))
}

func TestNestedCorrelationIsFullyEliminated(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a")
	sScan := b.scan("s", false, "x")
	uScan := b.scan("u", false, "v")
	colA := tScan.Schema().Columns[0]
	colX := sScan.Schema().Columns[0]
	colV := uScan.Schema().Columns[0]

	outerID := b.ctx.AllocCorrelationID()
	innerID := b.ctx.AllocCorrelationID()
	innerSel := b.selection(uScan, eq(colV, corRef(innerID, colX)))
	innerApply := b.apply(InnerJoin, innerID, sScan, innerSel)
	outerSel := b.selection(innerApply, eq(colX, corRef(outerID, colA)))
	outerApply := b.apply(InnerJoin, outerID, tScan, outerSel)

	np, err := DecorrelateQuery(b.ctx, outerApply)
	require.NoError(t, err)
	require.NoError(t, VerifyNoCorrelation(np))
	requireNoOperator(t, np, func(p LogicalPlan) bool {
		_, ok := p.(*LogicalApply)
		return ok
	})
}

func TestNoDecorrelateHintIsHonored(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a", "b")
	sScan := b.scan("s", false, "x")
	colA := tScan.Schema().Columns[0]
	colX := sScan.Schema().Columns[0]
	id := b.ctx.AllocCorrelationID()
	sel := b.selection(sScan, eq(colX, corRef(id, colA)))
	apply := b.apply(InnerJoin, id, tScan, sel)
	apply.NoDecorrelate = true

	np, err := DecorrelateQuery(b.ctx, apply)
	require.NoError(t, err)
	require.Same(t, apply, np)
	require.NoError(t, VerifyNoCorrelation(np))
}

func TestNoOpOnCorrelationFreePlan(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a", "b")
	sScan := b.scan("s", false, "x")
	join := b.join(InnerJoin, tScan, sScan)
	join.AttachOnConds([]expression.Expression{
		eq(tScan.Schema().Columns[0], sScan.Schema().Columns[0]),
	})

	np, err := DecorrelateQuery(b.ctx, join)
	require.NoError(t, err)
	require.Same(t, join, np)
	require.Empty(t, b.ctx.Trace.Steps())
}

func TestDecorrelateIsIdempotent(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a", "b")
	sScan := b.scan("s", false, "x")
	colA := tScan.Schema().Columns[0]
	colX := sScan.Schema().Columns[0]
	id := b.ctx.AllocCorrelationID()
	sel := b.selection(sScan, eq(colX, corRef(id, colA)))
	apply := b.apply(InnerJoin, id, tScan, sel)

	np, err := DecorrelateQuery(b.ctx, apply)
	require.NoError(t, err)
	np2, err := DecorrelateQuery(b.ctx, np)
	require.NoError(t, err)
	require.Same(t, np, np2)
}

func TestConstantProjectionUnderOuterApplyIsUnsupported(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a", "b")
	sScan := b.scan("s", false, "x")
	colA := tScan.Schema().Columns[0]
	colX := sScan.Schema().Columns[0]
	id := b.ctx.AllocCorrelationID()
	sel := b.selection(sScan, eq(colX, corRef(id, colA)))
	proj := b.projection(sel, intCon(1))
	apply := b.apply(LeftOuterJoin, id, tScan, proj)

	_, err := DecorrelateQuery(b.ctx, apply)
	require.Error(t, err)
	var upe *UnsupportedPatternError
	require.ErrorAs(t, err, &upe)
}

func TestStrayCorrelatedColumnIsMapConsistencyError(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a", "b")
	colA := tScan.Schema().Columns[0]
	sel := b.selection(tScan, eq(colA, corRef(7, colA)))

	_, err := DecorrelateQuery(b.ctx, sel)
	require.Error(t, err)
	var mce *MapConsistencyError
	require.ErrorAs(t, err, &mce)
	require.Equal(t, expression.CorrelationID(7), mce.CorrID)
}

func requireNoOperator(t *testing.T, p LogicalPlan, pred func(LogicalPlan) bool) {
	require.False(t, pred(p), "unexpected operator %s in %s", p.TP(), ToString(p))
	for _, child := range p.Children() {
		requireNoOperator(t, child, pred)
	}
}
