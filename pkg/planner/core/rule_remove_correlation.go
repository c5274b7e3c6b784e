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
	"fmt"

	"github.com/Stars1233/relopt/pkg/expression"
	"github.com/Stars1233/relopt/pkg/expression/aggregation"
	"github.com/Stars1233/relopt/pkg/util/plancodec"
	"github.com/pingcap/errors"
)

// A correlationRule is one shape-specific rewrite that eliminates an apply
// operator cheaper than the generic push-down. match reports whether the rule
// fires for the apply; it returns the replacement subtree when it does. Rules
// mutate the correlation map themselves so the driver can re-scan right away.
type correlationRule struct {
	name  string
	match func(apply *LogicalApply, cm *CorelMap, opt *LogicalOptimizeOp) (LogicalPlan, bool, error)
}

// correlationRules are consulted in order and the first match wins. The order
// matters: the scalar-project rule subsumes part of the singleton-values
// shape and is the documented winner when both fire.
var correlationRules = []correlationRule{
	{name: "single_row_aggregate", match: removeSingleAggregate},
	{name: "scalar_project", match: removeCorrelationForScalarProject},
	{name: "scalar_aggregate", match: removeCorrelationForScalarAggregate},
	{name: "singleton_values", match: removeCorrelationForSingletonValues},
}

// removeCorrelationViaRules runs the pattern rule set to a fixed point,
// innermost applies first. Applies no rule matches are left for the generic
// transform.
func removeCorrelationViaRules(root LogicalPlan, cm *CorelMap, opt *LogicalOptimizeOp) (LogicalPlan, error) {
	for {
		newRoot, changed, err := applyCorrelationRules(root, cm, opt)
		if err != nil {
			return nil, err
		}
		root = newRoot
		if !changed {
			return root, nil
		}
	}
}

func applyCorrelationRules(p LogicalPlan, cm *CorelMap, opt *LogicalOptimizeOp) (LogicalPlan, bool, error) {
	changed := false
	newChildren := make([]LogicalPlan, 0, len(p.Children()))
	for _, child := range p.Children() {
		np, childChanged, err := applyCorrelationRules(child, cm, opt)
		if err != nil {
			return nil, false, err
		}
		changed = changed || childChanged
		newChildren = append(newChildren, np)
	}
	p.SetChildren(newChildren...)
	apply, ok := p.(*LogicalApply)
	if !ok || apply.NoDecorrelate {
		return p, changed, nil
	}
	for _, rule := range correlationRules {
		np, matched, err := rule.match(apply, cm, opt)
		if err != nil {
			return nil, false, err
		}
		if matched {
			appendRuleAppliedTraceStep(apply, np, rule.name, opt)
			return np, true, nil
		}
	}
	return p, changed, nil
}

// singleTupleValues matches a values operator carrying exactly one tuple. Two
// or more tuples structurally require a join, so every rule built on this
// helper falls through to the generic transform for them.
func singleTupleValues(p LogicalPlan) (*LogicalValues, bool) {
	v, ok := p.(*LogicalValues)
	if !ok || len(v.Tuples) != 1 {
		return nil, false
	}
	return v, true
}

// bareCorRefToOuter matches an expression that is exactly a correlated column
// of the given apply, nothing computed around it. It returns the outer column
// the reference resolves to.
func bareCorRefToOuter(expr expression.Expression, apply *LogicalApply) (*expression.Column, bool) {
	corCol, ok := expr.(*expression.CorrelatedColumn)
	if !ok || corCol.CorrID != apply.CorrID {
		return nil, false
	}
	col, ok := corCol.Decorrelate(apply.Children()[0].Schema()).(*expression.Column)
	return col, ok
}

// applyCollapsible reports whether collapsing the apply into a projection
// over its left child preserves its semantics: the join must not filter and
// must keep the concatenated row type.
func applyCollapsible(apply *LogicalApply) bool {
	if apply.JoinType != InnerJoin && apply.JoinType != LeftOuterJoin {
		return false
	}
	return len(apply.EqualConditions)+len(apply.LeftConditions)+len(apply.RightConditions)+len(apply.OtherConditions) == 0
}

// removeSingleAggregate eliminates an apply whose right side is a projection
// over a scalar aggregate over a single constant tuple. The aggregate's
// output is a compile-time constant, so the whole right side folds into
// constants appended to a projection over the left child.
func removeSingleAggregate(apply *LogicalApply, cm *CorelMap, _ *LogicalOptimizeOp) (LogicalPlan, bool, error) {
	if !applyCollapsible(apply) {
		return nil, false, nil
	}
	proj, ok := apply.Children()[1].(*LogicalProjection)
	if !ok {
		return nil, false, nil
	}
	agg, ok := proj.Children()[0].(*LogicalAggregation)
	if !ok || len(agg.GroupByItems) > 0 {
		return nil, false, nil
	}
	values, ok := singleTupleValues(agg.Children()[0])
	if !ok {
		return nil, false, nil
	}

	tuple := make([]expression.Expression, 0, len(values.Tuples[0]))
	for _, con := range values.Tuples[0] {
		tuple = append(tuple, con)
	}
	aggConsts := make([]expression.Expression, 0, len(agg.AggFuncs))
	for _, f := range agg.AggFuncs {
		arg, failed := expression.ColumnSubstituteAll(f.Args[0], values.Schema(), tuple)
		if failed {
			return nil, false, nil
		}
		con, ok := expression.FoldConstant(arg).(*expression.Constant)
		if !ok {
			return nil, false, nil
		}
		val, err := f.FoldSingleRow(con.Value)
		if err != nil {
			return nil, false, nil
		}
		aggConsts = append(aggConsts, &expression.Constant{Value: val})
	}

	outerPlan := apply.Children()[0]
	newExprs := make([]expression.Expression, 0, len(proj.Exprs))
	for _, expr := range proj.Exprs {
		substituted, failed := expression.ColumnSubstituteAll(expr, agg.Schema(), aggConsts)
		if failed {
			return nil, false, nil
		}
		substituted = substituted.Decorrelate(outerPlan.Schema())
		for _, corCol := range expression.ExtractCorColumns(substituted) {
			if corCol.CorrID == apply.CorrID {
				return nil, false, nil
			}
		}
		newExprs = append(newExprs, expression.FoldConstant(substituted))
	}

	newProj := LogicalProjection{
		Exprs: append(expression.Column2Exprs(outerPlan.Schema().Columns), newExprs...),
	}.Init(apply.SCtx())
	newProj.SetSchema(apply.Schema())
	newProj.SetChildren(outerPlan)
	cm.RemoveCorrelate(apply.CorrID)
	cm.MoveRefs(proj, newProj)
	return newProj, true, nil
}

// removeCorrelationForScalarProject eliminates an apply whose right side is a
// projection of bare correlated column references over a single constant
// tuple. The subquery only relabels outer columns, so the apply collapses
// into one projection over the left child.
func removeCorrelationForScalarProject(apply *LogicalApply, cm *CorelMap, _ *LogicalOptimizeOp) (LogicalPlan, bool, error) {
	if !applyCollapsible(apply) {
		return nil, false, nil
	}
	proj, ok := apply.Children()[1].(*LogicalProjection)
	if !ok {
		return nil, false, nil
	}
	if _, ok := singleTupleValues(proj.Children()[0]); !ok {
		return nil, false, nil
	}
	outerCols := make([]expression.Expression, 0, len(proj.Exprs))
	for _, expr := range proj.Exprs {
		col, ok := bareCorRefToOuter(expr, apply)
		if !ok {
			// A computed expression over the reference needs real evaluation
			// machinery, which the generic transform provides.
			return nil, false, nil
		}
		outerCols = append(outerCols, col)
	}

	outerPlan := apply.Children()[0]
	newProj := LogicalProjection{
		Exprs: append(expression.Column2Exprs(outerPlan.Schema().Columns), outerCols...),
	}.Init(apply.SCtx())
	newProj.SetSchema(apply.Schema())
	newProj.SetChildren(outerPlan)
	cm.RemoveCorrelate(apply.CorrID)
	return newProj, true, nil
}

// removeCorrelationForScalarAggregate rewrites an apply over a scalar
// aggregate into a left outer join aggregated post-join, grouped by the left
// child's key columns. An optional selection below the aggregate becomes the
// join condition. A left row without matches then aggregates one null
// extended row, which each pullable aggregate treats exactly like an empty
// group, so scalar-subquery-on-zero-rows semantics survive.
func removeCorrelationForScalarAggregate(apply *LogicalApply, cm *CorelMap, _ *LogicalOptimizeOp) (LogicalPlan, bool, error) {
	if !apply.canPullUpAgg() {
		return nil, false, nil
	}
	agg, ok := apply.Children()[1].(*LogicalAggregation)
	if !ok || !agg.canPullUp() {
		return nil, false, nil
	}

	outerPlan := apply.Children()[0]
	aggInput := agg.Children()[0]
	joinConds := make([]expression.Expression, 0, 4)
	if sel, ok := aggInput.(*LogicalSelection); ok {
		for _, cond := range sel.Conditions {
			decorrelated := cond.Decorrelate(outerPlan.Schema())
			if len(expression.ExtractCorColumns(decorrelated)) > 0 {
				return nil, false, nil
			}
			joinConds = append(joinConds, decorrelated)
		}
		aggInput = sel.Children()[0]
	}
	if len(extractCorColumnsBySchema(aggInput, outerPlan.Schema())) > 0 {
		return nil, false, nil
	}

	applySchema := apply.Schema()
	join := &apply.LogicalJoin
	join.SetSelf(join)
	join.SetTP(plancodec.TypeJoin)
	join.JoinType = LeftOuterJoin
	join.SetChildren(outerPlan, aggInput)
	join.SetSchema(expression.MergeSchema(outerPlan.Schema(), aggInput.Schema()))
	join.AttachOnConds(joinConds)

	agg.SetSchema(applySchema)
	agg.GroupByItems = expression.Column2Exprs(outerPlan.Schema().Keys[0])
	newAggFuncs := make([]*aggregation.AggFuncDesc, 0, len(outerPlan.Schema().Columns)+len(agg.AggFuncs))
	for _, col := range outerPlan.Schema().Columns {
		first, err := aggregation.NewAggFuncDesc(aggregation.AggFuncFirstRow, []expression.Expression{col}, false)
		if err != nil {
			return nil, false, errors.Trace(err)
		}
		newAggFuncs = append(newAggFuncs, first)
	}
	newAggFuncs = append(newAggFuncs, agg.AggFuncs...)
	agg.AggFuncs = newAggFuncs
	agg.SetChildren(join)
	cm.RemoveCorrelate(apply.CorrID)
	return agg, true, nil
}

// removeCorrelationForSingletonValues eliminates the exact shape where both
// sides of the apply are projections, the right one over a single constant
// tuple, and every right expression is a bare correlated column reference.
// The subquery relabels columns the left projection already computes, so the
// two projections merge into one over the left projection's input.
func removeCorrelationForSingletonValues(apply *LogicalApply, cm *CorelMap, _ *LogicalOptimizeOp) (LogicalPlan, bool, error) {
	if !applyCollapsible(apply) {
		return nil, false, nil
	}
	leftProj, ok := apply.Children()[0].(*LogicalProjection)
	if !ok {
		return nil, false, nil
	}
	rightProj, ok := apply.Children()[1].(*LogicalProjection)
	if !ok {
		return nil, false, nil
	}
	if _, ok := singleTupleValues(rightProj.Children()[0]); !ok {
		return nil, false, nil
	}
	mapped := make([]expression.Expression, 0, len(rightProj.Exprs))
	for _, expr := range rightProj.Exprs {
		col, ok := bareCorRefToOuter(expr, apply)
		if !ok {
			return nil, false, nil
		}
		idx := leftProj.Schema().ColumnIndex(col)
		if idx == -1 {
			return nil, false, nil
		}
		mapped = append(mapped, leftProj.Exprs[idx].Clone())
	}

	newProj := LogicalProjection{
		Exprs: append(expression.CloneExprs(leftProj.Exprs), mapped...),
	}.Init(apply.SCtx())
	newProj.SetSchema(apply.Schema())
	newProj.SetChildren(leftProj.Children()[0])
	cm.RemoveCorrelate(apply.CorrID)
	cm.MoveRefs(leftProj, newProj)
	return newProj, true, nil
}

func appendRuleAppliedTraceStep(apply *LogicalApply, np LogicalPlan, ruleName string, opt *LogicalOptimizeOp) {
	action := func() string {
		return fmt.Sprintf("%v_%v rewritten into %v_%v", apply.TP(), apply.ID(), np.TP(), np.ID())
	}
	reason := func() string {
		return fmt.Sprintf("%v_%v matches the %s pattern", apply.TP(), apply.ID(), ruleName)
	}
	opt.AppendStepToCurrent(apply.ID(), apply.TP(), reason, action)
}
