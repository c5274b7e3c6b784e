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
	"github.com/Stars1233/relopt/pkg/util/logutil"
	"github.com/Stars1233/relopt/pkg/util/plancodec"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// canPullUpAgg checks if an apply can pull an aggregation up: the join may
// not filter rows and the outer side needs a key to group on.
func (la *LogicalApply) canPullUpAgg() bool {
	if la.JoinType != InnerJoin && la.JoinType != LeftOuterJoin {
		return false
	}
	if len(la.EqualConditions)+len(la.LeftConditions)+len(la.RightConditions)+len(la.OtherConditions) > 0 {
		return false
	}
	return len(la.Children()[0].Schema().Keys) > 0
}

// canPullUp checks if an aggregation can be pulled up over a left outer join.
// Every argument must go null on a null-extended row, so the aggregate sees
// the same value it would see over an empty group.
func (la *LogicalAggregation) canPullUp() bool {
	if len(la.GroupByItems) > 0 {
		return false
	}
	for _, f := range la.AggFuncs {
		for _, arg := range f.Args {
			expr := expression.EvaluateExprWithNull(la.Children()[0].Schema(), arg)
			if con, ok := expr.(*expression.Constant); !ok || !con.Value.IsNull() {
				return false
			}
		}
	}
	return true
}

// deCorColFromEqExpr checks whether the condition is `col = correlated col`.
// If so, the correlated side is decorrelated against the apply's schema and a
// normalized equality is returned with the outer column on the left.
func (la *LogicalApply) deCorColFromEqExpr(expr expression.Expression) expression.Expression {
	sf, ok := expr.(*expression.ScalarFunction)
	if !ok || sf.FuncName != expression.EQ {
		return nil
	}
	if col, lOK := sf.GetArgs()[0].(*expression.Column); lOK {
		if corCol, rOK := sf.GetArgs()[1].(*expression.CorrelatedColumn); rOK {
			ret := corCol.Decorrelate(la.Schema())
			if _, ok := ret.(*expression.CorrelatedColumn); ok {
				return nil
			}
			return expression.NewFunctionInternal(expression.EQ, ret, col)
		}
	}
	if corCol, lOK := sf.GetArgs()[0].(*expression.CorrelatedColumn); lOK {
		if col, rOK := sf.GetArgs()[1].(*expression.Column); rOK {
			ret := corCol.Decorrelate(la.Schema())
			if _, ok := ret.(*expression.CorrelatedColumn); ok {
				return nil
			}
			return expression.NewFunctionInternal(expression.EQ, ret, col)
		}
	}
	return nil
}

// columnSubstituteAll substitutes the apply's condition columns that come
// from schema with the expressions at the same offsets. Nothing is mutated
// when any column cannot be substituted.
func (la *LogicalApply) columnSubstituteAll(schema *expression.Schema, exprs []expression.Expression) (hasFail bool) {
	newEqs := make([]*expression.ScalarFunction, 0, len(la.EqualConditions))
	for _, cond := range la.EqualConditions {
		substituted, failed := expression.ColumnSubstituteAll(cond, schema, exprs)
		sf, ok := substituted.(*expression.ScalarFunction)
		if failed || !ok {
			return true
		}
		newEqs = append(newEqs, sf)
	}
	substituteBucket := func(conds []expression.Expression) ([]expression.Expression, bool) {
		newConds := make([]expression.Expression, 0, len(conds))
		for _, cond := range conds {
			substituted, failed := expression.ColumnSubstituteAll(cond, schema, exprs)
			if failed {
				return nil, true
			}
			newConds = append(newConds, substituted)
		}
		return newConds, false
	}
	newLefts, failed := substituteBucket(la.LeftConditions)
	if failed {
		return true
	}
	newRights, failed := substituteBucket(la.RightConditions)
	if failed {
		return true
	}
	newOthers, failed := substituteBucket(la.OtherConditions)
	if failed {
		return true
	}
	la.EqualConditions, la.LeftConditions, la.RightConditions, la.OtherConditions = newEqs, newLefts, newRights, newOthers
	return false
}

// decorrelateSolver tries to convert apply plan to join plan.
type decorrelateSolver struct{}

func (*decorrelateSolver) aggDefaultValueMap(agg *LogicalAggregation) map[int]*expression.Constant {
	defaultValueMap := make(map[int]*expression.Constant, len(agg.AggFuncs))
	for i, f := range agg.AggFuncs {
		if con, ok := f.DefaultValueOnEmptyGroup(); ok {
			defaultValueMap[i] = con
		}
	}
	return defaultValueMap
}

// optimize pushes one apply operator's dependency on its outer side down
// through the inner subtree operator by operator, until the apply degenerates
// into a join. It reports whether it changed the tree, so the driver can run
// it to a fixed point.
func (s *decorrelateSolver) optimize(p LogicalPlan, opt *LogicalOptimizeOp) (LogicalPlan, bool, error) {
	planChanged := false
	if apply, ok := p.(*LogicalApply); ok && !apply.NoDecorrelate {
		outerPlan := apply.Children()[0]
		innerPlan := apply.Children()[1]
		apply.CorCols = extractCorColumnsBySchema(apply.Children()[1], apply.Children()[0].Schema())
		if len(apply.CorCols) == 0 {
			// If the inner plan is non-correlated, the apply will be simplified
			// to join.
			join := &apply.LogicalJoin
			join.SetSelf(join)
			join.SetTP(plancodec.TypeJoin)
			p = join
			appendApplySimplifiedTraceStep(apply, join, opt)
			planChanged = true
		} else if sel, ok := innerPlan.(*LogicalSelection); ok {
			// If the inner plan is a selection, we add this condition to join
			// predicates. Notice that no matter what kind of join is, it's
			// always right.
			newConds := make([]expression.Expression, 0, len(sel.Conditions))
			for _, cond := range sel.Conditions {
				newConds = append(newConds, cond.Decorrelate(outerPlan.Schema()))
			}
			apply.AttachOnConds(newConds)
			innerPlan = sel.Children()[0]
			apply.SetChildren(outerPlan, innerPlan)
			appendRemoveSelectionTraceStep(apply, sel, opt)
			return s.reoptimize(p, opt)
		} else if m, ok := innerPlan.(*LogicalMaxOneRow); ok {
			if m.Children()[0].MaxOneRow() {
				innerPlan = m.Children()[0]
				apply.SetChildren(outerPlan, innerPlan)
				appendRemoveMaxOneRowTraceStep(m, opt)
				return s.reoptimize(p, opt)
			}
		} else if proj, ok := innerPlan.(*LogicalProjection); ok {
			allConst := len(proj.Exprs) > 0
			for _, expr := range proj.Exprs {
				if len(expression.ExtractCorColumns(expr)) > 0 || len(expression.ExtractColumns(expr)) > 0 {
					allConst = false
					break
				}
			}
			if allConst && apply.JoinType == LeftOuterJoin {
				// A constant-only projection cannot be pulled above an outer
				// join: the join's null padding would be papered over by the
				// constants. Leave the apply alone; the driver reports it.
				goto NoOptimize
			}
			hasFail := apply.columnSubstituteAll(proj.Schema(), proj.Exprs)
			if hasFail {
				goto NoOptimize
			}
			for i, expr := range proj.Exprs {
				proj.Exprs[i] = expr.Decorrelate(outerPlan.Schema())
			}
			apply.Decorrelate(outerPlan.Schema())

			innerPlan = proj.Children()[0]
			apply.SetChildren(outerPlan, innerPlan)
			if !apply.JoinType.IsSemiJoin() {
				proj.SetSchema(apply.Schema())
				proj.Exprs = append(expression.Column2Exprs(outerPlan.Schema().Clone().Columns), proj.Exprs...)
				apply.SetSchema(expression.MergeSchema(outerPlan.Schema(), innerPlan.Schema()))
				np, _, err := s.reoptimize(p, opt)
				if err != nil {
					return nil, true, err
				}
				proj.SetChildren(np)
				appendMoveProjTraceStep(apply, np, proj, opt)
				return proj, true, nil
			}
			appendRemoveProjTraceStep(apply, proj, opt)
			return s.reoptimize(p, opt)
		} else if li, ok := innerPlan.(*LogicalLimit); ok {
			if li.Count == 0 {
				// LIMIT 0 is the empty relation whatever the child produces,
				// so the subquery can never match. An outer join must still
				// null-extend here, so the child cannot simply be kept.
				empty := LogicalValues{}.Init(apply.SCtx())
				empty.SetSchema(li.Schema().Clone())
				apply.SetChildren(outerPlan, empty)
				appendEmptyLimitTraceStep(li, empty, opt)
				return s.reoptimize(p, opt)
			}
			if li.Offset == 0 && (apply.JoinType.IsSemiJoin() || li.Children()[0].MaxOneRow()) {
				// Existence only cares about one match, and a limit over an
				// at-most-one-row child filters nothing once the count is
				// known to be positive.
				innerPlan = li.Children()[0]
				apply.SetChildren(outerPlan, innerPlan)
				appendRemoveLimitTraceStep(li, opt)
				return s.reoptimize(p, opt)
			}
		} else if agg, ok := innerPlan.(*LogicalAggregation); ok {
			if apply.canPullUpAgg() && agg.canPullUp() {
				innerPlan = agg.Children()[0]
				apply.JoinType = LeftOuterJoin
				apply.SetChildren(outerPlan, innerPlan)
				agg.SetSchema(apply.Schema())
				agg.GroupByItems = expression.Column2Exprs(outerPlan.Schema().Keys[0])
				newAggFuncs := make([]*aggregation.AggFuncDesc, 0, apply.Schema().Len())
				for _, col := range outerPlan.Schema().Columns {
					first, err := aggregation.NewAggFuncDesc(aggregation.AggFuncFirstRow, []expression.Expression{col}, false)
					if err != nil {
						return nil, planChanged, errors.Trace(err)
					}
					newAggFuncs = append(newAggFuncs, first)
				}
				for _, aggFunc := range agg.AggFuncs {
					newAggFuncs = append(newAggFuncs, aggFunc.Clone())
				}
				agg.AggFuncs = newAggFuncs
				apply.SetSchema(expression.MergeSchema(outerPlan.Schema(), innerPlan.Schema()))
				np, _, err := s.reoptimize(p, opt)
				if err != nil {
					return nil, true, err
				}
				agg.SetChildren(np)
				appendPullUpAggTraceStep(apply, np, agg, opt)
				return agg, true, nil
			}
			// We can pull up the equal conditions below the aggregation as the
			// join key of the apply, if only the equal conditions contain the
			// correlated column of this apply.
			if sel, ok := agg.Children()[0].(*LogicalSelection); ok && apply.JoinType == LeftOuterJoin {
				var (
					eqCondWithCorCol []*expression.ScalarFunction
					remainedExpr     []expression.Expression
				)
				for _, cond := range sel.Conditions {
					if expr := apply.deCorColFromEqExpr(cond); expr != nil {
						eqCondWithCorCol = append(eqCondWithCorCol, expr.(*expression.ScalarFunction))
					} else {
						remainedExpr = append(remainedExpr, cond)
					}
				}
				if len(eqCondWithCorCol) > 0 {
					originalExpr := sel.Conditions
					sel.Conditions = remainedExpr
					apply.CorCols = extractCorColumnsBySchema(apply.Children()[1], apply.Children()[0].Schema())
					// There's no other correlated column.
					groupByCols := expression.NewSchema(agg.GetGroupByCols()...)
					if len(apply.CorCols) == 0 {
						join := &apply.LogicalJoin
						join.EqualConditions = append(join.EqualConditions, eqCondWithCorCol...)
						for _, eqCond := range eqCondWithCorCol {
							clonedCol := eqCond.GetArgs()[1].(*expression.Column)
							// If the join key is not in the aggregation's schema,
							// add a first row function.
							if agg.Schema().ColumnIndex(clonedCol) == -1 {
								newFunc, err := aggregation.NewAggFuncDesc(aggregation.AggFuncFirstRow, []expression.Expression{clonedCol}, false)
								if err != nil {
									return nil, planChanged, errors.Trace(err)
								}
								agg.AggFuncs = append(agg.AggFuncs, newFunc)
								agg.Schema().Append(clonedCol.Clone().(*expression.Column))
							}
							// If group by cols don't contain the join key, add it.
							if !groupByCols.Contains(clonedCol) {
								agg.GroupByItems = append(agg.GroupByItems, clonedCol)
								groupByCols.Append(clonedCol)
							}
						}
						// The selection may be useless, check and remove it.
						if len(sel.Conditions) == 0 {
							agg.SetChildren(sel.Children()[0])
							appendRemoveSelectionTraceStep(agg, sel, opt)
						}
						defaultValueMap := s.aggDefaultValueMap(agg)
						// Null-extended rows of the outer join must keep
						// scalar-subquery-on-zero-rows semantics, so the
						// total aggregates get their empty-group value back.
						if len(defaultValueMap) > 0 {
							proj := LogicalProjection{}.Init(apply.SCtx())
							proj.SetSchema(apply.Schema())
							proj.Exprs = expression.Column2Exprs(apply.Schema().Columns)
							for i, val := range defaultValueMap {
								pos := proj.Schema().ColumnIndex(agg.Schema().Columns[i])
								ifNullFunc := expression.NewFunctionInternal(expression.IfNull, agg.Schema().Columns[i], val)
								proj.Exprs[pos] = ifNullFunc
							}
							proj.SetChildren(apply)
							p = proj
							appendAddProjTraceStep(apply, proj, opt)
						}
						appendModifyAggTraceStep(outerPlan, apply, agg, sel, opt)
						return s.reoptimize(p, opt)
					}
					sel.Conditions = originalExpr
					apply.CorCols = extractCorColumnsBySchema(apply.Children()[1], apply.Children()[0].Schema())
				}
			}
			// The conditions below the aggregation may correlate in non-equality
			// form, which the equality pull-up above cannot express as a join
			// key. Pull the aggregate itself above an outer join instead.
			if apply.canPullUpAgg() && agg.IsScalarAgg() {
				np, ok, err := s.pullUpScalarAggWithIndicator(apply, agg, opt)
				if err != nil {
					return nil, planChanged, err
				}
				if ok {
					return np, true, nil
				}
			}
		} else if sort, ok := innerPlan.(*LogicalSort); ok {
			// Since only selection, projection, aggregation and max-one-row
			// get pulled up, a top level sort cannot change the subquery's
			// result.
			innerPlan = sort.Children()[0]
			apply.SetChildren(outerPlan, innerPlan)
			appendRemoveSortTraceStep(sort, opt)
			return s.reoptimize(p, opt)
		} else if join, ok := innerPlan.(*LogicalJoin); ok && join.JoinType == InnerJoin {
			// Correlated conditions on an inner join are conjunctive, so they
			// can be hoisted into a selection above the join and handled by
			// the selection case on the next round.
			corConds, plainEqs, plainLefts, plainRights, plainOthers := splitCorrelatedJoinConds(join)
			if len(corConds) > 0 {
				join.EqualConditions, join.LeftConditions, join.RightConditions, join.OtherConditions =
					plainEqs, plainLefts, plainRights, plainOthers
				sel := LogicalSelection{Conditions: corConds}.Init(apply.SCtx())
				sel.SetChildren(join)
				sel.SetSchema(join.Schema())
				apply.SetChildren(outerPlan, sel)
				appendHoistJoinCondTraceStep(apply, join, sel, opt)
				return s.reoptimize(p, opt)
			}
		}
	}
NoOptimize:
	newChildren := make([]LogicalPlan, 0, len(p.Children()))
	for _, child := range p.Children() {
		np, changed, err := s.optimize(child, opt)
		if err != nil {
			return nil, planChanged, err
		}
		planChanged = planChanged || changed
		newChildren = append(newChildren, np)
	}
	p.SetChildren(newChildren...)
	return p, planChanged, nil
}

// reoptimize re-runs the solver on a node it just rewrote and reports the
// tree as changed.
func (s *decorrelateSolver) reoptimize(p LogicalPlan, opt *LogicalOptimizeOp) (LogicalPlan, bool, error) {
	np, _, err := s.optimize(p, opt)
	return np, true, err
}

// pullUpScalarAggWithIndicator resolves a scalar aggregate over a correlated
// selection whose conditions cannot all become equality join keys. The
// selection's conditions move into an outer join against the outer side, the
// aggregate is pulled above the join grouped by the outer key, and a constant
// indicator column appended below the join masks every aggregate argument
// that would not go null on a null-extended row. Unmatched outer rows then
// see only null arguments, which is exactly the empty group the original
// subquery computed over.
func (s *decorrelateSolver) pullUpScalarAggWithIndicator(apply *LogicalApply, agg *LogicalAggregation, opt *LogicalOptimizeOp) (LogicalPlan, bool, error) {
	outerPlan := apply.Children()[0]
	sel, ok := agg.Children()[0].(*LogicalSelection)
	if !ok {
		return nil, false, nil
	}
	innerCore := sel.Children()[0]
	if len(extractCorColumnsBySchema(innerCore, outerPlan.Schema())) > 0 {
		return nil, false, nil
	}
	joinConds := make([]expression.Expression, 0, len(sel.Conditions))
	for _, cond := range sel.Conditions {
		newCond := cond.Decorrelate(outerPlan.Schema())
		if len(expression.ExtractCorColumns(newCond)) > 0 {
			return nil, false, nil
		}
		joinConds = append(joinConds, newCond)
	}
	// Every column the join conditions mention must resolve against the two
	// join inputs, otherwise the rewrite would orphan a reference.
	visible := expression.ExtractColumnSet(expression.Column2Exprs(outerPlan.Schema().Columns)...)
	visible.InPlaceUnion(expression.ExtractColumnSet(expression.Column2Exprs(innerCore.Schema().Columns)...))
	if !visible.IsSuperSet(expression.ExtractColumnSet(joinConds...)) {
		return nil, false, nil
	}

	// After the outer join a null in the indicator position is the one
	// reliable sign of a null-extended row, since any inner column may be
	// null on a matched row as well.
	indicator := &expression.Column{
		UniqueID: apply.SCtx().AllocPlanColumnID(),
		Index:    innerCore.Schema().Len(),
	}
	proj := LogicalProjection{
		Exprs: append(expression.Column2Exprs(innerCore.Schema().Columns), expression.NewOne()),
	}.Init(apply.SCtx())
	proj.SetChildren(innerCore)
	proj.SetSchema(expression.NewSchema(append(innerCore.Schema().Clone().Columns, indicator)...))

	agg.SetSchema(apply.Schema())
	agg.GroupByItems = expression.Column2Exprs(outerPlan.Schema().Keys[0])
	newAggFuncs := make([]*aggregation.AggFuncDesc, 0, len(outerPlan.Schema().Columns)+len(agg.AggFuncs))
	for _, col := range outerPlan.Schema().Columns {
		first, err := aggregation.NewAggFuncDesc(aggregation.AggFuncFirstRow, []expression.Expression{col}, false)
		if err != nil {
			return nil, false, errors.Trace(err)
		}
		newAggFuncs = append(newAggFuncs, first)
	}
	for _, aggFunc := range agg.AggFuncs {
		newFunc := aggFunc.Clone()
		for i, arg := range newFunc.Args {
			expr := expression.EvaluateExprWithNull(innerCore.Schema(), arg)
			if con, ok := expr.(*expression.Constant); ok && con.Value.IsNull() {
				continue
			}
			// The argument survives a null-extended row, so mask it with the
			// indicator: null on unmatched rows, unchanged on matched ones.
			masked := expression.NewFunctionInternal(expression.Mul, indicator, expression.NewZero())
			newFunc.Args[i] = expression.NewFunctionInternal(expression.Plus, masked, arg)
		}
		newAggFuncs = append(newAggFuncs, newFunc)
	}
	agg.AggFuncs = newAggFuncs

	join := &apply.LogicalJoin
	join.JoinType = LeftOuterJoin
	join.SetSelf(join)
	join.SetTP(plancodec.TypeJoin)
	join.SetChildren(outerPlan, proj)
	join.SetSchema(expression.MergeSchema(outerPlan.Schema(), proj.Schema()))
	join.AttachOnConds(joinConds)
	np, _, err := s.reoptimize(join, opt)
	if err != nil {
		return nil, false, err
	}
	agg.SetChildren(np)
	appendIndicatorAggTraceStep(apply, np, agg, sel, opt)
	return agg, true, nil
}

func (*decorrelateSolver) name() string {
	return "decorrelate"
}

// splitCorrelatedJoinConds separates a join's correlated conditions from the
// plain ones.
func splitCorrelatedJoinConds(join *LogicalJoin) (corConds []expression.Expression,
	eqs []*expression.ScalarFunction, lefts, rights, others []expression.Expression) {
	for _, eq := range join.EqualConditions {
		if len(expression.ExtractCorColumns(eq)) > 0 {
			corConds = append(corConds, eq)
		} else {
			eqs = append(eqs, eq)
		}
	}
	split := func(conds []expression.Expression) (plain []expression.Expression) {
		for _, cond := range conds {
			if len(expression.ExtractCorColumns(cond)) > 0 {
				corConds = append(corConds, cond)
			} else {
				plain = append(plain, cond)
			}
		}
		return plain
	}
	lefts = split(join.LeftConditions)
	rights = split(join.RightConditions)
	others = split(join.OtherConditions)
	return corConds, eqs, lefts, rights, others
}

// findRemainingApply returns the innermost apply operator the solver could
// not eliminate, ignoring applies that opted out of decorrelation.
func findRemainingApply(p LogicalPlan) *LogicalApply {
	for _, child := range p.Children() {
		if la := findRemainingApply(child); la != nil {
			return la
		}
	}
	if la, ok := p.(*LogicalApply); ok && !la.NoDecorrelate {
		return la
	}
	return nil
}

// DecorrelateQuery rewrites a plan containing apply operators into an
// equivalent plan made purely of joins, projections and aggregates. It builds
// the correlation map, returns fast when the plan carries no correlation,
// applies the pattern rules to a fixed point, resolves whatever they left
// with the generic transform and finally verifies that no correlation
// survived. The returned plan keeps the input's output columns and order.
func DecorrelateQuery(ctx *PlanContext, root LogicalPlan) (LogicalPlan, error) {
	cm, err := buildCorelMap(root)
	if err != nil {
		return nil, err
	}
	if !cm.HasCorrelation() {
		return root, nil
	}

	root, err = removeCorrelationViaRules(root, cm, ctx.Trace)
	if err != nil {
		return nil, err
	}
	logutil.BgLogger().Debug("plan after removing correlation via rules",
		zap.String("plan", ToString(root)))

	s := &decorrelateSolver{}
	for {
		newRoot, changed, err := s.optimize(root, ctx.Trace)
		if err != nil {
			return nil, err
		}
		root = newRoot
		if !changed {
			break
		}
	}
	logutil.BgLogger().Debug("plan after generic decorrelation",
		zap.String("plan", ToString(root)))

	if la := findRemainingApply(root); la != nil {
		return nil, newUnsupportedPatternError(la)
	}
	if err := VerifyNoCorrelation(root); err != nil {
		return nil, err
	}
	return root, nil
}

func appendApplySimplifiedTraceStep(p *LogicalApply, j *LogicalJoin, opt *LogicalOptimizeOp) {
	action := func() string {
		return fmt.Sprintf("%v_%v simplified into %v_%v", plancodec.TypeApply, p.ID(), plancodec.TypeJoin, j.ID())
	}
	reason := func() string {
		return fmt.Sprintf("%v_%v hasn't any correlated column, thus the inner plan is non-correlated", p.TP(), p.ID())
	}
	opt.AppendStepToCurrent(p.ID(), p.TP(), reason, action)
}

func appendRemoveSelectionTraceStep(p LogicalPlan, s *LogicalSelection, opt *LogicalOptimizeOp) {
	action := func() string {
		return fmt.Sprintf("%v_%v removed from plan tree", s.TP(), s.ID())
	}
	reason := func() string {
		return fmt.Sprintf("%v_%v's conditions have been pushed into %v_%v", s.TP(), s.ID(), p.TP(), p.ID())
	}
	opt.AppendStepToCurrent(s.ID(), s.TP(), reason, action)
}

func appendRemoveMaxOneRowTraceStep(m *LogicalMaxOneRow, opt *LogicalOptimizeOp) {
	action := func() string {
		return fmt.Sprintf("%v_%v removed from plan tree", m.TP(), m.ID())
	}
	reason := func() string {
		return ""
	}
	opt.AppendStepToCurrent(m.ID(), m.TP(), reason, action)
}

func appendRemoveLimitTraceStep(limit *LogicalLimit, opt *LogicalOptimizeOp) {
	action := func() string {
		return fmt.Sprintf("%v_%v removed from plan tree", limit.TP(), limit.ID())
	}
	reason := func() string {
		return fmt.Sprintf("%v_%v filters nothing the apply's semantics care about", limit.TP(), limit.ID())
	}
	opt.AppendStepToCurrent(limit.ID(), limit.TP(), reason, action)
}

func appendEmptyLimitTraceStep(limit *LogicalLimit, v *LogicalValues, opt *LogicalOptimizeOp) {
	action := func() string {
		return fmt.Sprintf("%v_%v replaced by empty %v_%v", limit.TP(), limit.ID(), v.TP(), v.ID())
	}
	reason := func() string {
		return fmt.Sprintf("%v_%v's count is zero, its result is always empty", limit.TP(), limit.ID())
	}
	opt.AppendStepToCurrent(limit.ID(), limit.TP(), reason, action)
}

func appendRemoveProjTraceStep(p *LogicalApply, proj *LogicalProjection, opt *LogicalOptimizeOp) {
	action := func() string {
		return fmt.Sprintf("%v_%v removed from plan tree", proj.TP(), proj.ID())
	}
	reason := func() string {
		return fmt.Sprintf("%v_%v's columns all substituted into %v_%v", proj.TP(), proj.ID(), p.TP(), p.ID())
	}
	opt.AppendStepToCurrent(proj.ID(), proj.TP(), reason, action)
}

func appendMoveProjTraceStep(p *LogicalApply, np LogicalPlan, proj *LogicalProjection, opt *LogicalOptimizeOp) {
	action := func() string {
		return fmt.Sprintf("%v_%v is moved as %v_%v's parent", proj.TP(), proj.ID(), np.TP(), np.ID())
	}
	reason := func() string {
		return fmt.Sprintf("%v_%v's join type is %v, not semi join", p.TP(), p.ID(), p.JoinType.String())
	}
	opt.AppendStepToCurrent(proj.ID(), proj.TP(), reason, action)
}

func appendRemoveSortTraceStep(sort *LogicalSort, opt *LogicalOptimizeOp) {
	action := func() string {
		return fmt.Sprintf("%v_%v removed from plan tree", sort.TP(), sort.ID())
	}
	reason := func() string {
		return ""
	}
	opt.AppendStepToCurrent(sort.ID(), sort.TP(), reason, action)
}

func appendPullUpAggTraceStep(p *LogicalApply, np LogicalPlan, agg *LogicalAggregation, opt *LogicalOptimizeOp) {
	action := func() string {
		return fmt.Sprintf("%v_%v pulled up as %v_%v's parent, and %v_%v's join type becomes %v",
			agg.TP(), agg.ID(), np.TP(), np.ID(), p.TP(), p.ID(), p.JoinType.String())
	}
	reason := func() string {
		return fmt.Sprintf("%v_%v's functions haven't any group by items and %v_%v hasn't any conditions",
			agg.TP(), agg.ID(), p.TP(), p.ID())
	}
	opt.AppendStepToCurrent(agg.ID(), agg.TP(), reason, action)
}

func appendAddProjTraceStep(p *LogicalApply, proj *LogicalProjection, opt *LogicalOptimizeOp) {
	action := func() string {
		return fmt.Sprintf("%v_%v is added as %v_%v's parent", proj.TP(), proj.ID(), p.TP(), p.ID())
	}
	reason := func() string {
		return ""
	}
	opt.AppendStepToCurrent(proj.ID(), proj.TP(), reason, action)
}

func appendModifyAggTraceStep(outerPlan LogicalPlan, p *LogicalApply, agg *LogicalAggregation, sel *LogicalSelection, opt *LogicalOptimizeOp) {
	action := func() string {
		return fmt.Sprintf("%v_%v's equal conditions pulled up as %v_%v's join key", sel.TP(), sel.ID(), p.TP(), p.ID())
	}
	reason := func() string {
		return fmt.Sprintf("the conditions are correlated to %v_%v only", outerPlan.TP(), outerPlan.ID())
	}
	opt.AppendStepToCurrent(agg.ID(), agg.TP(), reason, action)
}

func appendIndicatorAggTraceStep(p *LogicalApply, np LogicalPlan, agg *LogicalAggregation, sel *LogicalSelection, opt *LogicalOptimizeOp) {
	action := func() string {
		return fmt.Sprintf("%v_%v pulled up as %v_%v's parent, %v_%v's conditions became join conditions and an indicator column masks the aggregate arguments",
			agg.TP(), agg.ID(), np.TP(), np.ID(), sel.TP(), sel.ID())
	}
	reason := func() string {
		return fmt.Sprintf("%v_%v's correlated conditions are not all plain equalities", sel.TP(), sel.ID())
	}
	opt.AppendStepToCurrent(agg.ID(), agg.TP(), reason, action)
}

func appendHoistJoinCondTraceStep(p *LogicalApply, join *LogicalJoin, sel *LogicalSelection, opt *LogicalOptimizeOp) {
	action := func() string {
		return fmt.Sprintf("%v_%v's correlated conditions hoisted into new %v_%v", join.TP(), join.ID(), sel.TP(), sel.ID())
	}
	reason := func() string {
		return fmt.Sprintf("%v_%v is an inner join below %v_%v, its conditions are conjunctive", join.TP(), join.ID(), p.TP(), p.ID())
	}
	opt.AppendStepToCurrent(join.ID(), join.TP(), reason, action)
}
