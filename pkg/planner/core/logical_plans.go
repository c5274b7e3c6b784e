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
	"github.com/Stars1233/relopt/pkg/expression"
	"github.com/Stars1233/relopt/pkg/expression/aggregation"
	"github.com/Stars1233/relopt/pkg/util/plancodec"
)

var (
	_ LogicalPlan = &LogicalJoin{}
	_ LogicalPlan = &LogicalAggregation{}
	_ LogicalPlan = &LogicalProjection{}
	_ LogicalPlan = &LogicalSelection{}
	_ LogicalPlan = &LogicalApply{}
	_ LogicalPlan = &LogicalMaxOneRow{}
	_ LogicalPlan = &LogicalValues{}
	_ LogicalPlan = &LogicalSort{}
	_ LogicalPlan = &LogicalLimit{}
	_ LogicalPlan = &DataSource{}
)

// LogicalPlan is a tree of logical operators. The decorrelation engine only
// needs shape access: operator kind, children, output schema and the scalar
// expressions each operator carries.
type LogicalPlan interface {
	// ID gets the ID within one compilation.
	ID() int
	// TP gets the plan type.
	TP() string
	// SCtx returns the per-compilation context the plan was built with.
	SCtx() *PlanContext
	// Children gets the children of the plan.
	Children() []LogicalPlan
	// SetChildren sets the children for the plan.
	SetChildren(...LogicalPlan)
	// Schema gets the output schema.
	Schema() *expression.Schema
	// SetSchema sets the output schema.
	SetSchema(*expression.Schema)
	// OwnedExprs returns the scalar expressions carried by this operator
	// itself, excluding its children's.
	OwnedExprs() []expression.Expression
	// ExtractCorrelatedCols extracts the correlated columns appearing in this
	// operator's own expressions.
	ExtractCorrelatedCols() []*expression.CorrelatedColumn
	// MaxOneRow reports whether the operator is statically known to return at
	// most one row.
	MaxOneRow() bool
}

type baseLogicalPlan struct {
	id       int
	tp       string
	ctx      *PlanContext
	self     LogicalPlan
	children []LogicalPlan
	schema   *expression.Schema
}

func newBaseLogicalPlan(ctx *PlanContext, tp string, self LogicalPlan) baseLogicalPlan {
	return baseLogicalPlan{id: ctx.AllocPlanID(), tp: tp, ctx: ctx, self: self}
}

// ID implements LogicalPlan interface.
func (p *baseLogicalPlan) ID() int {
	return p.id
}

// TP implements LogicalPlan interface.
func (p *baseLogicalPlan) TP() string {
	return p.tp
}

// SetTP resets the plan type, used when an apply degenerates into a join.
func (p *baseLogicalPlan) SetTP(tp string) {
	p.tp = tp
}

// SCtx implements LogicalPlan interface.
func (p *baseLogicalPlan) SCtx() *PlanContext {
	return p.ctx
}

// SetSelf resets the self pointer after embedding tricks.
func (p *baseLogicalPlan) SetSelf(self LogicalPlan) {
	p.self = self
}

// Children implements LogicalPlan interface.
func (p *baseLogicalPlan) Children() []LogicalPlan {
	return p.children
}

// SetChildren implements LogicalPlan interface.
func (p *baseLogicalPlan) SetChildren(children ...LogicalPlan) {
	p.children = children
}

// Schema implements LogicalPlan interface.
func (p *baseLogicalPlan) Schema() *expression.Schema {
	return p.schema
}

// SetSchema implements LogicalPlan interface.
func (p *baseLogicalPlan) SetSchema(schema *expression.Schema) {
	p.schema = schema
}

// OwnedExprs implements LogicalPlan interface.
func (*baseLogicalPlan) OwnedExprs() []expression.Expression {
	return nil
}

// ExtractCorrelatedCols implements LogicalPlan interface.
func (p *baseLogicalPlan) ExtractCorrelatedCols() []*expression.CorrelatedColumn {
	var corCols []*expression.CorrelatedColumn
	for _, expr := range p.self.OwnedExprs() {
		corCols = append(corCols, expression.ExtractCorColumns(expr)...)
	}
	return corCols
}

// MaxOneRow implements LogicalPlan interface.
func (*baseLogicalPlan) MaxOneRow() bool {
	return false
}

// DataSource represents a table scan. The engine treats it as an opaque leaf
// with a schema; row contents belong to the executor.
type DataSource struct {
	baseLogicalPlan

	TableName string
}

// Init initializes DataSource.
func (ds DataSource) Init(ctx *PlanContext) *DataSource {
	ds.baseLogicalPlan = newBaseLogicalPlan(ctx, plancodec.TypeDataSource, &ds)
	return &ds
}

// LogicalValues is an inline relation made of constant tuples.
type LogicalValues struct {
	baseLogicalPlan

	Tuples [][]*expression.Constant
}

// Init initializes LogicalValues.
func (v LogicalValues) Init(ctx *PlanContext) *LogicalValues {
	v.baseLogicalPlan = newBaseLogicalPlan(ctx, plancodec.TypeValues, &v)
	return &v
}

// MaxOneRow implements LogicalPlan interface.
func (v *LogicalValues) MaxOneRow() bool {
	return len(v.Tuples) <= 1
}

// LogicalSelection represents a where or having predicate, the conjunction of
// Conditions.
type LogicalSelection struct {
	baseLogicalPlan

	Conditions []expression.Expression
}

// Init initializes LogicalSelection.
func (p LogicalSelection) Init(ctx *PlanContext) *LogicalSelection {
	p.baseLogicalPlan = newBaseLogicalPlan(ctx, plancodec.TypeSel, &p)
	return &p
}

// OwnedExprs implements LogicalPlan interface.
func (p *LogicalSelection) OwnedExprs() []expression.Expression {
	return p.Conditions
}

// MaxOneRow implements LogicalPlan interface.
func (p *LogicalSelection) MaxOneRow() bool {
	return p.children[0].MaxOneRow()
}

// LogicalProjection represents a select fields plan.
type LogicalProjection struct {
	baseLogicalPlan

	Exprs []expression.Expression
}

// Init initializes LogicalProjection.
func (p LogicalProjection) Init(ctx *PlanContext) *LogicalProjection {
	p.baseLogicalPlan = newBaseLogicalPlan(ctx, plancodec.TypeProj, &p)
	return &p
}

// OwnedExprs implements LogicalPlan interface.
func (p *LogicalProjection) OwnedExprs() []expression.Expression {
	return p.Exprs
}

// MaxOneRow implements LogicalPlan interface.
func (p *LogicalProjection) MaxOneRow() bool {
	return p.children[0].MaxOneRow()
}

// LogicalSort stands for the order by plan.
type LogicalSort struct {
	baseLogicalPlan

	ByItems []expression.Expression
}

// Init initializes LogicalSort.
func (p LogicalSort) Init(ctx *PlanContext) *LogicalSort {
	p.baseLogicalPlan = newBaseLogicalPlan(ctx, plancodec.TypeSort, &p)
	return &p
}

// OwnedExprs implements LogicalPlan interface.
func (p *LogicalSort) OwnedExprs() []expression.Expression {
	return p.ByItems
}

// MaxOneRow implements LogicalPlan interface.
func (p *LogicalSort) MaxOneRow() bool {
	return p.children[0].MaxOneRow()
}

// LogicalLimit represents offset and limit plan.
type LogicalLimit struct {
	baseLogicalPlan

	Offset uint64
	Count  uint64
}

// Init initializes LogicalLimit.
func (p LogicalLimit) Init(ctx *PlanContext) *LogicalLimit {
	p.baseLogicalPlan = newBaseLogicalPlan(ctx, plancodec.TypeLimit, &p)
	return &p
}

// MaxOneRow implements LogicalPlan interface.
func (p *LogicalLimit) MaxOneRow() bool {
	return p.Count <= 1 || p.children[0].MaxOneRow()
}

// LogicalMaxOneRow checks if a query returns no more than one row.
type LogicalMaxOneRow struct {
	baseLogicalPlan
}

// Init initializes LogicalMaxOneRow.
func (p LogicalMaxOneRow) Init(ctx *PlanContext) *LogicalMaxOneRow {
	p.baseLogicalPlan = newBaseLogicalPlan(ctx, plancodec.TypeMaxOneRow, &p)
	return &p
}

// MaxOneRow implements LogicalPlan interface.
func (*LogicalMaxOneRow) MaxOneRow() bool {
	return true
}

// LogicalAggregation represents an aggregate plan.
type LogicalAggregation struct {
	baseLogicalPlan

	AggFuncs     []*aggregation.AggFuncDesc
	GroupByItems []expression.Expression
}

// Init initializes LogicalAggregation.
func (la LogicalAggregation) Init(ctx *PlanContext) *LogicalAggregation {
	la.baseLogicalPlan = newBaseLogicalPlan(ctx, plancodec.TypeAgg, &la)
	return &la
}

// OwnedExprs implements LogicalPlan interface.
func (la *LogicalAggregation) OwnedExprs() []expression.Expression {
	exprs := make([]expression.Expression, 0, len(la.GroupByItems)+len(la.AggFuncs))
	exprs = append(exprs, la.GroupByItems...)
	for _, f := range la.AggFuncs {
		exprs = append(exprs, f.Args...)
	}
	return exprs
}

// MaxOneRow implements LogicalPlan interface. An aggregate without group keys
// always returns exactly one row.
func (la *LogicalAggregation) MaxOneRow() bool {
	return len(la.GroupByItems) == 0
}

// GetGroupByCols returns the group-by items that are plain columns.
func (la *LogicalAggregation) GetGroupByCols() []*expression.Column {
	cols := make([]*expression.Column, 0, len(la.GroupByItems))
	for _, item := range la.GroupByItems {
		if col, ok := item.(*expression.Column); ok {
			cols = append(cols, col)
		}
	}
	return cols
}

// IsScalarAgg reports whether the aggregation has no group keys.
func (la *LogicalAggregation) IsScalarAgg() bool {
	return len(la.GroupByItems) == 0
}

// JoinType contains CrossJoin, InnerJoin, LeftOuterJoin, RightOuterJoin,
// SemiJoin, AntiSemiJoin.
type JoinType int

const (
	// InnerJoin means inner join.
	InnerJoin JoinType = iota
	// LeftOuterJoin means left join.
	LeftOuterJoin
	// RightOuterJoin means right join.
	RightOuterJoin
	// SemiJoin means if row a in table A matches some rows in B, just output a.
	SemiJoin
	// AntiSemiJoin means if row a in table A does not match any row in B, then output a.
	AntiSemiJoin
	// LeftOuterSemiJoin means if row a in table A matches some rows in B, output (a, true), otherwise, output (a, false).
	LeftOuterSemiJoin
	// AntiLeftOuterSemiJoin means if row a in table A matches some rows in B, output (a, false), otherwise, output (a, true).
	AntiLeftOuterSemiJoin
)

// IsSemiJoin reports whether the join keeps only the outer side's columns.
func (tp JoinType) IsSemiJoin() bool {
	switch tp {
	case SemiJoin, AntiSemiJoin, LeftOuterSemiJoin, AntiLeftOuterSemiJoin:
		return true
	}
	return false
}

// String implements fmt.Stringer interface.
func (tp JoinType) String() string {
	switch tp {
	case InnerJoin:
		return "inner join"
	case LeftOuterJoin:
		return "left outer join"
	case RightOuterJoin:
		return "right outer join"
	case SemiJoin:
		return "semi join"
	case AntiSemiJoin:
		return "anti semi join"
	case LeftOuterSemiJoin:
		return "left outer semi join"
	case AntiLeftOuterSemiJoin:
		return "anti left outer semi join"
	}
	return "unsupported join type"
}

// LogicalJoin is the logical join plan.
type LogicalJoin struct {
	baseLogicalPlan

	JoinType JoinType

	EqualConditions []*expression.ScalarFunction
	LeftConditions  []expression.Expression
	RightConditions []expression.Expression
	OtherConditions []expression.Expression
}

// Init initializes LogicalJoin.
func (p LogicalJoin) Init(ctx *PlanContext) *LogicalJoin {
	p.baseLogicalPlan = newBaseLogicalPlan(ctx, plancodec.TypeJoin, &p)
	return &p
}

// OwnedExprs implements LogicalPlan interface.
func (p *LogicalJoin) OwnedExprs() []expression.Expression {
	exprs := make([]expression.Expression, 0,
		len(p.EqualConditions)+len(p.LeftConditions)+len(p.RightConditions)+len(p.OtherConditions))
	exprs = append(exprs, expression.ScalarFuncs2Exprs(p.EqualConditions)...)
	exprs = append(exprs, p.LeftConditions...)
	exprs = append(exprs, p.RightConditions...)
	exprs = append(exprs, p.OtherConditions...)
	return exprs
}

// AttachOnConds extracts on conditions for the join and classifies them into
// the four condition buckets.
func (p *LogicalJoin) AttachOnConds(onConds []expression.Expression) {
	lSchema := p.children[0].Schema()
	rSchema := p.children[1].Schema()
	for _, cond := range onConds {
		if sf, ok := cond.(*expression.ScalarFunction); ok && sf.FuncName == expression.EQ {
			lCol, lOK := sf.GetArgs()[0].(*expression.Column)
			rCol, rOK := sf.GetArgs()[1].(*expression.Column)
			if lOK && rOK {
				if lSchema.Contains(lCol) && rSchema.Contains(rCol) {
					p.EqualConditions = append(p.EqualConditions, sf)
					continue
				}
				if lSchema.Contains(rCol) && rSchema.Contains(lCol) {
					// Normalize so the left argument always comes from the
					// join's left child.
					newSf := expression.NewFunctionInternal(expression.EQ, rCol, lCol).(*expression.ScalarFunction)
					p.EqualConditions = append(p.EqualConditions, newSf)
					continue
				}
			}
		}
		cols := expression.ExtractColumns(cond)
		fromLeft, fromRight := false, false
		for _, col := range cols {
			if lSchema.Contains(col) {
				fromLeft = true
			}
			if rSchema.Contains(col) {
				fromRight = true
			}
		}
		switch {
		case fromLeft && !fromRight:
			p.LeftConditions = append(p.LeftConditions, cond)
		case fromRight && !fromLeft:
			p.RightConditions = append(p.RightConditions, cond)
		default:
			p.OtherConditions = append(p.OtherConditions, cond)
		}
	}
}

// LogicalApply gets one row from outer executor and gets one row from inner
// executor according to outer row; it pairs each outer row with the inner
// subtree evaluated against that row. CorrID names the outer row for the
// correlated columns in the inner subtree.
type LogicalApply struct {
	LogicalJoin

	CorrID  expression.CorrelationID
	CorCols []*expression.CorrelatedColumn

	// NoDecorrelate is an opt-out hint: the driver leaves this apply alone
	// and the host keeps apply execution for it.
	NoDecorrelate bool
}

// Init initializes LogicalApply.
func (la LogicalApply) Init(ctx *PlanContext) *LogicalApply {
	la.baseLogicalPlan = newBaseLogicalPlan(ctx, plancodec.TypeApply, &la)
	return &la
}

// ExtractCorrelatedCols implements LogicalPlan interface. The correlated
// columns of the inner subtree that belong to this apply are not "owned" by
// the apply itself, so only condition expressions are scanned here.
func (la *LogicalApply) ExtractCorrelatedCols() []*expression.CorrelatedColumn {
	return la.LogicalJoin.ExtractCorrelatedCols()
}

// Decorrelate rewrites all of the apply's own conditions against the outer
// schema so references into it become ordinary columns.
func (la *LogicalApply) Decorrelate(schema *expression.Schema) {
	for i, cond := range la.LeftConditions {
		la.LeftConditions[i] = cond.Decorrelate(schema)
	}
	for i, cond := range la.RightConditions {
		la.RightConditions[i] = cond.Decorrelate(schema)
	}
	for i, cond := range la.OtherConditions {
		la.OtherConditions[i] = cond.Decorrelate(schema)
	}
	for i, cond := range la.EqualConditions {
		la.EqualConditions[i] = cond.Decorrelate(schema).(*expression.ScalarFunction)
	}
}

// extractCorColumnsBySchema returns the correlated columns in the whole
// subtree of p whose referenced column belongs to schema.
func extractCorColumnsBySchema(p LogicalPlan, schema *expression.Schema) []*expression.CorrelatedColumn {
	var corCols []*expression.CorrelatedColumn
	for _, corCol := range p.ExtractCorrelatedCols() {
		if schema.Contains(&corCol.Column) {
			corCols = append(corCols, corCol)
		}
	}
	for _, child := range p.Children() {
		corCols = append(corCols, extractCorColumnsBySchema(child, schema)...)
	}
	return corCols
}
