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
	"strings"
)

// ToString explains a plan as a compact single line, child before parent,
// joined by "->". Multi-child operators wrap their inputs in braces. The dump
// feeds error payloads, trace steps and tests; it is not a display layer.
func ToString(p LogicalPlan) string {
	strs, _ := toString(p, []string{}, []int{})
	return strings.Join(strs, "->")
}

func toString(in LogicalPlan, strs []string, idxs []int) ([]string, []int) {
	if len(in.Children()) > 1 {
		idxs = append(idxs, len(strs))
	}
	for _, c := range in.Children() {
		strs, idxs = toString(c, strs, idxs)
	}

	var str string
	switch x := in.(type) {
	case *DataSource:
		str = fmt.Sprintf("DataSource(%s)", x.TableName)
	case *LogicalValues:
		str = fmt.Sprintf("Values(rows:%d)", len(x.Tuples))
	case *LogicalSelection:
		conds := make([]string, 0, len(x.Conditions))
		for _, cond := range x.Conditions {
			conds = append(conds, cond.String())
		}
		str = fmt.Sprintf("Sel(%s)", strings.Join(conds, ","))
	case *LogicalProjection:
		exprs := make([]string, 0, len(x.Exprs))
		for _, expr := range x.Exprs {
			exprs = append(exprs, expr.String())
		}
		str = fmt.Sprintf("Projection(%s)", strings.Join(exprs, ","))
	case *LogicalSort:
		str = "Sort"
	case *LogicalLimit:
		str = fmt.Sprintf("Limit(%d,%d)", x.Offset, x.Count)
	case *LogicalMaxOneRow:
		str = "MaxOneRow"
	case *LogicalAggregation:
		funcs := make([]string, 0, len(x.AggFuncs))
		for _, f := range x.AggFuncs {
			funcs = append(funcs, f.String())
		}
		str = fmt.Sprintf("Aggr(%s)", strings.Join(funcs, ","))
		if len(x.GroupByItems) > 0 {
			items := make([]string, 0, len(x.GroupByItems))
			for _, item := range x.GroupByItems {
				items = append(items, item.String())
			}
			str += fmt.Sprintf(" groupBy(%s)", strings.Join(items, ","))
		}
	case *LogicalApply:
		last := len(idxs) - 1
		idx := idxs[last]
		children := strs[idx:]
		strs = strs[:idx]
		idxs = idxs[:last]
		str = "Apply{" + strings.Join(children, "->") + "}"
		if x.CorrID != 0 {
			str += fmt.Sprintf("(cor%d)", x.CorrID)
		}
	case *LogicalJoin:
		last := len(idxs) - 1
		idx := idxs[last]
		children := strs[idx:]
		strs = strs[:idx]
		idxs = idxs[:last]
		str = "Join{" + strings.Join(children, "->") + "}"
		for _, eq := range x.EqualConditions {
			str += fmt.Sprintf("(%s)", eq.String())
		}
		for _, cond := range x.OtherConditions {
			str += fmt.Sprintf("(%s)", cond.String())
		}
	default:
		str = in.TP()
	}
	strs = append(strs, str)
	return strs, idxs
}
