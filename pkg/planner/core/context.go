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
)

// PlanContext carries the per-compilation state of one plan: the identifier
// allocators and the optimizer trace sink. Every concurrent compilation owns
// its own context; nothing in this package is process-wide.
type PlanContext struct {
	planID   int
	columnID int64
	corrID   int64

	// Trace collects human-readable rewrite steps when non-nil.
	Trace *LogicalOptimizeOp
}

// NewPlanContext creates a fresh context for one compilation.
func NewPlanContext() *PlanContext {
	return &PlanContext{}
}

// AllocPlanID allocates a new unique operator ID.
func (ctx *PlanContext) AllocPlanID() int {
	ctx.planID++
	return ctx.planID
}

// AllocPlanColumnID allocates a new unique column ID.
func (ctx *PlanContext) AllocPlanColumnID() int64 {
	ctx.columnID++
	return ctx.columnID
}

// AllocCorrelationID allocates a new correlation identifier for an apply
// operator being built.
func (ctx *PlanContext) AllocCorrelationID() expression.CorrelationID {
	ctx.corrID++
	return expression.CorrelationID(ctx.corrID)
}
