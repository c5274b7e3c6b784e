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

import "fmt"

// TraceStep records one rewrite applied during logical optimization.
type TraceStep struct {
	ID     int
	TP     string
	Action string
	Reason string
}

// LogicalOptimizeOp accumulates the rewrite steps of one optimization run.
// It is a debug aid of the surrounding compiler, never a contract of the
// rewrite result.
type LogicalOptimizeOp struct {
	steps []TraceStep
}

// AppendStepToCurrent appends a trace step. The action and reason are built
// lazily so tracing stays free when no sink is installed.
func (op *LogicalOptimizeOp) AppendStepToCurrent(id int, tp string, reason, action func() string) {
	if op == nil {
		return
	}
	op.steps = append(op.steps, TraceStep{ID: id, TP: tp, Action: action(), Reason: reason()})
}

// Steps returns the recorded steps in application order.
func (op *LogicalOptimizeOp) Steps() []TraceStep {
	if op == nil {
		return nil
	}
	return op.steps
}

// String implements fmt.Stringer interface.
func (op *LogicalOptimizeOp) String() string {
	if op == nil || len(op.steps) == 0 {
		return "<no steps>"
	}
	s := ""
	for i, step := range op.steps {
		if i > 0 {
			s += "\n"
		}
		s += fmt.Sprintf("%s_%d: %s (%s)", step.TP, step.ID, step.Action, step.Reason)
	}
	return s
}
