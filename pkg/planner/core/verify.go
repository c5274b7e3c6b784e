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

// VerifyNoCorrelation checks that no apply operator and no correlated column
// survives anywhere in the plan. It runs after every driver pass in every
// build, because a silently-incorrect decorrelation produces wrong query
// results rather than a crash. An apply carrying the NoDecorrelate opt-out is
// tolerated, together with references to its identifier.
func VerifyNoCorrelation(root LogicalPlan) error {
	return verifyNoCorrelation(root, make(map[expression.CorrelationID]struct{}))
}

func verifyNoCorrelation(p LogicalPlan, allowed map[expression.CorrelationID]struct{}) error {
	if apply, ok := p.(*LogicalApply); ok {
		if !apply.NoDecorrelate {
			return newCorrelationRemainingError(p)
		}
		// The opted-out identifier is in scope for the apply's own
		// conditions and its inner subtree, never the outer one.
		allowed[apply.CorrID] = struct{}{}
		defer delete(allowed, apply.CorrID)
		if err := verifyExprs(p, allowed); err != nil {
			return err
		}
		delete(allowed, apply.CorrID)
		if err := verifyNoCorrelation(apply.Children()[0], allowed); err != nil {
			return err
		}
		allowed[apply.CorrID] = struct{}{}
		return verifyNoCorrelation(apply.Children()[1], allowed)
	}
	if err := verifyExprs(p, allowed); err != nil {
		return err
	}
	for _, child := range p.Children() {
		if err := verifyNoCorrelation(child, allowed); err != nil {
			return err
		}
	}
	return nil
}

func verifyExprs(p LogicalPlan, allowed map[expression.CorrelationID]struct{}) error {
	for _, expr := range p.OwnedExprs() {
		for _, corCol := range expression.ExtractCorColumns(expr) {
			if _, ok := allowed[corCol.CorrID]; !ok {
				return newCorrelationRemainingError(p)
			}
		}
	}
	return nil
}
