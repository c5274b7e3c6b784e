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
	"github.com/pingcap/errors"
)

// The three failure kinds of the engine are all compiler-internal: well-formed
// correlated SQL can never trigger them. They abort the one compilation with
// the offending subtree attached and are never retried.

// MapConsistencyError reports a correlated column whose identifier has no
// live defining apply above it. It indicates a bug in upstream plan
// construction, not a runtime condition.
type MapConsistencyError struct {
	CorrID  expression.CorrelationID
	RefDump string
}

// Error implements error interface.
func (e *MapConsistencyError) Error() string {
	return fmt.Sprintf("correlated column %s resolves to no live apply operator", e.RefDump)
}

func newMapConsistencyError(corCol *expression.CorrelatedColumn) error {
	return errors.AddStack(&MapConsistencyError{CorrID: corCol.CorrID, RefDump: corCol.String()})
}

// UnsupportedPatternError reports an operator kind the generic transform does
// not know how to push correlation through.
type UnsupportedPatternError struct {
	NodeDump string
}

// Error implements error interface.
func (e *UnsupportedPatternError) Error() string {
	return fmt.Sprintf("cannot push correlation through plan:\n%s", e.NodeDump)
}

func newUnsupportedPatternError(p LogicalPlan) error {
	return errors.AddStack(&UnsupportedPatternError{NodeDump: ToString(p)})
}

// CorrelationRemainingError reports that verification found a surviving apply
// operator or correlated column after a full driver pass. It signals a bug in
// a rewrite rule; proceeding would silently produce a wrong query plan.
type CorrelationRemainingError struct {
	NodeDump string
}

// Error implements error interface.
func (e *CorrelationRemainingError) Error() string {
	return fmt.Sprintf("found correlation in plan:\n%s", e.NodeDump)
}

func newCorrelationRemainingError(p LogicalPlan) error {
	return errors.AddStack(&CorrelationRemainingError{NodeDump: ToString(p)})
}
