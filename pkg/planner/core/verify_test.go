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
	"github.com/stretchr/testify/require"
)

func TestVerifyCleanPlan(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a", "b")
	sScan := b.scan("s", false, "x")
	join := b.join(InnerJoin, tScan, sScan)
	join.AttachOnConds([]expression.Expression{
		eq(tScan.Schema().Columns[0], sScan.Schema().Columns[0]),
	})
	require.NoError(t, VerifyNoCorrelation(join))
}

func TestVerifyFindsRemainingApply(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a")
	sScan := b.scan("s", false, "x")
	id := b.ctx.AllocCorrelationID()
	apply := b.apply(InnerJoin, id, tScan, sScan)

	err := VerifyNoCorrelation(apply)
	require.Error(t, err)
	var cre *CorrelationRemainingError
	require.ErrorAs(t, err, &cre)
	require.Contains(t, cre.NodeDump, "Apply")
}

func TestVerifyFindsStrayCorrelatedColumn(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a")
	colA := tScan.Schema().Columns[0]
	sel := b.selection(tScan, eq(colA, corRef(3, colA)))

	err := VerifyNoCorrelation(sel)
	require.Error(t, err)
	var cre *CorrelationRemainingError
	require.ErrorAs(t, err, &cre)
}

func TestVerifyToleratesOptedOutApply(t *testing.T) {
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a")
	sScan := b.scan("s", false, "x")
	colA := tScan.Schema().Columns[0]
	colX := sScan.Schema().Columns[0]
	id := b.ctx.AllocCorrelationID()
	sel := b.selection(sScan, eq(colX, corRef(id, colA)))
	apply := b.apply(InnerJoin, id, tScan, sel)
	apply.NoDecorrelate = true

	require.NoError(t, VerifyNoCorrelation(apply))
}

func TestVerifyRejectsReferenceOutsideOptedOutScope(t *testing.T) {
	// A reference to an opted-out identifier is only legal under that apply.
	b := newPlanBuilder()
	tScan := b.scan("t", false, "a")
	colA := tScan.Schema().Columns[0]
	sel := b.selection(tScan, eq(colA, corRef(9, colA)))
	sScan := b.scan("s", false, "x")
	optedOut := b.apply(InnerJoin, 9, sel, sScan)
	optedOut.NoDecorrelate = true

	err := VerifyNoCorrelation(optedOut)
	require.Error(t, err)
	var cre *CorrelationRemainingError
	require.ErrorAs(t, err, &cre)
}
