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
	"github.com/bits-and-blooms/bitset"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
)

// CorRef is one correlated reference: the identifier it reads and the field
// offset into the defining apply's outer row.
type CorRef struct {
	CorrID expression.CorrelationID
	Field  int
}

// CorelMap is the bidirectional index between correlation identifiers and the
// plan positions that define and consume them. It is built fresh for each
// top-level decorrelation pass; pattern rules keep it consistent while they
// rewrite, so the driver can keep scanning without a rebuild.
type CorelMap struct {
	// mapRefPlanToCorRef records, per consuming operator, the references its
	// own expressions make.
	mapRefPlanToCorRef map[LogicalPlan][]CorRef
	// mapCorToCorPlan maps the live identifiers to their defining apply, in
	// ascending identifier order for deterministic scans.
	mapCorToCorPlan *treemap.Map
	// refFields tracks which outer field offsets each identifier reads.
	refFields map[expression.CorrelationID]*bitset.BitSet
}

// buildCorelMap walks the tree once and indexes every apply operator and
// every correlated reference. A reference whose identifier no ancestor apply
// registered is a hard error.
func buildCorelMap(root LogicalPlan) (*CorelMap, error) {
	cm := &CorelMap{
		mapRefPlanToCorRef: make(map[LogicalPlan][]CorRef),
		mapCorToCorPlan:    treemap.NewWith(utils.Int64Comparator),
		refFields:          make(map[expression.CorrelationID]*bitset.BitSet),
	}
	live := make(map[expression.CorrelationID]*LogicalApply)
	if err := cm.collect(root, live); err != nil {
		return nil, err
	}
	return cm, nil
}

func (cm *CorelMap) collect(p LogicalPlan, live map[expression.CorrelationID]*LogicalApply) error {
	la, isApply := p.(*LogicalApply)
	if isApply {
		// The apply's own conditions may already reference its identifier, so
		// it goes live before this node's expressions are scanned.
		live[la.CorrID] = la
		cm.mapCorToCorPlan.Put(int64(la.CorrID), la)
		defer func() {
			delete(live, la.CorrID)
		}()
	}
	for _, corCol := range p.ExtractCorrelatedCols() {
		if err := cm.record(p, corCol, live); err != nil {
			return err
		}
	}
	if isApply {
		// The identifier is only in scope on the inner side.
		if err := cm.collectOuter(la.Children()[0], live, la.CorrID); err != nil {
			return err
		}
		return cm.collect(la.Children()[1], live)
	}
	for _, child := range p.Children() {
		if err := cm.collect(child, live); err != nil {
			return err
		}
	}
	return nil
}

// collectOuter walks an apply's outer subtree with the apply's own identifier
// masked out, so an outer-side reference to it fails loudly.
func (cm *CorelMap) collectOuter(p LogicalPlan, live map[expression.CorrelationID]*LogicalApply, masked expression.CorrelationID) error {
	defining, ok := live[masked]
	if ok {
		delete(live, masked)
		defer func() {
			live[masked] = defining
		}()
	}
	return cm.collect(p, live)
}

func (cm *CorelMap) record(p LogicalPlan, corCol *expression.CorrelatedColumn, live map[expression.CorrelationID]*LogicalApply) error {
	defining, ok := live[corCol.CorrID]
	if !ok {
		return newMapConsistencyError(corCol)
	}
	field := defining.Children()[0].Schema().ColumnIndex(&corCol.Column)
	if field == -1 {
		return newMapConsistencyError(corCol)
	}
	cm.mapRefPlanToCorRef[p] = append(cm.mapRefPlanToCorRef[p], CorRef{CorrID: corCol.CorrID, Field: field})
	fields, ok := cm.refFields[corCol.CorrID]
	if !ok {
		fields = bitset.New(uint(field) + 1)
		cm.refFields[corCol.CorrID] = fields
	}
	fields.Set(uint(field))
	return nil
}

// HasCorrelation reports whether any apply operator is live in the map.
func (cm *CorelMap) HasCorrelation() bool {
	return !cm.mapCorToCorPlan.Empty()
}

// RefsOf returns the correlated references made by one operator's own
// expressions, in expression order.
func (cm *CorelMap) RefsOf(p LogicalPlan) []CorRef {
	return cm.mapRefPlanToCorRef[p]
}

// CorrelateFor resolves an identifier to its defining apply.
func (cm *CorelMap) CorrelateFor(id expression.CorrelationID) (*LogicalApply, bool) {
	v, ok := cm.mapCorToCorPlan.Get(int64(id))
	if !ok {
		return nil, false
	}
	return v.(*LogicalApply), true
}

// RefFields returns the set of outer field offsets the identifier reads.
// The returned bitset is shared; callers must not mutate it.
func (cm *CorelMap) RefFields(id expression.CorrelationID) *bitset.BitSet {
	return cm.refFields[id]
}

// RemoveCorrelate unregisters an identifier and all references to it. A
// pattern rule calls this as the postcondition of eliminating an apply.
func (cm *CorelMap) RemoveCorrelate(id expression.CorrelationID) {
	cm.mapCorToCorPlan.Remove(int64(id))
	delete(cm.refFields, id)
	for p, refs := range cm.mapRefPlanToCorRef {
		kept := refs[:0]
		for _, ref := range refs {
			if ref.CorrID != id {
				kept = append(kept, ref)
			}
		}
		if len(kept) == 0 {
			delete(cm.mapRefPlanToCorRef, p)
		} else {
			cm.mapRefPlanToCorRef[p] = kept
		}
	}
}

// MoveRefs transfers the reference records of a rewritten operator to its
// replacement, for rules that replace a consuming node without eliminating
// the identifier.
func (cm *CorelMap) MoveRefs(from, to LogicalPlan) {
	if refs, ok := cm.mapRefPlanToCorRef[from]; ok {
		delete(cm.mapRefPlanToCorRef, from)
		cm.mapRefPlanToCorRef[to] = append(cm.mapRefPlanToCorRef[to], refs...)
	}
}
