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

package aggregation

import (
	"fmt"
	"math"
	"strings"

	"github.com/Stars1233/relopt/pkg/expression"
	"github.com/Stars1233/relopt/pkg/types"
	"github.com/pingcap/errors"
)

// Names of the aggregate functions the engine understands.
const (
	AggFuncCount    = "count"
	AggFuncSum      = "sum"
	AggFuncAvg      = "avg"
	AggFuncMin      = "min"
	AggFuncMax      = "max"
	AggFuncFirstRow = "firstrow"
	AggFuncBitOr    = "bit_or"
	AggFuncBitAnd   = "bit_and"
	AggFuncBitXor   = "bit_xor"
)

var knownAggFuncs = map[string]struct{}{
	AggFuncCount:    {},
	AggFuncSum:      {},
	AggFuncAvg:      {},
	AggFuncMin:      {},
	AggFuncMax:      {},
	AggFuncFirstRow: {},
	AggFuncBitOr:    {},
	AggFuncBitAnd:   {},
	AggFuncBitXor:   {},
}

// AggFuncDesc describes an aggregation function call.
type AggFuncDesc struct {
	Name        string
	Args        []expression.Expression
	HasDistinct bool
}

// NewAggFuncDesc creates an aggregation function signature descriptor.
func NewAggFuncDesc(name string, args []expression.Expression, hasDistinct bool) (*AggFuncDesc, error) {
	if _, ok := knownAggFuncs[name]; !ok {
		return nil, errors.Errorf("unknown aggregate function %q", name)
	}
	if len(args) != 1 {
		return nil, errors.Errorf("aggregate function %q wants exactly one argument, got %d", name, len(args))
	}
	return &AggFuncDesc{Name: name, Args: args, HasDistinct: hasDistinct}, nil
}

// Clone copies the descriptor deeply.
func (a *AggFuncDesc) Clone() *AggFuncDesc {
	clone := *a
	clone.Args = expression.CloneExprs(a.Args)
	return &clone
}

// String implements fmt.Stringer interface.
func (a *AggFuncDesc) String() string {
	var sb strings.Builder
	sb.WriteString(a.Name)
	sb.WriteString("(")
	if a.HasDistinct {
		sb.WriteString("distinct ")
	}
	for i, arg := range a.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.String())
	}
	sb.WriteString(")")
	return sb.String()
}

// Equal checks whether two aggregation function signatures are identical.
func (a *AggFuncDesc) Equal(other *AggFuncDesc) bool {
	if a.Name != other.Name || a.HasDistinct != other.HasDistinct || len(a.Args) != len(other.Args) {
		return false
	}
	for i, arg := range a.Args {
		if !arg.Equal(other.Args[i]) {
			return false
		}
	}
	return true
}

// DefaultValueOnEmptyGroup returns the value the aggregate produces over an
// empty group, when that value is not NULL. SQL defines COUNT and the bit
// operations to be total: COUNT/BIT_OR/BIT_XOR yield 0 and BIT_AND yields all
// ones, while SUM/AVG/MIN/MAX/FIRST_ROW yield NULL and need no compensation
// after an outer join.
func (a *AggFuncDesc) DefaultValueOnEmptyGroup() (*expression.Constant, bool) {
	switch a.Name {
	case AggFuncCount, AggFuncBitOr, AggFuncBitXor:
		return expression.NewZero(), true
	case AggFuncBitAnd:
		return &expression.Constant{Value: types.NewUintDatum(math.MaxUint64)}, true
	}
	return nil, false
}

// FoldSingleRow computes the aggregate's result over exactly one input row
// whose argument evaluated to arg. An aggregate over a guaranteed single row
// is a plain scalar computation, which is what makes the single-row aggregate
// elimination rule a compile-time rewrite.
func (a *AggFuncDesc) FoldSingleRow(arg types.Datum) (types.Datum, error) {
	switch a.Name {
	case AggFuncCount:
		if arg.IsNull() {
			return types.NewIntDatum(0), nil
		}
		return types.NewIntDatum(1), nil
	case AggFuncSum, AggFuncAvg, AggFuncMin, AggFuncMax, AggFuncFirstRow:
		return arg, nil
	case AggFuncBitOr, AggFuncBitAnd, AggFuncBitXor:
		if arg.IsNull() {
			if a.Name == AggFuncBitAnd {
				return types.NewUintDatum(math.MaxUint64), nil
			}
			return types.NewUintDatum(0), nil
		}
		v, err := bitAggOperand(&arg)
		if err != nil {
			return types.Datum{}, errors.Trace(err)
		}
		return types.NewUintDatum(v), nil
	}
	return types.Datum{}, errors.Errorf("cannot fold aggregate function %q", a.Name)
}

// EvalGroup computes the aggregate over the evaluated argument values of one
// group. It is the reference semantics the decorrelation tests compare
// against, not an execution-grade implementation.
func (a *AggFuncDesc) EvalGroup(vals []types.Datum) (types.Datum, error) {
	if a.HasDistinct {
		vals = distinctVals(vals)
	}
	nonNull := make([]types.Datum, 0, len(vals))
	for _, v := range vals {
		if !v.IsNull() {
			nonNull = append(nonNull, v)
		}
	}
	switch a.Name {
	case AggFuncCount:
		return types.NewIntDatum(int64(len(nonNull))), nil
	case AggFuncFirstRow:
		if len(vals) == 0 {
			return types.Datum{}, nil
		}
		return vals[0], nil
	case AggFuncSum, AggFuncAvg:
		if len(nonNull) == 0 {
			return types.Datum{}, nil
		}
		var sum float64
		for i := range nonNull {
			f, err := nonNull[i].ToFloat64()
			if err != nil {
				return types.Datum{}, errors.Trace(err)
			}
			sum += f
		}
		if a.Name == AggFuncAvg {
			return types.NewFloat64Datum(sum / float64(len(nonNull))), nil
		}
		return types.NewFloat64Datum(sum), nil
	case AggFuncMin, AggFuncMax:
		if len(nonNull) == 0 {
			return types.Datum{}, nil
		}
		best := nonNull[0]
		for i := 1; i < len(nonNull); i++ {
			c, err := nonNull[i].Compare(&best)
			if err != nil {
				return types.Datum{}, errors.Trace(err)
			}
			if (a.Name == AggFuncMin && c < 0) || (a.Name == AggFuncMax && c > 0) {
				best = nonNull[i]
			}
		}
		return best, nil
	case AggFuncBitOr, AggFuncBitAnd, AggFuncBitXor:
		acc := uint64(0)
		if a.Name == AggFuncBitAnd {
			acc = math.MaxUint64
		}
		for i := range nonNull {
			v, err := bitAggOperand(&nonNull[i])
			if err != nil {
				return types.Datum{}, errors.Trace(err)
			}
			switch a.Name {
			case AggFuncBitOr:
				acc |= v
			case AggFuncBitAnd:
				acc &= v
			case AggFuncBitXor:
				acc ^= v
			}
		}
		return types.NewUintDatum(acc), nil
	}
	return types.Datum{}, errors.Errorf("cannot evaluate aggregate function %q", a.Name)
}

// bitAggOperand converts one argument of the bit aggregates to uint64.
// Negative integers keep their two's complement bit pattern like BIGINT
// operands do, while a float outside the uint64 range is an error instead of
// a platform-dependent conversion.
func bitAggOperand(d *types.Datum) (uint64, error) {
	switch d.Kind() {
	case types.KindInt64:
		return uint64(d.GetInt64()), nil
	case types.KindUint64:
		return d.GetUint64(), nil
	case types.KindFloat64:
		f := d.GetFloat64()
		if math.IsNaN(f) || f < 0 || f >= float64(math.MaxUint64) {
			return 0, errors.Errorf("value %v is out of range for a bit aggregate", f)
		}
		return uint64(f), nil
	}
	return 0, errors.Errorf("cannot use %s as a bit aggregate operand", d)
}

func distinctVals(vals []types.Datum) []types.Datum {
	seen := make(map[string]struct{}, len(vals))
	result := make([]types.Datum, 0, len(vals))
	for _, v := range vals {
		key := fmt.Sprintf("%d|%s", v.Kind(), v.String())
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, v)
	}
	return result
}
