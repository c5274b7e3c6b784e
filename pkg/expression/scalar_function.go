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

package expression

import (
	"strings"

	"github.com/Stars1233/relopt/pkg/types"
	"github.com/pingcap/errors"
)

// Scalar function names understood by the rewrite layer and the reference
// evaluator. Comparisons and IFNULL are the ones the decorrelation rules
// build themselves; the rest exist so rewritten predicates keep evaluating
// bit-identically to their pre-rewrite form.
const (
	EQ       = "eq"
	NE       = "ne"
	LT       = "lt"
	LE       = "le"
	GT       = "gt"
	GE       = "ge"
	Plus     = "plus"
	Minus    = "minus"
	Mul      = "mul"
	Div      = "div"
	LogicAnd = "and"
	LogicOr  = "or"
	UnaryNot = "not"
	IsNull   = "isnull"
	IfNull   = "ifnull"
)

// ScalarFunction is the function that returns a value.
type ScalarFunction struct {
	FuncName string
	args     []Expression
	function builtinFunc
}

// NewFunction creates a new scalar function.
func NewFunction(funcName string, args ...Expression) (Expression, error) {
	f, ok := funcs[funcName]
	if !ok {
		return nil, errors.Errorf("unknown scalar function %q", funcName)
	}
	if len(args) != f.arity {
		return nil, errors.Errorf("scalar function %q wants %d arguments, got %d", funcName, f.arity, len(args))
	}
	return &ScalarFunction{FuncName: funcName, args: args, function: f.fn}, nil
}

// NewFunctionInternal is the variant for call sites building functions out of
// already-checked pieces, where a failure means a bug rather than bad input.
func NewFunctionInternal(funcName string, args ...Expression) Expression {
	expr, err := NewFunction(funcName, args...)
	if err != nil {
		panic(err)
	}
	return expr
}

// GetArgs gets the arguments of the function.
func (sf *ScalarFunction) GetArgs() []Expression {
	return sf.args
}

// SetArg replaces one argument in place.
func (sf *ScalarFunction) SetArg(i int, arg Expression) {
	sf.args[i] = arg
}

// String implements fmt.Stringer interface.
func (sf *ScalarFunction) String() string {
	var sb strings.Builder
	sb.WriteString(sf.FuncName)
	sb.WriteString("(")
	for i, arg := range sf.args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.String())
	}
	sb.WriteString(")")
	return sb.String()
}

// Eval implements Expression interface.
func (sf *ScalarFunction) Eval(row []types.Datum) (types.Datum, error) {
	args := make([]types.Datum, 0, len(sf.args))
	for _, arg := range sf.args {
		d, err := arg.Eval(row)
		if err != nil {
			return types.Datum{}, errors.Trace(err)
		}
		args = append(args, d)
	}
	return sf.function(args)
}

// Clone implements Expression interface.
func (sf *ScalarFunction) Clone() Expression {
	newFunc := &ScalarFunction{FuncName: sf.FuncName, function: sf.function}
	newFunc.args = CloneExprs(sf.args)
	return newFunc
}

// Equal implements Expression interface.
func (sf *ScalarFunction) Equal(e Expression) bool {
	other, ok := e.(*ScalarFunction)
	if !ok || sf.FuncName != other.FuncName || len(sf.args) != len(other.args) {
		return false
	}
	for i, arg := range sf.args {
		if !arg.Equal(other.args[i]) {
			return false
		}
	}
	return true
}

// Decorrelate implements Expression interface.
func (sf *ScalarFunction) Decorrelate(schema *Schema) Expression {
	newFunc := &ScalarFunction{FuncName: sf.FuncName, function: sf.function}
	newFunc.args = make([]Expression, 0, len(sf.args))
	for _, arg := range sf.args {
		newFunc.args = append(newFunc.args, arg.Decorrelate(schema))
	}
	return newFunc
}
