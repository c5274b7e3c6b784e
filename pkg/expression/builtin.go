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
	"github.com/Stars1233/relopt/pkg/types"
	"github.com/pingcap/errors"
)

type builtinFunc func(args []types.Datum) (types.Datum, error)

type functionClass struct {
	arity int
	fn    builtinFunc
}

var funcs = map[string]functionClass{
	EQ:       {2, compareFunc(func(c int) bool { return c == 0 })},
	NE:       {2, compareFunc(func(c int) bool { return c != 0 })},
	LT:       {2, compareFunc(func(c int) bool { return c < 0 })},
	LE:       {2, compareFunc(func(c int) bool { return c <= 0 })},
	GT:       {2, compareFunc(func(c int) bool { return c > 0 })},
	GE:       {2, compareFunc(func(c int) bool { return c >= 0 })},
	Plus:     {2, arithmeticFunc(types.AddInt64, func(a, b float64) float64 { return a + b })},
	Minus:    {2, arithmeticFunc(types.SubInt64, func(a, b float64) float64 { return a - b })},
	Mul:      {2, arithmeticFunc(types.MulInt64, func(a, b float64) float64 { return a * b })},
	Div:      {2, builtinDiv},
	LogicAnd: {2, builtinAnd},
	LogicOr:  {2, builtinOr},
	UnaryNot: {1, builtinNot},
	IsNull:   {1, builtinIsNull},
	IfNull:   {2, builtinIfNull},
}

func compareFunc(accept func(int) bool) builtinFunc {
	return func(args []types.Datum) (d types.Datum, err error) {
		if args[0].IsNull() || args[1].IsNull() {
			return d, nil
		}
		c, err := args[0].Compare(&args[1])
		if err != nil {
			return d, errors.Trace(err)
		}
		if accept(c) {
			d.SetInt64(1)
		} else {
			d.SetInt64(0)
		}
		return d, nil
	}
}

func arithmeticFunc(intOp func(a, b int64) (int64, error), floatOp func(a, b float64) float64) builtinFunc {
	return func(args []types.Datum) (d types.Datum, err error) {
		if args[0].IsNull() || args[1].IsNull() {
			return d, nil
		}
		if args[0].Kind() == types.KindInt64 && args[1].Kind() == types.KindInt64 {
			iv, err := intOp(args[0].GetInt64(), args[1].GetInt64())
			if err != nil {
				return d, errors.Trace(err)
			}
			d.SetInt64(iv)
			return d, nil
		}
		lf, err := args[0].ToFloat64()
		if err != nil {
			return d, errors.Trace(err)
		}
		rf, err := args[1].ToFloat64()
		if err != nil {
			return d, errors.Trace(err)
		}
		d.SetFloat64(floatOp(lf, rf))
		return d, nil
	}
}

// builtinDiv always yields a float result; division by zero yields null.
func builtinDiv(args []types.Datum) (d types.Datum, err error) {
	if args[0].IsNull() || args[1].IsNull() {
		return d, nil
	}
	lf, err := args[0].ToFloat64()
	if err != nil {
		return d, errors.Trace(err)
	}
	rf, err := args[1].ToFloat64()
	if err != nil {
		return d, errors.Trace(err)
	}
	if rf == 0 {
		return d, nil
	}
	d.SetFloat64(lf / rf)
	return d, nil
}

func builtinAnd(args []types.Datum) (d types.Datum, err error) {
	lb, lNull, err := datumBool(&args[0])
	if err != nil {
		return d, errors.Trace(err)
	}
	rb, rNull, err := datumBool(&args[1])
	if err != nil {
		return d, errors.Trace(err)
	}
	// false AND anything is false even when the other side is null.
	if (!lNull && !lb) || (!rNull && !rb) {
		d.SetInt64(0)
		return d, nil
	}
	if lNull || rNull {
		return d, nil
	}
	d.SetInt64(1)
	return d, nil
}

func builtinOr(args []types.Datum) (d types.Datum, err error) {
	lb, lNull, err := datumBool(&args[0])
	if err != nil {
		return d, errors.Trace(err)
	}
	rb, rNull, err := datumBool(&args[1])
	if err != nil {
		return d, errors.Trace(err)
	}
	if (!lNull && lb) || (!rNull && rb) {
		d.SetInt64(1)
		return d, nil
	}
	if lNull || rNull {
		return d, nil
	}
	d.SetInt64(0)
	return d, nil
}

func builtinNot(args []types.Datum) (d types.Datum, err error) {
	b, isNull, err := datumBool(&args[0])
	if err != nil || isNull {
		return d, errors.Trace(err)
	}
	if b {
		d.SetInt64(0)
	} else {
		d.SetInt64(1)
	}
	return d, nil
}

func builtinIsNull(args []types.Datum) (d types.Datum, err error) {
	if args[0].IsNull() {
		d.SetInt64(1)
	} else {
		d.SetInt64(0)
	}
	return d, nil
}

func builtinIfNull(args []types.Datum) (types.Datum, error) {
	if args[0].IsNull() {
		return args[1], nil
	}
	return args[0], nil
}

func datumBool(d *types.Datum) (val bool, isNull bool, err error) {
	if d.IsNull() {
		return false, true, nil
	}
	i, err := d.ToBool()
	if err != nil {
		return false, false, errors.Trace(err)
	}
	return i != 0, false, nil
}
