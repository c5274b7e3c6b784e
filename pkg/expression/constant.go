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
)

// Constant stands for a literal value.
type Constant struct {
	Value types.Datum
}

// NewZero returns a zero constant.
func NewZero() *Constant {
	return &Constant{Value: types.NewIntDatum(0)}
}

// NewOne returns a one constant.
func NewOne() *Constant {
	return &Constant{Value: types.NewIntDatum(1)}
}

// NewNull returns a null constant.
func NewNull() *Constant {
	return &Constant{}
}

// NewConstant boxes a datum.
func NewConstant(d types.Datum) *Constant {
	return &Constant{Value: d}
}

// String implements fmt.Stringer interface.
func (c *Constant) String() string {
	return c.Value.String()
}

// Eval implements Expression interface.
func (c *Constant) Eval(_ []types.Datum) (types.Datum, error) {
	return c.Value, nil
}

// Clone implements Expression interface.
func (c *Constant) Clone() Expression {
	con := *c
	return &con
}

// Equal implements Expression interface.
func (c *Constant) Equal(e Expression) bool {
	other, ok := e.(*Constant)
	return ok && c.Value.Equals(&other.Value)
}

// Decorrelate implements Expression interface.
func (c *Constant) Decorrelate(_ *Schema) Expression {
	return c
}
