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

package types

import (
	"fmt"
	"math"
	"strings"

	"github.com/pingcap/errors"
)

// Kind constants of a Datum.
const (
	KindNull byte = iota
	KindInt64
	KindUint64
	KindFloat64
	KindString
)

// Datum is a boxed scalar value flowing through plan rewriting and the
// reference evaluator. Unlike a full SQL value it only carries the handful of
// kinds the rewrite layer needs for folding and comparison.
type Datum struct {
	k byte
	i int64
	f float64
	s string
}

// Kind returns the datum's kind.
func (d *Datum) Kind() byte {
	return d.k
}

// IsNull checks if the datum is null.
func (d *Datum) IsNull() bool {
	return d.k == KindNull
}

// GetInt64 gets the int64 value.
func (d *Datum) GetInt64() int64 {
	return d.i
}

// GetUint64 gets the uint64 value.
func (d *Datum) GetUint64() uint64 {
	return uint64(d.i)
}

// GetFloat64 gets the float64 value.
func (d *Datum) GetFloat64() float64 {
	return d.f
}

// GetString gets the string value.
func (d *Datum) GetString() string {
	return d.s
}

// SetNull sets the datum to null.
func (d *Datum) SetNull() {
	*d = Datum{k: KindNull}
}

// SetInt64 sets the datum to an int64 value.
func (d *Datum) SetInt64(i int64) {
	*d = Datum{k: KindInt64, i: i}
}

// SetUint64 sets the datum to an uint64 value.
func (d *Datum) SetUint64(u uint64) {
	*d = Datum{k: KindUint64, i: int64(u)}
}

// SetFloat64 sets the datum to a float64 value.
func (d *Datum) SetFloat64(f float64) {
	*d = Datum{k: KindFloat64, f: f}
}

// SetString sets the datum to a string value.
func (d *Datum) SetString(s string) {
	*d = Datum{k: KindString, s: s}
}

// NewDatum creates a new Datum from an interface value.
func NewDatum(in any) (d Datum) {
	switch x := in.(type) {
	case nil:
		d.SetNull()
	case int:
		d.SetInt64(int64(x))
	case int64:
		d.SetInt64(x)
	case uint64:
		d.SetUint64(x)
	case float64:
		d.SetFloat64(x)
	case string:
		d.SetString(x)
	case Datum:
		d = x
	default:
		panic(fmt.Sprintf("unsupported datum value %T", in))
	}
	return d
}

// NewIntDatum creates a new Datum from an int64 value.
func NewIntDatum(i int64) (d Datum) {
	d.SetInt64(i)
	return d
}

// NewUintDatum creates a new Datum from an uint64 value.
func NewUintDatum(u uint64) (d Datum) {
	d.SetUint64(u)
	return d
}

// NewFloat64Datum creates a new Datum from a float64 value.
func NewFloat64Datum(f float64) (d Datum) {
	d.SetFloat64(f)
	return d
}

// NewStringDatum creates a new Datum from a string value.
func NewStringDatum(s string) (d Datum) {
	d.SetString(s)
	return d
}

// ToBool converts the datum to a boolean in SQL truthiness terms. The caller
// handles null before calling.
func (d *Datum) ToBool() (int64, error) {
	switch d.k {
	case KindInt64, KindUint64:
		if d.i != 0 {
			return 1, nil
		}
		return 0, nil
	case KindFloat64:
		if d.f != 0 {
			return 1, nil
		}
		return 0, nil
	case KindString:
		if len(strings.TrimSpace(d.s)) != 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 0, errors.Errorf("cannot convert %s to bool", d)
}

// ToFloat64 converts a numeric datum to float64.
func (d *Datum) ToFloat64() (float64, error) {
	switch d.k {
	case KindInt64:
		return float64(d.i), nil
	case KindUint64:
		return float64(uint64(d.i)), nil
	case KindFloat64:
		return d.f, nil
	}
	return 0, errors.Errorf("cannot convert %s to float64", d)
}

// Compare compares two datums, returning -1, 0 or 1. Nulls sort before any
// non-null value; mixed numeric kinds compare as float64.
func (d *Datum) Compare(other *Datum) (int, error) {
	if d.IsNull() || other.IsNull() {
		if d.IsNull() && other.IsNull() {
			return 0, nil
		}
		if d.IsNull() {
			return -1, nil
		}
		return 1, nil
	}
	if d.k == KindString || other.k == KindString {
		if d.k != other.k {
			return 0, errors.Errorf("cannot compare %s with %s", d, other)
		}
		return strings.Compare(d.s, other.s), nil
	}
	if d.k == other.k && d.k == KindInt64 {
		return compareOrdered(d.i, other.i), nil
	}
	if d.k == other.k && d.k == KindUint64 {
		return compareOrdered(uint64(d.i), uint64(other.i)), nil
	}
	lf, err := d.ToFloat64()
	if err != nil {
		return 0, errors.Trace(err)
	}
	rf, err := other.ToFloat64()
	if err != nil {
		return 0, errors.Trace(err)
	}
	return compareOrdered(lf, rf), nil
}

func compareOrdered[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Equals reports whether two datums hold the same value. NULL equals NULL
// here; this is identity for rewrite purposes, not SQL three-valued logic.
func (d *Datum) Equals(other *Datum) bool {
	if d.k != other.k {
		return false
	}
	switch d.k {
	case KindNull:
		return true
	case KindString:
		return d.s == other.s
	case KindFloat64:
		return d.f == other.f || (math.IsNaN(d.f) && math.IsNaN(other.f))
	}
	return d.i == other.i
}

// String implements fmt.Stringer interface.
func (d Datum) String() string {
	switch d.k {
	case KindNull:
		return "NULL"
	case KindInt64:
		return fmt.Sprintf("%d", d.i)
	case KindUint64:
		return fmt.Sprintf("%d", uint64(d.i))
	case KindFloat64:
		return fmt.Sprintf("%g", d.f)
	case KindString:
		return fmt.Sprintf("%q", d.s)
	}
	return "?"
}
