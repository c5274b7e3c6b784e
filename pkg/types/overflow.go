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
	"math"

	"github.com/pingcap/errors"
)

// AddInt64 adds int64 a and b if no overflow, otherwise returns error.
func AddInt64(a int64, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) ||
		(b < 0 && a < math.MinInt64-b) {
		return 0, errors.Errorf("BIGINT value is out of range in '(%d + %d)'", a, b)
	}
	return a + b, nil
}

// SubInt64 subtracts int64 b from a if no overflow, otherwise returns error.
func SubInt64(a int64, b int64) (int64, error) {
	if (b > 0 && a < math.MinInt64+b) ||
		(b < 0 && a > math.MaxInt64+b) {
		return 0, errors.Errorf("BIGINT value is out of range in '(%d - %d)'", a, b)
	}
	return a - b, nil
}

// MulInt64 multiplies int64 a and b if no overflow, otherwise returns error.
func MulInt64(a int64, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	ret := a * b
	if (a == math.MinInt64 && b == -1) || ret/b != a {
		return 0, errors.Errorf("BIGINT value is out of range in '(%d * %d)'", a, b)
	}
	return ret, nil
}
