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

// FoldConstant does constant folding bottom-up. A function whose arguments
// all fold to constants is replaced by its value; anything else is returned
// unchanged, including on evaluation error, since folding is best-effort.
func FoldConstant(expr Expression) Expression {
	sf, ok := expr.(*ScalarFunction)
	if !ok {
		return expr
	}
	newFunc := sf.Clone().(*ScalarFunction)
	allConst := true
	for i, arg := range newFunc.GetArgs() {
		folded := FoldConstant(arg)
		newFunc.SetArg(i, folded)
		if _, isConst := folded.(*Constant); !isConst {
			allConst = false
		}
	}
	if !allConst {
		return newFunc
	}
	val, err := newFunc.Eval(nil)
	if err != nil {
		return newFunc
	}
	return &Constant{Value: val}
}
