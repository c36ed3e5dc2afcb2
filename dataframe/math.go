// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataframe

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Sub subtracts column b from column a row-wise and returns a new single-column
// dataframe with the given name. If either operand is NaN for a row the result
// is NaN for that row. Returns ErrColumnNotFound if a column is missing.
func (df *DataFrame[T]) Sub(colA, colB, name string) (*DataFrame[T], error) {
	aIdx := df.ColIndex(colA)
	bIdx := df.ColIndex(colB)
	if aIdx == -1 || bIdx == -1 {
		return nil, ErrColumnNotFound
	}

	vals := make([]float64, df.Len())
	for rowIdx := range df.Index {
		vals[rowIdx] = df.Vals[aIdx][rowIdx] - df.Vals[bIdx][rowIdx]
	}

	return &DataFrame[T]{
		Index:    df.Index,
		ColNames: []string{name},
		Vals:     [][]float64{vals},
	}, nil
}

// RollingVariance computes the trailing sample variance of the named column
// over the given window and returns a new single-column dataframe. Rows with
// fewer than window preceding observations, or windows containing NaN, are NaN.
func (df *DataFrame[T]) RollingVariance(colName string, window int) (*DataFrame[T], error) {
	colIdx := df.ColIndex(colName)
	if colIdx == -1 {
		return nil, ErrColumnNotFound
	}

	col := df.Vals[colIdx]
	vals := make([]float64, len(col))
	for rowIdx := range col {
		if rowIdx+1 < window {
			vals[rowIdx] = math.NaN()
			continue
		}
		win := col[rowIdx+1-window : rowIdx+1]
		hasNaN := false
		for _, v := range win {
			if math.IsNaN(v) {
				hasNaN = true
				break
			}
		}
		if hasNaN {
			vals[rowIdx] = math.NaN()
			continue
		}
		vals[rowIdx] = stat.Variance(win, nil)
	}

	return &DataFrame[T]{
		Index:    df.Index,
		ColNames: []string{colName + "_variance"},
		Vals:     [][]float64{vals},
	}, nil
}
