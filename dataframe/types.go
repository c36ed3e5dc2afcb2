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

import "errors"

// DataFrame stores a table of float64 values organized by an index of type T
// (typically time.Time for monthly series or string for cross-sections).
// Vals is column major:
//
//	bucket1  bucket5
//	1        4
//	2        5
//
// Vals[0][0] = 1
// Vals[0][1] = 2
type DataFrame[T comparable] struct {
	Index    []T
	ColNames []string
	Vals     [][]float64
}

var (
	ErrIndexNotAligned = errors.New("index does not align")
	ErrColumnNotFound  = errors.New("column does not exist")
)
