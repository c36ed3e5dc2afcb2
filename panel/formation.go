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

package panel

import "time"

// FormationYear maps a fundamental report date to the formation year whose
// sort may use it. A report dated after the formation month belongs to the
// following year's formation; this is the guard against look-ahead bias, kept
// as one pure function so the date arithmetic is testable in isolation.
func FormationYear(reportDate time.Time, formationMonth time.Month) int {
	if reportDate.Month() > formationMonth {
		return reportDate.Year() + 1
	}
	return reportDate.Year()
}
