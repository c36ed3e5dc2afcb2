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

import (
	"math"

	"github.com/penny-vault/pv-factor/study"
	"github.com/rs/zerolog/log"
)

// FilterComplete enforces the complete-panel requirement: a company survives
// only if it has a defined RDM in the base year and in each of the MinSpan
// consecutive years starting there. A single gap year excludes the firm
// entirely; the study trades sample breadth for series completeness so that
// sparse reporters cannot distort the quantile boundaries in thin years.
func FilterComplete(p *Panel, s *study.Study) *Panel {
	// collect, per company, the set of years with a defined signal
	defined := make(map[int32]map[int]bool, 1000)
	for _, row := range p.Rows {
		if math.IsNaN(row.RDM) {
			continue
		}
		years, ok := defined[row.CompanyID]
		if !ok {
			years = make(map[int]bool, s.MinSpan)
			defined[row.CompanyID] = years
		}
		years[row.FormationYear] = true
	}

	keep := make(map[int32]bool, len(defined))
	for companyID, years := range defined {
		complete := true
		for year := s.BaseYear; year < s.BaseYear+s.MinSpan; year++ {
			if !years[year] {
				complete = false
				break
			}
		}
		if complete {
			keep[companyID] = true
		}
	}

	res := &Panel{Rows: make([]*Row, 0, len(p.Rows))}
	for _, row := range p.Rows {
		if keep[row.CompanyID] && row.FormationYear >= s.BaseYear {
			res.Rows = append(res.Rows, row)
		}
	}

	log.Info().Int("NumCompanies", len(keep)).Int("NumRows", res.Len()).
		Int("MinSpan", s.MinSpan).Int("BaseYear", s.BaseYear).
		Msg("filtered panel to complete series")
	return res
}
