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

// Package portfolio builds the quantile-sorted portfolios and their return
// series from the filtered firm-year panel.
package portfolio

import (
	"math"

	"github.com/penny-vault/pv-factor/common"
	"github.com/penny-vault/pv-factor/panel"
	"github.com/rs/zerolog/log"
)

// Assignment maps formation year -> company ID -> bucket (1..NumBuckets).
// Firms absent from a year's sort have no entry for that year.
type Assignment map[int]map[int32]int

// SortYear assigns every company with a defined RDM in the given year's
// cross-section to one of numBuckets equal-population buckets. Bucket
// boundaries are a pure function of the year's RDM distribution: rows are
// stable-sorted by (RDM, company ID) so that boundary ties resolve by the
// lower company ID, and bucket k holds ranks [k*n/numBuckets, (k+1)*n/numBuckets).
// Bucket sizes differ by at most one.
func SortYear(rows []*panel.Row, numBuckets int) map[int32]int {
	pairs := make(common.PairList, 0, len(rows))
	for _, row := range rows {
		if math.IsNaN(row.RDM) {
			continue
		}
		pairs = append(pairs, common.Pair{Key: row.CompanyID, Value: row.RDM})
	}
	common.SortPairs(pairs)

	n := len(pairs)
	res := make(map[int32]int, n)
	for rank, pair := range pairs {
		res[pair.Key] = rank*numBuckets/n + 1
	}
	return res
}

// SortAll runs the independent within-year sort for every year in the panel
func SortAll(p *panel.Panel, numBuckets int) Assignment {
	res := make(Assignment)
	for _, year := range p.Years() {
		rows := p.YearCrossSection(year)
		asgn := SortYear(rows, numBuckets)
		if len(asgn) == 0 {
			log.Warn().Int("FormationYear", year).Msg("no companies eligible for sort")
			continue
		}
		res[year] = asgn
		log.Debug().Int("FormationYear", year).Int("NumCompanies", len(asgn)).Msg("sorted cross-section")
	}
	return res
}
