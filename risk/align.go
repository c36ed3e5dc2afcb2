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

// Package risk evaluates the long-short differential against factor models
// and computes non-parametric tail-risk measures.
package risk

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/penny-vault/pv-factor/data"
	"github.com/penny-vault/pv-factor/dataframe"
	"github.com/rs/zerolog/log"
)

var (
	ErrMisalignedSeries = errors.New("return and factor series have no overlapping months")
	ErrDuplicatePeriod  = errors.New("duplicate period key in factor series")
)

// AlignedSeries holds the month-keyed inner join of the differential series
// and the factor series. Series joined here are always matched on the
// calendar period key; positional alignment of independently sourced series
// is how studies silently go wrong.
type AlignedSeries struct {
	Months []time.Time
	Diff   []float64
	MktRF  []float64
	SMB    []float64
	HML    []float64
	RF     []float64
}

// AlignByMonth joins the long-short series to the factor series on the
// normalized month key, keeping only months where both sides are defined.
// An empty overlap or a duplicated factor month fails loudly.
func AlignByMonth(diff *dataframe.DataFrame[time.Time], factors []*data.FactorReturns) (*AlignedSeries, error) {
	factorByMonth := make(map[time.Time]*data.FactorReturns, len(factors))
	for _, f := range factors {
		key := data.MonthKey(f.Month)
		if _, ok := factorByMonth[key]; ok {
			log.Error().Stack().Time("Month", key).Msg("duplicate period key in factor series")
			return nil, ErrDuplicatePeriod
		}
		factorByMonth[key] = f
	}

	// undefined differential months never enter the join
	clean := diff.Copy().Drop(math.NaN())
	diffVals := clean.AsMap(clean.ColNames[0])

	months := make([]time.Time, 0, len(diffVals))
	for month := range diffVals {
		if _, ok := factorByMonth[data.MonthKey(month)]; !ok {
			continue
		}
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	if len(months) == 0 {
		log.Error().Stack().Msg("no overlapping months between differential and factor series")
		return nil, ErrMisalignedSeries
	}

	res := &AlignedSeries{
		Months: months,
		Diff:   make([]float64, len(months)),
		MktRF:  make([]float64, len(months)),
		SMB:    make([]float64, len(months)),
		HML:    make([]float64, len(months)),
		RF:     make([]float64, len(months)),
	}

	for idx, month := range months {
		f := factorByMonth[data.MonthKey(month)]
		res.Diff[idx] = diffVals[month]
		res.MktRF[idx] = f.MktRF
		res.SMB[idx] = f.SMB
		res.HML[idx] = f.HML
		res.RF[idx] = f.RF
	}

	log.Debug().Int("NumMonths", len(months)).Msg("aligned differential and factor series")
	return res, nil
}

// ExcessDiff returns the differential in excess of the risk-free rate
func (a *AlignedSeries) ExcessDiff() []float64 {
	res := make([]float64, len(a.Diff))
	for idx := range a.Diff {
		res[idx] = a.Diff[idx] - a.RF[idx]
	}
	return res
}
