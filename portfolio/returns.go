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

package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/penny-vault/pv-factor/data"
	"github.com/penny-vault/pv-factor/dataframe"
	"github.com/penny-vault/pv-factor/observability/opentelemetry"
	"github.com/penny-vault/pv-factor/panel"
	"github.com/penny-vault/pv-factor/study"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gonum.org/v1/gonum/stat"
)

// LongShortCol names the differential column of the long-short dataframe
const LongShortCol = "longshort"

// bucketMonth is one long-format observation of the bucket return panel
type bucketMonth struct {
	month  time.Time
	bucket int
	sum    float64
	n      int
}

// YearDiff is the annual long-short differential for one formation year
type YearDiff struct {
	Year       int
	TopMean    float64
	BottomMean float64
	Diff       float64
	NTop       int
	NBottom    int
}

type jsonYearDiff struct {
	Year       int      `json:"year"`
	TopMean    *float64 `json:"topMean"`
	BottomMean *float64 `json:"bottomMean"`
	Diff       *float64 `json:"diff"`
	NTop       int      `json:"nTop"`
	NBottom    int      `json:"nBottom"`
}

func nanToPtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func ptrToNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// MarshalJSON serializes undefined means as null
func (yd *YearDiff) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonYearDiff{
		Year:       yd.Year,
		TopMean:    nanToPtr(yd.TopMean),
		BottomMean: nanToPtr(yd.BottomMean),
		Diff:       nanToPtr(yd.Diff),
		NTop:       yd.NTop,
		NBottom:    yd.NBottom,
	})
}

func (yd *YearDiff) UnmarshalJSON(data []byte) error {
	var j jsonYearDiff
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	yd.Year = j.Year
	yd.TopMean = ptrToNaN(j.TopMean)
	yd.BottomMean = ptrToNaN(j.BottomMean)
	yd.Diff = ptrToNaN(j.Diff)
	yd.NTop = j.NTop
	yd.NBottom = j.NBottom
	return nil
}

// BucketCol returns the column name used for a bucket in the monthly panel
func BucketCol(bucket int) string {
	return fmt.Sprintf("bucket%d", bucket)
}

// BucketReturns computes the equal-weighted mean monthly return of each
// bucket over every formation year's 12-month holding window, as a monthly
// dataframe with one column per bucket. Bucket-months with no constituent
// observation are NaN, never zero. The aggregation works through a
// long-format accumulation keyed by (month, bucket) and pivots once at the
// end.
func BucketReturns(ctx context.Context, s *study.Study, p *panel.Panel, asgn Assignment,
	monthly []*data.MonthlyReturn) *dataframe.DataFrame[time.Time] {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "portfolio.BucketReturns")
	defer span.End()

	monthlyBySec := make(map[int32]map[time.Time]*data.MonthlyReturn, 10_000)
	for _, m := range monthly {
		byMonth, ok := monthlyBySec[m.SecurityID]
		if !ok {
			byMonth = make(map[time.Time]*data.MonthlyReturn, 12)
			monthlyBySec[m.SecurityID] = byMonth
		}
		byMonth[m.Month] = m
	}

	type key struct {
		month  time.Time
		bucket int
	}
	accum := make(map[key]*bucketMonth, 12*len(asgn)*s.NumBuckets)

	for year, buckets := range asgn {
		rows := p.YearCrossSection(year)
		for _, row := range rows {
			bucket, ok := buckets[row.CompanyID]
			if !ok {
				continue
			}

			byMonth := monthlyBySec[row.PrimarySecurityID]
			if byMonth == nil {
				continue
			}

			month := time.Date(year, s.FormationMonth, 1, 0, 0, 0, 0, time.UTC)
			for ii := 0; ii < 12; ii++ {
				month = month.AddDate(0, 1, 0)
				m, ok := byMonth[month]
				if !ok {
					continue
				}
				r := m.RealizedReturn()
				if math.IsNaN(r) {
					continue
				}

				k := key{month: month, bucket: bucket}
				bm, ok := accum[k]
				if !ok {
					bm = &bucketMonth{month: month, bucket: bucket}
					accum[k] = bm
				}
				bm.sum += r
				bm.n++
			}
		}
	}

	// pivot the long-format accumulation into a month-indexed dataframe
	months := make([]time.Time, 0, len(accum))
	seen := make(map[time.Time]bool, len(accum))
	for k := range accum {
		if !seen[k.month] {
			seen[k.month] = true
			months = append(months, k.month)
		}
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	colNames := make([]string, s.NumBuckets)
	for bucket := 1; bucket <= s.NumBuckets; bucket++ {
		colNames[bucket-1] = BucketCol(bucket)
	}

	df := &dataframe.DataFrame[time.Time]{
		ColNames: colNames,
		Vals:     make([][]float64, s.NumBuckets),
	}

	var undefined int
	for _, month := range months {
		vals := make(map[string]float64, s.NumBuckets)
		for bucket := 1; bucket <= s.NumBuckets; bucket++ {
			if bm, ok := accum[key{month: month, bucket: bucket}]; ok && bm.n > 0 {
				vals[BucketCol(bucket)] = bm.sum / float64(bm.n)
			} else {
				undefined++
			}
		}
		df.InsertMap(month, vals)
	}

	if undefined > 0 {
		log.Warn().Int("NumBucketMonths", undefined).Msg("bucket-months with no constituents are undefined")
	}

	log.Info().Int("NumMonths", df.Len()).Msg("computed bucket monthly returns")
	return df
}

// LongShort derives the top-minus-bottom differential series from the bucket
// return panel. Months where either side is undefined are NaN.
func LongShort(bucketReturns *dataframe.DataFrame[time.Time], numBuckets int) (*dataframe.DataFrame[time.Time], error) {
	return bucketReturns.Sub(BucketCol(numBuckets), BucketCol(1), LongShortCol)
}

// AnnualLongShort computes the annual differential per formation year:
// the equal-weighted mean of top-bucket firms' holding-period returns minus
// the same mean for the bottom bucket.
func AnnualLongShort(p *panel.Panel, asgn Assignment, numBuckets int) []*YearDiff {
	years := make([]int, 0, len(asgn))
	for year := range asgn {
		years = append(years, year)
	}
	sort.Ints(years)

	res := make([]*YearDiff, 0, len(years))
	for _, year := range years {
		buckets := asgn[year]
		var top, bottom []float64
		for _, row := range p.YearCrossSection(year) {
			bucket, ok := buckets[row.CompanyID]
			if !ok || math.IsNaN(row.AnnualReturn) {
				continue
			}
			switch bucket {
			case numBuckets:
				top = append(top, row.AnnualReturn)
			case 1:
				bottom = append(bottom, row.AnnualReturn)
			}
		}

		yd := &YearDiff{
			Year:       year,
			TopMean:    math.NaN(),
			BottomMean: math.NaN(),
			Diff:       math.NaN(),
			NTop:       len(top),
			NBottom:    len(bottom),
		}
		if len(top) > 0 {
			yd.TopMean = stat.Mean(top, nil)
		}
		if len(bottom) > 0 {
			yd.BottomMean = stat.Mean(bottom, nil)
		}
		if len(top) > 0 && len(bottom) > 0 {
			yd.Diff = yd.TopMean - yd.BottomMean
		} else {
			log.Warn().Int("FormationYear", year).Int("NTop", len(top)).Int("NBottom", len(bottom)).
				Msg("annual differential undefined; empty bucket")
		}
		res = append(res, yd)
	}

	return res
}
