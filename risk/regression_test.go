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

package risk_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-factor/data"
	"github.com/penny-vault/pv-factor/dataframe"
	"github.com/penny-vault/pv-factor/risk"
)

var _ = Describe("Regress", func() {
	It("recovers the coefficients of a small sample", func() {
		x := []float64{1, 2, 3, 4}
		y := []float64{2, 4, 5, 8}

		res, err := risk.Regress("test", y, [][]float64{x}, []string{"x"})
		Expect(err).To(BeNil())
		Expect(res.NumObs).To(Equal(4))
		Expect(res.Coefficients).To(HaveLen(2))
		Expect(res.Alpha().Estimate).To(BeNumerically("~", 0.0, 1e-10))
		Expect(res.Coefficients[1].Name).To(Equal("x"))
		Expect(res.Coefficients[1].Estimate).To(BeNumerically("~", 1.9, 1e-10))
		Expect(res.R2).To(BeNumerically("~", 1-0.7/18.75, 1e-10))
	})

	It("reports sampling statistics for every coefficient", func() {
		x := []float64{1, 2, 3, 4, 5, 6, 7, 8}
		y := []float64{1.1, 2.0, 2.9, 4.2, 4.8, 6.1, 7.0, 7.9}

		res, err := risk.Regress("test", y, [][]float64{x}, []string{"x"})
		Expect(err).To(BeNil())
		beta := res.Coefficients[1]
		Expect(beta.StdErr).To(BeNumerically(">", 0))
		Expect(beta.TStat).To(BeNumerically("~", beta.Estimate/beta.StdErr, 1e-10))
		Expect(beta.PValue).To(BeNumerically(">=", 0))
		Expect(beta.PValue).To(BeNumerically("<=", 1))
		// the slope is clearly significant in this sample
		Expect(beta.PValue).To(BeNumerically("<", 0.01))
		Expect(res.AdjR2).To(BeNumerically("<=", res.R2))
	})

	It("errors when there are too few observations", func() {
		_, err := risk.Regress("test", []float64{1, 2}, [][]float64{{1, 2}}, []string{"x"})
		Expect(err).To(MatchError(risk.ErrTooFewObservations))
	})

	It("errors when a regressor length differs", func() {
		_, err := risk.Regress("test", []float64{1, 2, 3, 4}, [][]float64{{1, 2}}, []string{"x"})
		Expect(err).To(MatchError(risk.ErrMisalignedSeries))
	})
})

var _ = Describe("factor models", func() {
	var aligned *risk.AlignedSeries

	BeforeEach(func() {
		n := 24
		aligned = &risk.AlignedSeries{
			Months: make([]time.Time, n),
			Diff:   make([]float64, n),
			MktRF:  make([]float64, n),
			SMB:    make([]float64, n),
			HML:    make([]float64, n),
			RF:     make([]float64, n),
		}
		dt := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
		for ii := 0; ii < n; ii++ {
			aligned.Months[ii] = dt
			dt = dt.AddDate(0, 1, 0)

			mkt := 0.01 * math.Sin(float64(ii))
			smb := 0.005 * math.Cos(float64(ii))
			hml := 0.002 * math.Sin(float64(ii)*1.7)
			rf := 0.003

			aligned.MktRF[ii] = mkt
			aligned.SMB[ii] = smb
			aligned.HML[ii] = hml
			aligned.RF[ii] = rf
			// exact three-factor structure
			aligned.Diff[ii] = rf + 0.004 + 0.6*mkt - 0.3*smb + 0.8*hml
		}
	})

	It("subtracts the risk-free rate from the differential", func() {
		excess := aligned.ExcessDiff()
		Expect(excess[0]).To(BeNumerically("~", aligned.Diff[0]-0.003, 1e-12))
	})

	It("recovers alpha and betas in the three-factor model", func() {
		res, err := risk.ThreeFactor(aligned)
		Expect(err).To(BeNil())
		Expect(res.Model).To(Equal("FF3"))
		Expect(res.Alpha().Estimate).To(BeNumerically("~", 0.004, 1e-9))
		Expect(res.Coefficients[1].Estimate).To(BeNumerically("~", 0.6, 1e-9))
		Expect(res.Coefficients[2].Estimate).To(BeNumerically("~", -0.3, 1e-9))
		Expect(res.Coefficients[3].Estimate).To(BeNumerically("~", 0.8, 1e-9))
	})

	It("fits the market model", func() {
		res, err := risk.CAPM(aligned)
		Expect(err).To(BeNil())
		Expect(res.Model).To(Equal("CAPM"))
		Expect(res.Coefficients).To(HaveLen(2))
		Expect(res.Coefficients[1].Name).To(Equal("MktRF"))
	})
})

var _ = Describe("AlignByMonth", func() {
	factorRow := func(year int, month time.Month) *data.FactorReturns {
		return &data.FactorReturns{
			Month: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
			MktRF: 0.01,
			SMB:   0.002,
			HML:   0.003,
			RF:    0.004,
		}
	}

	newDiff := func(months []time.Time, vals []float64) *dataframe.DataFrame[time.Time] {
		return &dataframe.DataFrame[time.Time]{
			Index:    months,
			ColNames: []string{"longshort"},
			Vals:     [][]float64{vals},
		}
	}

	It("joins on the calendar month", func() {
		months := []time.Time{
			time.Date(1980, 5, 1, 0, 0, 0, 0, time.UTC),
			time.Date(1980, 6, 1, 0, 0, 0, 0, time.UTC),
			time.Date(1980, 7, 1, 0, 0, 0, 0, time.UTC),
		}
		diff := newDiff(months, []float64{0.01, 0.02, 0.03})
		factors := []*data.FactorReturns{
			factorRow(1980, 5),
			factorRow(1980, 6),
			factorRow(1980, 7),
		}

		aligned, err := risk.AlignByMonth(diff, factors)
		Expect(err).To(BeNil())
		Expect(aligned.Months).To(HaveLen(3))
		Expect(aligned.Diff).To(Equal([]float64{0.01, 0.02, 0.03}))
		Expect(aligned.RF[0]).To(Equal(0.004))
	})

	It("drops months missing on either side", func() {
		months := []time.Time{
			time.Date(1980, 5, 1, 0, 0, 0, 0, time.UTC),
			time.Date(1980, 6, 1, 0, 0, 0, 0, time.UTC),
			time.Date(1980, 7, 1, 0, 0, 0, 0, time.UTC),
		}
		diff := newDiff(months, []float64{0.01, math.NaN(), 0.03})
		factors := []*data.FactorReturns{
			factorRow(1980, 5),
			factorRow(1980, 6),
			// July factor data missing
		}

		aligned, err := risk.AlignByMonth(diff, factors)
		Expect(err).To(BeNil())
		Expect(aligned.Months).To(HaveLen(1))
		Expect(aligned.Diff).To(Equal([]float64{0.01}))
	})

	It("errors when there is no overlap", func() {
		months := []time.Time{time.Date(1980, 5, 1, 0, 0, 0, 0, time.UTC)}
		diff := newDiff(months, []float64{0.01})
		factors := []*data.FactorReturns{factorRow(1990, 5)}

		_, err := risk.AlignByMonth(diff, factors)
		Expect(err).To(MatchError(risk.ErrMisalignedSeries))
	})

	It("errors on duplicated factor months", func() {
		months := []time.Time{time.Date(1980, 5, 1, 0, 0, 0, 0, time.UTC)}
		diff := newDiff(months, []float64{0.01})
		factors := []*data.FactorReturns{factorRow(1980, 5), factorRow(1980, 5)}

		_, err := risk.AlignByMonth(diff, factors)
		Expect(err).To(MatchError(risk.ErrDuplicatePeriod))
	})
})
