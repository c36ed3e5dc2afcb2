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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-factor/risk"
)

var _ = Describe("HistoricalVaR", func() {
	Context("with 100 evenly spread returns", func() {
		var returns []float64

		BeforeEach(func() {
			// -0.50, -0.49, ..., 0.49 in shuffled order
			returns = make([]float64, 0, 100)
			for k := 99; k >= 0; k-- {
				returns = append(returns, float64(k-50)/100)
			}
		})

		It("takes the empirical tail quantile at 95%", func() {
			tr := risk.HistoricalVaR(returns, 0.95)
			Expect(tr.VaR).To(BeNumerically("~", -0.46, 1e-12))
			Expect(tr.Insufficient).To(BeFalse())
			Expect(tr.NumObs).To(Equal(100))
		})

		It("averages the tail beyond VaR for expected shortfall", func() {
			tr := risk.HistoricalVaR(returns, 0.95)
			Expect(tr.NumTail).To(Equal(5))
			Expect(tr.ES).To(BeNumerically("~", -0.48, 1e-12))
		})

		It("reports a deeper loss at 99% than at 95%", func() {
			tr95 := risk.HistoricalVaR(returns, 0.95)
			tr99 := risk.HistoricalVaR(returns, 0.99)
			Expect(math.Abs(tr99.VaR)).To(BeNumerically(">=", math.Abs(tr95.VaR)))
		})

		It("keeps expected shortfall at or below VaR", func() {
			for _, confidence := range []float64{0.95, 0.99} {
				tr := risk.HistoricalVaR(returns, confidence)
				Expect(tr.ES).To(BeNumerically("<=", tr.VaR))
			}
		})

		It("ignores NaN observations", func() {
			tr := risk.HistoricalVaR(append(returns, math.NaN(), math.NaN()), 0.95)
			Expect(tr.NumObs).To(Equal(100))
			Expect(tr.VaR).To(BeNumerically("~", -0.46, 1e-12))
		})
	})

	It("flags samples too small to resolve the tail", func() {
		returns := []float64{-0.05, -0.02, 0.01, 0.02, 0.03, 0.01, -0.01, 0.02, 0.04, -0.03}
		tr := risk.HistoricalVaR(returns, 0.99)
		Expect(tr.Insufficient).To(BeTrue())
		// the measure is still reported
		Expect(math.IsNaN(tr.VaR)).To(BeFalse())
	})

	It("handles an empty series", func() {
		tr := risk.HistoricalVaR(nil, 0.95)
		Expect(tr.Insufficient).To(BeTrue())
		Expect(math.IsNaN(tr.VaR)).To(BeTrue())
		Expect(math.IsNaN(tr.ES)).To(BeTrue())
	})
})

var _ = Describe("SummarizeTail", func() {
	It("reports both standard confidence levels", func() {
		returns := make([]float64, 0, 120)
		for k := 0; k < 120; k++ {
			returns = append(returns, float64(k-60)/100)
		}
		summary := risk.SummarizeTail("longshort", returns)
		Expect(summary.Series).To(Equal("longshort"))
		Expect(summary.Levels).To(HaveLen(2))
		Expect(summary.Levels[0].Confidence).To(Equal(0.95))
		Expect(summary.Levels[1].Confidence).To(Equal(0.99))
		Expect(summary.Levels[1].VaR).To(BeNumerically("<=", summary.Levels[0].VaR))
	})
})
