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

package data_test

import (
	"math"
	"time"

	json "github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-factor/data"
)

var _ = Describe("MonthlyReturn", func() {
	Describe("RealizedReturn", func() {
		It("compounds the return and the delisting return", func() {
			m := &data.MonthlyReturn{Return: 0.10, DelistReturn: -0.5}
			Expect(m.RealizedReturn()).To(BeNumerically("~", 1.1*0.5-1, 1e-12))
		})

		It("passes through the raw return when no delisting occurred", func() {
			m := &data.MonthlyReturn{Return: 0.02, DelistReturn: math.NaN()}
			Expect(m.RealizedReturn()).To(Equal(0.02))
		})

		It("stands alone on the delisting return when the raw return is missing", func() {
			m := &data.MonthlyReturn{Return: math.NaN(), DelistReturn: -0.3}
			Expect(m.RealizedReturn()).To(Equal(-0.3))
		})

		It("is NaN when neither return is known", func() {
			m := &data.MonthlyReturn{Return: math.NaN(), DelistReturn: math.NaN()}
			Expect(math.IsNaN(m.RealizedReturn())).To(BeTrue())
		})
	})

	It("serializes missing values as null", func() {
		m := &data.MonthlyReturn{
			SecurityID:   7,
			Month:        time.Date(1980, 4, 1, 0, 0, 0, 0, time.UTC),
			Return:       0.02,
			DelistReturn: math.NaN(),
			Exchange:     data.ExchangeNYSE,
			MarketEquity: math.NaN(),
		}

		raw, err := json.Marshal(m)
		Expect(err).To(BeNil())
		Expect(string(raw)).To(ContainSubstring(`"dlret":null`))

		var back data.MonthlyReturn
		Expect(json.Unmarshal(raw, &back)).To(Succeed())
		Expect(back.SecurityID).To(Equal(int32(7)))
		Expect(back.Return).To(Equal(0.02))
		Expect(math.IsNaN(back.DelistReturn)).To(BeTrue())
		Expect(math.IsNaN(back.MarketEquity)).To(BeTrue())
	})
})

var _ = Describe("MonthKey", func() {
	It("normalizes to the first of the month in UTC", func() {
		key := data.MonthKey(time.Date(1980, 4, 30, 15, 4, 5, 0, time.FixedZone("EST", -5*3600)))
		Expect(key).To(Equal(time.Date(1980, 4, 1, 0, 0, 0, 0, time.UTC)))
	})
})

var _ = Describe("LinkRecord", func() {
	Describe("Covers", func() {
		rec := &data.LinkRecord{
			SecurityID: 1,
			CompanyID:  100,
			Start:      time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
			End:        time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		}

		It("includes the start date", func() {
			Expect(rec.Covers(time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC))).To(BeTrue())
		})

		It("excludes the end date", func() {
			Expect(rec.Covers(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC))).To(BeFalse())
		})

		It("covers interior dates", func() {
			Expect(rec.Covers(time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC))).To(BeTrue())
		})

		It("excludes dates before the start", func() {
			Expect(rec.Covers(time.Date(1979, 12, 31, 0, 0, 0, 0, time.UTC))).To(BeFalse())
		})

		It("remains active through the present when End is unset", func() {
			open := &data.LinkRecord{Start: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)}
			Expect(open.Covers(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))).To(BeTrue())
		})
	})
})

var _ = Describe("LinkTable", func() {
	var lt *data.LinkTable

	BeforeEach(func() {
		lt = data.NewLinkTable([]*data.LinkRecord{
			{SecurityID: 1, CompanyID: 100, Start: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
			{SecurityID: 2, CompanyID: 200, Start: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
				End: time.Date(1985, 6, 30, 0, 0, 0, 0, time.UTC)},
			{SecurityID: 2, CompanyID: 300, Start: time.Date(1985, 6, 30, 0, 0, 0, 0, time.UTC)},
		})
	})

	It("resolves a security to its company", func() {
		companyID, ok := lt.ResolveCompany(1, time.Date(1980, 4, 30, 0, 0, 0, 0, time.UTC))
		Expect(ok).To(BeTrue())
		Expect(companyID).To(Equal(int32(100)))
	})

	It("respects link validity windows", func() {
		companyID, ok := lt.ResolveCompany(2, time.Date(1980, 4, 30, 0, 0, 0, 0, time.UTC))
		Expect(ok).To(BeTrue())
		Expect(companyID).To(Equal(int32(200)))

		companyID, ok = lt.ResolveCompany(2, time.Date(1990, 4, 30, 0, 0, 0, 0, time.UTC))
		Expect(ok).To(BeTrue())
		Expect(companyID).To(Equal(int32(300)))
	})

	It("reports unknown securities", func() {
		_, ok := lt.ResolveCompany(99, time.Date(1980, 4, 30, 0, 0, 0, 0, time.UTC))
		Expect(ok).To(BeFalse())
	})

	It("prefers the earliest link when intervals overlap", func() {
		lt.Add(&data.LinkRecord{SecurityID: 1, CompanyID: 900,
			Start: time.Date(1975, 1, 1, 0, 0, 0, 0, time.UTC)})
		companyID, ok := lt.ResolveCompany(1, time.Date(1980, 4, 30, 0, 0, 0, 0, time.UTC))
		Expect(ok).To(BeTrue())
		Expect(companyID).To(Equal(int32(100)))
	})
})
