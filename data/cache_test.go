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
	"context"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-factor/data"
	"github.com/penny-vault/pv-factor/pgxmockhelper"
)

var _ = Describe("CachedMonthlyReturns", func() {
	var (
		begin time.Time
		end   time.Time
	)

	BeforeEach(func() {
		data.SetupCache()
		begin = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(1980, 12, 31, 0, 0, 0, 0, time.UTC)
	})

	It("serves repeated reads of the same window from memory", func() {
		// only one database round-trip is primed
		pgxmockhelper.MockMonthlyQuery(dbPool, "testdata/security_monthly.csv", begin, end)

		first, err := data.CachedMonthlyReturns(context.Background(), begin, end)
		Expect(err).To(BeNil())
		Expect(first).To(HaveLen(3))

		second, err := data.CachedMonthlyReturns(context.Background(), begin, end)
		Expect(err).To(BeNil())
		Expect(second).To(HaveLen(3))
		Expect(second[0].SecurityID).To(Equal(first[0].SecurityID))
		Expect(second[0].Return).To(Equal(first[0].Return))
	})

	It("round-trips NaN fields through the cache", func() {
		pgxmockhelper.MockMonthlyQuery(dbPool, "testdata/security_monthly.csv", begin, end)

		_, err := data.CachedMonthlyReturns(context.Background(), begin, end)
		Expect(err).To(BeNil())

		cached, err := data.CachedMonthlyReturns(context.Background(), begin, end)
		Expect(err).To(BeNil())
		Expect(math.IsNaN(cached[0].DelistReturn)).To(BeTrue())
	})
})
