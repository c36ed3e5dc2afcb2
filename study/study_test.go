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

package study_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-factor/panel"
	"github.com/penny-vault/pv-factor/study"
)

var _ = Describe("Study", func() {
	Context("with the default definition", func() {
		var s *study.Study

		BeforeEach(func() {
			s = study.DefaultStudy()
		})

		It("validates", func() {
			Expect(s.Validate()).To(BeNil())
		})

		It("forms portfolios in April", func() {
			Expect(s.FormationMonth).To(Equal(time.April))
		})

		It("computes the formation date as the last day of the month", func() {
			Expect(s.FormationDate(1980)).To(Equal(time.Date(1980, 4, 30, 0, 0, 0, 0, time.UTC)))
		})

		It("rolls the formation date over year end", func() {
			s.FormationMonth = time.December
			Expect(s.FormationDate(1980)).To(Equal(time.Date(1980, 12, 31, 0, 0, 0, 0, time.UTC)))
		})

		It("spans the data window through the last holding period", func() {
			begin, end := s.Window()
			Expect(begin).To(Equal(time.Date(1975, 4, 1, 0, 0, 0, 0, time.UTC)))
			Expect(end).To(Equal(time.Date(1996, 4, 30, 0, 0, 0, 0, time.UTC)))
		})

		It("fetches fundamentals from the month after the prior year's formation", func() {
			begin, end := s.FundamentalsWindow()
			Expect(begin).To(Equal(time.Date(1974, 5, 1, 0, 0, 0, 0, time.UTC)))
			Expect(end).To(Equal(time.Date(1995, 4, 30, 0, 0, 0, 0, time.UTC)))
		})

		It("covers base-year reports dated before the formation month", func() {
			// a February report belongs to that year's April formation and
			// must fall inside the fetch range
			report := time.Date(1975, 2, 15, 0, 0, 0, 0, time.UTC)
			Expect(panel.FormationYear(report, s.FormationMonth)).To(Equal(1975))

			begin, end := s.FundamentalsWindow()
			Expect(report.Before(begin)).To(BeFalse())
			Expect(report.After(end)).To(BeFalse())
		})

		It("keeps a December formation's fundamentals window inside the base year", func() {
			s.FormationMonth = time.December
			begin, _ := s.FundamentalsWindow()
			Expect(begin).To(Equal(time.Date(1975, 1, 1, 0, 0, 0, 0, time.UTC)))
		})
	})

	DescribeTable("invalid definitions",
		func(mutate func(*study.Study), expected error) {
			s := study.DefaultStudy()
			mutate(s)
			Expect(s.Validate()).To(MatchError(expected))
		},
		Entry("formation month too large", func(s *study.Study) { s.FormationMonth = 13 }, study.ErrInvalidFormationMonth),
		Entry("formation month zero", func(s *study.Study) { s.FormationMonth = 0 }, study.ErrInvalidFormationMonth),
		Entry("single bucket", func(s *study.Study) { s.NumBuckets = 1 }, study.ErrInvalidBucketCount),
		Entry("inverted window", func(s *study.Study) { s.BaseYear = 2000; s.EndYear = 1990 }, study.ErrInvalidWindow),
		Entry("zero span", func(s *study.Study) { s.MinSpan = 0 }, study.ErrInvalidMinSpan),
		Entry("span longer than the window", func(s *study.Study) { s.BaseYear = 1990; s.MinSpan = 10 }, study.ErrSpanExceedsWindow),
	)

	Describe("Load", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("applies defaults for omitted keys", func() {
			fn := filepath.Join(dir, "study.toml")
			doc := []byte("name = \"my-study\"\nbase_year = 1980\nend_year = 1990\nmin_span = 5\n")
			Expect(os.WriteFile(fn, doc, 0644)).To(Succeed())

			s, err := study.Load(fn)
			Expect(err).To(BeNil())
			Expect(s.Name).To(Equal("my-study"))
			Expect(s.BaseYear).To(Equal(1980))
			Expect(s.MinSpan).To(Equal(5))
			Expect(s.FormationMonth).To(Equal(time.April))
			Expect(s.NumBuckets).To(Equal(5))
		})

		It("rejects invalid parameter combinations", func() {
			fn := filepath.Join(dir, "study.toml")
			doc := []byte("base_year = 1990\nend_year = 1980\n")
			Expect(os.WriteFile(fn, doc, 0644)).To(Succeed())

			_, err := study.Load(fn)
			Expect(err).To(MatchError(study.ErrInvalidWindow))
		})

		It("errors when the file does not exist", func() {
			_, err := study.Load(filepath.Join(dir, "missing.toml"))
			Expect(err).ToNot(BeNil())
		})
	})
})
