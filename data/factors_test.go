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
	"os"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-factor/data"
)

var _ = Describe("GetFactors", func() {
	Context("from a local file", func() {
		It("parses and rescales factor returns", func() {
			factors, err := data.GetFactors(context.Background(), "testdata/factors.csv")
			Expect(err).To(BeNil())
			Expect(factors).To(HaveLen(3))

			Expect(factors[0].Month).To(Equal(time.Date(1980, 5, 1, 0, 0, 0, 0, time.UTC)))
			Expect(factors[0].MktRF).To(BeNumerically("~", 0.0123, 1e-12))
			Expect(factors[0].SMB).To(BeNumerically("~", -0.0045, 1e-12))
			Expect(factors[0].RF).To(BeNumerically("~", 0.0083, 1e-12))
		})

		It("errors when the file does not exist", func() {
			_, err := data.GetFactors(context.Background(), "testdata/missing.csv")
			Expect(err).ToNot(BeNil())
		})

		It("rejects duplicated months", func() {
			fn := GinkgoT().TempDir() + "/dup.csv"
			doc := []byte("Date,Mkt-RF,SMB,HML,RF\n198005,1.0,0.1,0.2,0.3\n198005,2.0,0.2,0.3,0.4\n")
			Expect(os.WriteFile(fn, doc, 0644)).To(Succeed())

			_, err := data.GetFactors(context.Background(), fn)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("duplicate month"))
		})

		It("accepts dashed date formats", func() {
			fn := GinkgoT().TempDir() + "/dashed.csv"
			doc := []byte("Date,Mkt-RF,SMB,HML,RF\n1980-05,1.0,0.1,0.2,0.3\n")
			Expect(os.WriteFile(fn, doc, 0644)).To(Succeed())

			factors, err := data.GetFactors(context.Background(), fn)
			Expect(err).To(BeNil())
			Expect(factors[0].Month).To(Equal(time.Date(1980, 5, 1, 0, 0, 0, 0, time.UTC)))
		})
	})

	Context("over http", func() {
		BeforeEach(func() {
			httpmock.ActivateNonDefault(data.FactorHTTPClient())
		})

		AfterEach(func() {
			httpmock.DeactivateAndReset()
		})

		It("downloads the factor file", func() {
			content, err := os.ReadFile("testdata/factors.csv")
			Expect(err).To(BeNil())
			httpmock.RegisterResponder("GET", "https://factors.example.com/monthly.csv",
				httpmock.NewBytesResponder(200, content))

			factors, err := data.GetFactors(context.Background(), "https://factors.example.com/monthly.csv")
			Expect(err).To(BeNil())
			Expect(factors).To(HaveLen(3))
		})

		It("errors on a failed download", func() {
			httpmock.RegisterResponder("GET", "https://factors.example.com/monthly.csv",
				httpmock.NewStringResponder(404, "not found"))

			_, err := data.GetFactors(context.Background(), "https://factors.example.com/monthly.csv")
			Expect(err).To(MatchError(data.ErrFactorDownload))
		})
	})
})
