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

package panel_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-factor/panel"
)

var _ = Describe("FormationYear", func() {
	DescribeTable("with an April formation month",
		func(reportDate time.Time, expected int) {
			Expect(panel.FormationYear(reportDate, time.April)).To(Equal(expected))
		},
		Entry("report in January is available for the same year's formation",
			time.Date(1980, 1, 15, 0, 0, 0, 0, time.UTC), 1980),
		Entry("report in April is available for the same year's formation",
			time.Date(1980, 4, 30, 0, 0, 0, 0, time.UTC), 1980),
		Entry("report in May arrives too late and waits a year",
			time.Date(1980, 5, 1, 0, 0, 0, 0, time.UTC), 1981),
		Entry("report in December waits for next year's formation",
			time.Date(1980, 12, 31, 0, 0, 0, 0, time.UTC), 1981),
	)

	DescribeTable("with a December formation month",
		func(reportDate time.Time, expected int) {
			Expect(panel.FormationYear(reportDate, time.December)).To(Equal(expected))
		},
		Entry("mid-year report makes the same year's formation",
			time.Date(1980, 6, 30, 0, 0, 0, 0, time.UTC), 1980),
		Entry("December report still makes the same year's formation",
			time.Date(1980, 12, 15, 0, 0, 0, 0, time.UTC), 1980),
	)
})
