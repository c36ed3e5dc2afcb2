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

package reports

import (
	"fmt"
	"math"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/pv-factor/portfolio"
	"github.com/penny-vault/pv-factor/risk"
)

func fmtVal(v float64) string {
	if math.IsNaN(v) {
		return "--"
	}
	return fmt.Sprintf("%.4f", v)
}

// RegressionTable prints an ASCII formatted table of one regression result
func RegressionTable(res *risk.RegressionResult) string {
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Coefficient", "Estimate", "Std Err", "t-Stat", "p-Value"})
	footer := []string{
		res.Model,
		fmt.Sprintf("N=%d", res.NumObs),
		"",
		fmt.Sprintf("R2=%.4f", res.R2),
		fmt.Sprintf("Adj R2=%.4f", res.AdjR2),
	}
	table.SetFooter(footer)
	table.SetBorder(false)

	for _, coef := range res.Coefficients {
		table.Append([]string{
			coef.Name,
			fmtVal(coef.Estimate),
			fmtVal(coef.StdErr),
			fmtVal(coef.TStat),
			fmtVal(coef.PValue),
		})
	}

	table.Render()
	return s.String()
}

// TailRiskTable prints an ASCII formatted table of the tail-risk summaries
func TailRiskTable(summaries []*risk.TailSummary) string {
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Series", "Confidence", "VaR", "ES", "Obs", "Tail Obs", "Note"})
	table.SetBorder(false)

	for _, summary := range summaries {
		for _, level := range summary.Levels {
			note := ""
			if level.Insufficient {
				note = "insufficient sample"
			}
			table.Append([]string{
				summary.Series,
				fmt.Sprintf("%.0f%%", level.Confidence*100),
				fmtVal(level.VaR),
				fmtVal(level.ES),
				fmt.Sprintf("%d", level.NumObs),
				fmt.Sprintf("%d", level.NumTail),
				note,
			})
		}
	}

	table.Render()
	return s.String()
}

// AnnualTable prints an ASCII formatted table of the yearly long-short
// differentials
func AnnualTable(years []*portfolio.YearDiff) string {
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Formation Year", "Top Mean", "Bottom Mean", "Diff", "N Top", "N Bottom"})
	footer := make([]string, 6)
	footer[0] = "Num Years"
	footer[1] = fmt.Sprintf("%d", len(years))
	table.SetFooter(footer)
	table.SetBorder(false)

	for _, yd := range years {
		table.Append([]string{
			fmt.Sprintf("%d", yd.Year),
			fmtVal(yd.TopMean),
			fmtVal(yd.BottomMean),
			fmtVal(yd.Diff),
			fmt.Sprintf("%d", yd.NTop),
			fmt.Sprintf("%d", yd.NBottom),
		})
	}

	table.Render()
	return s.String()
}
