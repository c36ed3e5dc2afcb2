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

// Package panel assembles firm-year observations from fundamentals, monthly
// market data and the identifier link table. Each stage consumes an immutable
// snapshot and emits a new one; nothing here mutates its inputs.
package panel

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/penny-vault/pv-factor/data"
	"github.com/penny-vault/pv-factor/observability/opentelemetry"
	"github.com/penny-vault/pv-factor/study"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

// Row is one firm-year observation. Missing numeric fields are NaN.
type Row struct {
	CompanyID     int32
	FormationYear int

	// PrimarySecurityID is the largest linked share class; its return series
	// represents the firm over the holding period
	PrimarySecurityID int32

	RDExpense    float64
	BookEquity   float64
	MarketEquity float64
	RDM          float64
	AnnualReturn float64
}

// Panel is the firm-year table the sorter and aggregator operate on. Rows are
// ordered by (FormationYear, CompanyID) so downstream output is deterministic.
type Panel struct {
	Rows []*Row
}

// firmMarket captures one company's market state at a formation date: total
// market equity over its linked securities and the primary (largest) security
// that carries the holding-period return
type firmMarket struct {
	marketEquity float64
	primarySec   int32
	primaryME    float64
}

// Assemble joins fundamentals to formation-month market equity and the
// following 12-month holding return. Duplicate (company, formation year)
// fundamentals collapse to the earliest report date with a warning; rows
// without a valid link or positive market equity are dropped and counted.
func Assemble(ctx context.Context, s *study.Study, fundamentals []*data.Fundamental,
	monthly []*data.MonthlyReturn, links *data.LinkTable) *Panel {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "panel.Assemble")
	defer span.End()

	monthlyBySec := indexMonthly(monthly)
	market := marketByFirmYear(s, monthly, links)

	// collapse duplicate (company, formation year) fundamentals to earliest
	// report date
	fnd := make(map[int32]map[int]*data.Fundamental, len(fundamentals))
	var dupes int
	for _, f := range fundamentals {
		year := FormationYear(f.ReportDate, s.FormationMonth)
		if year < s.BaseYear || year > s.EndYear {
			continue
		}

		byYear, ok := fnd[f.CompanyID]
		if !ok {
			byYear = make(map[int]*data.Fundamental)
			fnd[f.CompanyID] = byYear
		}

		if prev, ok := byYear[year]; ok {
			dupes++
			log.Warn().Int32("CompanyID", f.CompanyID).Int("FormationYear", year).
				Time("KeptReportDate", prev.ReportDate).Time("DroppedReportDate", f.ReportDate).
				Msg("duplicate fundamental for company-year; keeping earliest report")
			if f.ReportDate.Before(prev.ReportDate) {
				byYear[year] = f
			}
			continue
		}
		byYear[year] = f
	}

	p := &Panel{Rows: make([]*Row, 0, len(fundamentals))}
	var droppedNoMarket, droppedNoReturn int
	for companyID, byYear := range fnd {
		for year, f := range byYear {
			fm, ok := market[companyID][year]
			if !ok || !(fm.marketEquity > 0) {
				droppedNoMarket++
				continue
			}

			annualReturn := holdingReturn(s, fm.primarySec, year, monthlyBySec)
			if s.RequireReturn && math.IsNaN(annualReturn) {
				droppedNoReturn++
				continue
			}

			rdm := math.NaN()
			if !math.IsNaN(f.RDExpense) && fm.marketEquity > 0 {
				rdm = f.RDExpense / fm.marketEquity
			}

			p.Rows = append(p.Rows, &Row{
				CompanyID:         companyID,
				FormationYear:     year,
				PrimarySecurityID: fm.primarySec,
				RDExpense:         f.RDExpense,
				BookEquity:        f.BookEquity,
				MarketEquity:      fm.marketEquity,
				RDM:               rdm,
				AnnualReturn:      annualReturn,
			})
		}
	}

	sort.Slice(p.Rows, func(i, j int) bool {
		if p.Rows[i].FormationYear == p.Rows[j].FormationYear {
			return p.Rows[i].CompanyID < p.Rows[j].CompanyID
		}
		return p.Rows[i].FormationYear < p.Rows[j].FormationYear
	})

	log.Info().Int("NumRows", len(p.Rows)).Int("DuplicateFundamentals", dupes).
		Int("DroppedNoMarket", droppedNoMarket).Int("DroppedNoReturn", droppedNoReturn).
		Msg("assembled firm-year panel")
	return p
}

// indexMonthly builds a security -> month -> observation lookup
func indexMonthly(monthly []*data.MonthlyReturn) map[int32]map[time.Time]*data.MonthlyReturn {
	res := make(map[int32]map[time.Time]*data.MonthlyReturn, 10_000)
	for _, m := range monthly {
		byMonth, ok := res[m.SecurityID]
		if !ok {
			byMonth = make(map[time.Time]*data.MonthlyReturn, 12)
			res[m.SecurityID] = byMonth
		}
		byMonth[m.Month] = m
	}
	return res
}

// marketByFirmYear aggregates formation-month market equity per company and
// year. Companies with several linked securities (share classes) sum their
// market equity; the largest class is the primary security whose return
// series represents the firm.
func marketByFirmYear(s *study.Study, monthly []*data.MonthlyReturn, links *data.LinkTable) map[int32]map[int]*firmMarket {
	res := make(map[int32]map[int]*firmMarket, 10_000)
	for _, m := range monthly {
		if m.Month.Month() != s.FormationMonth {
			continue
		}
		year := m.Month.Year()
		if year < s.BaseYear || year > s.EndYear {
			continue
		}
		if math.IsNaN(m.MarketEquity) {
			continue
		}

		companyID, ok := links.ResolveCompany(m.SecurityID, s.FormationDate(year))
		if !ok {
			continue
		}

		byYear, ok := res[companyID]
		if !ok {
			byYear = make(map[int]*firmMarket)
			res[companyID] = byYear
		}

		fm, ok := byYear[year]
		if !ok {
			fm = &firmMarket{primarySec: m.SecurityID, primaryME: m.MarketEquity}
			byYear[year] = fm
		}

		fm.marketEquity += m.MarketEquity
		if m.MarketEquity > fm.primaryME ||
			(m.MarketEquity == fm.primaryME && m.SecurityID < fm.primarySec) {
			fm.primarySec = m.SecurityID
			fm.primaryME = m.MarketEquity
		}
	}
	return res
}

// holdingReturn compounds the primary security's realized monthly returns
// over the 12 months following the formation month. Months without an
// observation are skipped so a mid-window delisting truncates rather than
// voids the window; NaN when no month is observed at all.
func holdingReturn(s *study.Study, securityID int32, year int, monthlyBySec map[int32]map[time.Time]*data.MonthlyReturn) float64 {
	byMonth, ok := monthlyBySec[securityID]
	if !ok {
		return math.NaN()
	}

	growth := 1.0
	observed := 0
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
		growth *= 1.0 + r
		observed++
	}

	if observed == 0 {
		return math.NaN()
	}
	return growth - 1.0
}

// YearCrossSection returns the rows for one formation year in company order
func (p *Panel) YearCrossSection(year int) []*Row {
	res := make([]*Row, 0, 500)
	for _, row := range p.Rows {
		if row.FormationYear == year {
			res = append(res, row)
		}
	}
	return res
}

// Years returns the sorted list of formation years present in the panel
func (p *Panel) Years() []int {
	seen := make(map[int]bool)
	for _, row := range p.Rows {
		seen[row.FormationYear] = true
	}

	years := make([]int, 0, len(seen))
	for year := range seen {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}

// Len returns the number of firm-year rows
func (p *Panel) Len() int {
	return len(p.Rows)
}
