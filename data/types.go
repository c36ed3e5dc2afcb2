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

package data

import (
	"math"
	"time"

	"github.com/goccy/go-json"
)

// Exchange codes for the three major US exchanges; monthly security rows with
// any other exchange code are excluded from the study universe.
const (
	ExchangeNYSE   = 1
	ExchangeAMEX   = 2
	ExchangeNASDAQ = 3
)

// Fundamental is one annual report row for a company. Missing numeric fields
// are NaN, never zero.
type Fundamental struct {
	CompanyID  int32
	ReportDate time.Time
	FiscalYear int
	RDExpense  float64
	Revenue    float64
	BookEquity float64
}

// MonthlyReturn is one security-month observation. Month is normalized to the
// first day of the calendar month in UTC. DelistReturn is NaN when the
// security did not delist in the month.
type MonthlyReturn struct {
	SecurityID   int32
	Month        time.Time
	Return       float64
	DelistReturn float64
	Exchange     int
	MarketEquity float64
}

// RealizedReturn folds the delisting return into the raw return. When both are
// present they compound; when only the delisting return exists it stands alone.
// NaN when neither is known.
func (m *MonthlyReturn) RealizedReturn() float64 {
	hasRet := !math.IsNaN(m.Return)
	hasDlret := !math.IsNaN(m.DelistReturn)

	switch {
	case hasRet && hasDlret:
		return (1.0+m.Return)*(1.0+m.DelistReturn) - 1.0
	case hasRet:
		return m.Return
	case hasDlret:
		return m.DelistReturn
	}
	return math.NaN()
}

// jsonMonthlyReturn mirrors MonthlyReturn for serialization; NaN fields are
// encoded as null since JSON has no NaN literal
type jsonMonthlyReturn struct {
	SecurityID   int32     `json:"securityId"`
	Month        time.Time `json:"month"`
	Return       *float64  `json:"ret"`
	DelistReturn *float64  `json:"dlret"`
	Exchange     int       `json:"exchange"`
	MarketEquity *float64  `json:"marketEquity"`
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

func (m MonthlyReturn) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonMonthlyReturn{
		SecurityID:   m.SecurityID,
		Month:        m.Month,
		Return:       nanToPtr(m.Return),
		DelistReturn: nanToPtr(m.DelistReturn),
		Exchange:     m.Exchange,
		MarketEquity: nanToPtr(m.MarketEquity),
	})
}

func (m *MonthlyReturn) UnmarshalJSON(raw []byte) error {
	var j jsonMonthlyReturn
	if err := json.Unmarshal(raw, &j); err != nil {
		return err
	}
	m.SecurityID = j.SecurityID
	m.Month = j.Month
	m.Return = ptrToNaN(j.Return)
	m.DelistReturn = ptrToNaN(j.DelistReturn)
	m.Exchange = j.Exchange
	m.MarketEquity = ptrToNaN(j.MarketEquity)
	return nil
}

// LinkRecord maps a security ID to the company ID valid over the half-open
// interval [Start, End). A zero End means the link is still active.
type LinkRecord struct {
	SecurityID int32
	CompanyID  int32
	Start      time.Time
	End        time.Time
}

// Covers reports whether the link is valid at the given date. The validity
// interval is half-open: Start is included, End is not.
func (l *LinkRecord) Covers(date time.Time) bool {
	if date.Before(l.Start) {
		return false
	}

	end := l.End
	if end.IsZero() {
		end = time.Now()
	}
	return date.Before(end)
}

// FactorReturns is one month of risk-factor data, already rescaled from
// percent to decimal returns.
type FactorReturns struct {
	Month time.Time
	MktRF float64
	SMB   float64
	HML   float64
	RF    float64
}

// MonthKey normalizes a date to midnight UTC on the first of its month; all
// monthly joins in the study go through this key.
func MonthKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
