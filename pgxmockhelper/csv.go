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

// Package pgxmockhelper loads CSV fixtures into pgxmock result sets for
// data-layer tests.
package pgxmockhelper

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pashagolub/pgxmock"
	"github.com/rs/zerolog/log"
)

type CSVRows struct {
	rows    [][]any
	header  []string
	dateCol int
}

// NewCSVRows reads a CSV fixture and converts columns according to typeMap.
// Supported conversions are "date" (2006-01-02), "date?", "float64",
// "float64?" (the ? variants map an empty cell to SQL NULL), "int32", and
// "int"; unmapped columns stay strings. Fixture problems panic since they are always a bug in the test.
func NewCSVRows(csvFn string, typeMap map[string]string) *CSVRows {
	subLog := log.With().Str("CsvFn", csvFn).Logger()

	rows := &CSVRows{
		dateCol: -1,
		rows:    make([][]any, 0),
	}
	rawData, err := os.ReadFile(csvFn)
	if err != nil {
		subLog.Panic().Err(err).Msg("could not read file")
	}

	lines := strings.Split(string(rawData), "\n")

	// sanity checks:
	// - array length is at least 2 (header + trailing newline)
	// - make sure last line ends in newline
	if len(lines) < 2 {
		subLog.Panic().Int("NumLines", len(lines)).Msg("input file does not have enough lines, need at least 2 (header + trailing new line)")
	}
	if lines[len(lines)-1] != "" {
		subLog.Panic().Msg("input file is missing a trailing new line")
	}

	headerRaw := lines[0]
	lines = lines[1 : len(lines)-1] // discard first and last rows
	rows.header = strings.Split(headerRaw, ",")

	for _, ll := range lines {
		cols := make([]any, len(rows.header))
		parts := strings.Split(ll, ",")
		for idx, val := range parts {
			colName := rows.header[idx]
			typeConv, ok := typeMap[colName]
			if !ok {
				cols[idx] = val
				continue
			}

			switch typeConv {
			case "date":
				parsed, err := time.Parse("2006-01-02", val)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to datetime of format 2006-01-02")
				}
				cols[idx] = parsed
				rows.dateCol = idx
			case "date?":
				if val == "" {
					cols[idx] = nil
					continue
				}
				parsed, err := time.Parse("2006-01-02", val)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to datetime of format 2006-01-02")
				}
				cols[idx] = &parsed
			case "float64":
				parsed, err := strconv.ParseFloat(val, 64)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to float64")
				}
				cols[idx] = parsed
			case "float64?":
				if val == "" {
					cols[idx] = nil
					continue
				}
				parsed, err := strconv.ParseFloat(val, 64)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to float64")
				}
				cols[idx] = parsed
			case "int32":
				parsed, err := strconv.ParseInt(val, 10, 32)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to int32")
				}
				cols[idx] = int32(parsed)
			case "int":
				parsed, err := strconv.Atoi(val)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to int")
				}
				cols[idx] = parsed
			default:
				cols[idx] = val
			}
		}
		rows.rows = append(rows.rows, cols)
	}

	return rows
}

// Between keeps only rows whose date column falls in [a, b] (inclusive)
func (csvRows *CSVRows) Between(a time.Time, b time.Time) *CSVRows {
	if len(csvRows.rows) == 0 {
		return csvRows
	}
	if csvRows.dateCol == -1 {
		log.Panic().Time("a", a).Time("b", b).Msg("no date column found")
	}
	newRows := make([][]any, 0, len(csvRows.rows))
	for _, row := range csvRows.rows {
		t := row[csvRows.dateCol].(time.Time)
		if (t.Before(b) || t.Equal(b)) && (t.After(a) || t.Equal(a)) {
			newRows = append(newRows, row)
		}
	}
	csvRows.rows = newRows
	return csvRows
}

func (csvRows *CSVRows) Rows() *pgxmock.Rows {
	r := pgxmock.NewRows(csvRows.header)
	for _, row := range csvRows.rows {
		r.AddRow(row...)
	}
	return r
}

// MockFundamentalsQuery primes the mock for a fundamentals range query
func MockFundamentalsQuery(db pgxmock.PgxConnIface, fn string, begin, end time.Time) {
	db.ExpectBegin()
	db.ExpectQuery(`(?i)SELECT (.+) FROM "fundamentals"`).WillReturnRows(
		NewCSVRows(fn, map[string]string{
			"company_id":  "int32",
			"report_date": "date",
			"fiscal_year": "int",
			"rd_expense":  "float64?",
			"revenue":     "float64?",
			"book_equity": "float64?",
		}).Between(begin, end).Rows())
	db.ExpectCommit()
}

// MockEmptyFundamentalsQuery primes the mock for a fundamentals query that
// matches no rows; the loader rolls the transaction back in that case
func MockEmptyFundamentalsQuery(db pgxmock.PgxConnIface) {
	db.ExpectBegin()
	db.ExpectQuery(`(?i)SELECT (.+) FROM "fundamentals"`).WillReturnRows(
		pgxmock.NewRows([]string{"company_id", "report_date", "fiscal_year", "rd_expense", "revenue", "book_equity"}))
	db.ExpectRollback()
}

// MockMonthlyQuery primes the mock for a monthly security return range query
func MockMonthlyQuery(db pgxmock.PgxConnIface, fn string, begin, end time.Time) {
	db.ExpectBegin()
	db.ExpectQuery(`(?i)SELECT (.+) FROM "security_monthly"`).WillReturnRows(
		NewCSVRows(fn, map[string]string{
			"security_id":        "int32",
			"event_date":         "date",
			"ret":                "float64?",
			"dlret":              "float64?",
			"exchange_code":      "int",
			"price":              "float64?",
			"shares_outstanding": "float64?",
		}).Between(begin, end).Rows())
	db.ExpectCommit()
}

// MockLinksQuery primes the mock for the full link table query
func MockLinksQuery(db pgxmock.PgxConnIface, fn string) {
	db.ExpectBegin()
	db.ExpectQuery(`(?i)SELECT (.+) FROM "link"`).WillReturnRows(
		NewCSVRows(fn, map[string]string{
			"security_id": "int32",
			"company_id":  "int32",
			"valid_from":  "date",
			"valid_to":    "date?",
		}).Rows())
	db.ExpectCommit()
}
