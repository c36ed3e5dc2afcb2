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
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/penny-vault/pv-factor/data/database"
	"github.com/penny-vault/pv-factor/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

func float8Val(v pgtype.Float8) float64 {
	if v.Status != pgtype.Present {
		return math.NaN()
	}
	return v.Float
}

// buildRangeQuery constructs a sanitized SELECT over a date-bounded table
func buildRangeQuery(table string, fields []string, dateCol string, begin, end time.Time, order string) (string, []interface{}) {
	stmt := &pgsql.SelectStatement{}
	for _, ff := range fields {
		stmt.Select(pgx.Identifier{ff}.Sanitize())
	}

	stmt.From(pgx.Identifier{table}.Sanitize())

	col := pgx.Identifier{dateCol}.Sanitize()
	stmt.Where(fmt.Sprintf("%s >= ?", col), begin)
	stmt.Where(fmt.Sprintf("%s <= ?", col), end)
	stmt.Order(order)

	return pgsql.Build(stmt)
}

// GetFundamentals loads annual fundamental report rows (R&D expense, revenue,
// book equity) for all companies over the requested date range. Missing
// numeric fields come back as NaN.
func GetFundamentals(ctx context.Context, begin, end time.Time) ([]*Fundamental, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "data.GetFundamentals")
	defer span.End()

	subLog := log.With().Time("Begin", begin).Time("End", end).Logger()

	if end.Before(begin) {
		subLog.Warn().Stack().Msg("end before begin in call to GetFundamentals")
		return nil, ErrInvalidTimeRange
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		return nil, err
	}

	table := viper.GetString("tables.fundamentals")
	sql, args := buildRangeQuery(table,
		[]string{"company_id", "report_date", "fiscal_year", "rd_expense", "revenue", "book_equity"},
		"report_date", begin, end, "company_id, report_date")

	rows, err := trx.Query(ctx, sql, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Str("SQL", sql).Msg("could not query fundamentals")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	res := make([]*Fundamental, 0, 10_000)
	for rows.Next() {
		var (
			companyID  int32
			reportDate time.Time
			fiscalYear int
			rd         pgtype.Float8
			revenue    pgtype.Float8
			bookEquity pgtype.Float8
		)

		if err := rows.Scan(&companyID, &reportDate, &fiscalYear, &rd, &revenue, &bookEquity); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan fundamental row")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}

		res = append(res, &Fundamental{
			CompanyID:  companyID,
			ReportDate: reportDate,
			FiscalYear: fiscalYear,
			RDExpense:  float8Val(rd),
			Revenue:    float8Val(revenue),
			BookEquity: float8Val(bookEquity),
		})
	}

	if len(res) == 0 {
		span.SetStatus(codes.Error, "no fundamental records found")
		subLog.Error().Stack().Msg("no fundamental records found")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, ErrNoFundamentals
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	subLog.Debug().Int("NumRecords", len(res)).Msg("loaded fundamentals")
	return res, nil
}
