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
	"math"
	"time"

	"github.com/jackc/pgtype"
	"github.com/penny-vault/pv-factor/data/database"
	"github.com/penny-vault/pv-factor/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// market equity is reported in thousands to match the fundamentals scale
const marketEquityScale = 1000.0

// GetMonthlyReturns loads the monthly security table over the requested range,
// restricted to NYSE, AMEX and NASDAQ listings. Market equity is
// |price| x shares outstanding scaled to thousands; prices marked as bid/ask
// midpoints carry a negative sign in the source, hence the absolute value.
func GetMonthlyReturns(ctx context.Context, begin, end time.Time) ([]*MonthlyReturn, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "data.GetMonthlyReturns")
	defer span.End()

	subLog := log.With().Time("Begin", begin).Time("End", end).Logger()

	if end.Before(begin) {
		subLog.Warn().Stack().Msg("end before begin in call to GetMonthlyReturns")
		return nil, ErrInvalidTimeRange
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		return nil, err
	}

	table := viper.GetString("tables.security_monthly")
	sql, args := buildRangeQuery(table,
		[]string{"security_id", "event_date", "ret", "dlret", "exchange_code", "price", "shares_outstanding"},
		"event_date", begin, end, "security_id, event_date")

	rows, err := trx.Query(ctx, sql, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Str("SQL", sql).Msg("could not query monthly security table")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	res := make([]*MonthlyReturn, 0, 100_000)
	var skippedExchange int
	for rows.Next() {
		var (
			securityID int32
			eventDate  time.Time
			ret        pgtype.Float8
			dlret      pgtype.Float8
			exchange   int
			price      pgtype.Float8
			shares     pgtype.Float8
		)

		if err := rows.Scan(&securityID, &eventDate, &ret, &dlret, &exchange, &price, &shares); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan monthly security row")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}

		if exchange != ExchangeNYSE && exchange != ExchangeAMEX && exchange != ExchangeNASDAQ {
			skippedExchange++
			continue
		}

		marketEquity := math.NaN()
		p := float8Val(price)
		s := float8Val(shares)
		if !math.IsNaN(p) && !math.IsNaN(s) {
			marketEquity = math.Abs(p) * s / marketEquityScale
		}

		res = append(res, &MonthlyReturn{
			SecurityID:   securityID,
			Month:        MonthKey(eventDate),
			Return:       float8Val(ret),
			DelistReturn: float8Val(dlret),
			Exchange:     exchange,
			MarketEquity: marketEquity,
		})
	}

	if skippedExchange > 0 {
		subLog.Debug().Int("NumRows", skippedExchange).Msg("skipped rows outside major exchanges")
	}

	if len(res) == 0 {
		span.SetStatus(codes.Error, "no monthly return records found")
		subLog.Error().Stack().Msg("no monthly return records found")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, ErrNoMonthlyReturns
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	subLog.Debug().Int("NumRecords", len(res)).Msg("loaded monthly returns")
	return res, nil
}
