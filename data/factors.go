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
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gocarina/gocsv"
	"github.com/penny-vault/pv-factor/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// factorClient is shared across downloads so tests can install a mock
// transport, mirroring how database.SetPool swaps the connection pool
var factorClient = resty.New()

// FactorHTTPClient exposes the factor downloader's underlying http client
func FactorHTTPClient() *http.Client {
	return factorClient.GetClient()
}

// factorRow mirrors the monthly factor file layout; values are in percent
type factorRow struct {
	Date  string  `csv:"Date"`
	MktRF float64 `csv:"Mkt-RF"`
	SMB   float64 `csv:"SMB"`
	HML   float64 `csv:"HML"`
	RF    float64 `csv:"RF"`
}

// GetFactors loads the monthly risk-factor file from a URL or a local path.
// Factor returns in the file are percentages and are rescaled to decimals.
// Duplicated month keys are an input-validation failure, not silently merged.
func GetFactors(ctx context.Context, location string) ([]*FactorReturns, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "data.GetFactors")
	defer span.End()

	subLog := log.With().Str("Location", location).Logger()

	var raw []byte
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		resp, err := factorClient.R().SetContext(ctx).Get(location)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "factor file download failed")
			subLog.Error().Stack().Err(err).Msg("could not download factor file")
			return nil, err
		}
		if resp.StatusCode() >= 400 {
			span.SetStatus(codes.Error, "factor file download failed")
			subLog.Error().Stack().Int("StatusCode", resp.StatusCode()).Msg("could not download factor file")
			return nil, ErrFactorDownload
		}
		raw = resp.Body()
	} else {
		var err error
		raw, err = os.ReadFile(location)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "factor file read failed")
			subLog.Error().Stack().Err(err).Msg("could not read factor file")
			return nil, err
		}
	}

	rows := []*factorRow{}
	if err := gocsv.UnmarshalBytes(raw, &rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "factor file parse failed")
		subLog.Error().Stack().Err(err).Msg("could not parse factor file")
		return nil, err
	}

	res := make([]*FactorReturns, 0, len(rows))
	seen := make(map[time.Time]bool, len(rows))
	for _, row := range rows {
		month, err := parseFactorDate(row.Date)
		if err != nil {
			subLog.Error().Stack().Err(err).Str("Date", row.Date).Msg("could not parse factor date")
			return nil, err
		}

		if seen[month] {
			subLog.Error().Stack().Time("Month", month).Msg("duplicate month in factor file")
			return nil, fmt.Errorf("duplicate month %s in factor file", month.Format("2006-01"))
		}
		seen[month] = true

		res = append(res, &FactorReturns{
			Month: month,
			MktRF: row.MktRF / 100.0,
			SMB:   row.SMB / 100.0,
			HML:   row.HML / 100.0,
			RF:    row.RF / 100.0,
		})
	}

	if len(res) == 0 {
		span.SetStatus(codes.Error, "no factor records found")
		subLog.Error().Stack().Msg("no factor records found")
		return nil, ErrNoFactors
	}

	subLog.Debug().Int("NumRecords", len(res)).Msg("loaded factor returns")
	return res, nil
}

// parseFactorDate accepts YYYYMM (the upstream convention) or YYYY-MM
func parseFactorDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"200601", "2006-01"} {
		if dt, err := time.Parse(layout, s); err == nil {
			return MonthKey(dt), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized factor date %q", s)
}
