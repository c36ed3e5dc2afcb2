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
	"sort"
	"time"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgx/v4"
	"github.com/penny-vault/pv-factor/data/database"
	"github.com/penny-vault/pv-factor/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// LinkTable resolves security IDs to company IDs honoring validity intervals
type LinkTable struct {
	links map[int32][]*LinkRecord
}

// GetLinks loads the security-to-company link table. Rows whose validity
// interval is empty (start >= end) are rejected with a data-quality warning.
func GetLinks(ctx context.Context) (*LinkTable, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "data.GetLinks")
	defer span.End()

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		return nil, err
	}

	table := viper.GetString("tables.link")
	stmt := &pgsql.SelectStatement{}
	for _, ff := range []string{"security_id", "company_id", "valid_from", "valid_to"} {
		stmt.Select(pgx.Identifier{ff}.Sanitize())
	}
	stmt.From(pgx.Identifier{table}.Sanitize())
	stmt.Order("security_id, valid_from")
	sql, args := pgsql.Build(stmt)

	rows, err := trx.Query(ctx, sql, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		log.Error().Stack().Err(err).Str("SQL", sql).Msg("could not query link table")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	lt := &LinkTable{links: make(map[int32][]*LinkRecord, 10_000)}
	var cnt int
	for rows.Next() {
		var (
			securityID int32
			companyID  int32
			validFrom  time.Time
			validTo    *time.Time
		)

		if err := rows.Scan(&securityID, &companyID, &validFrom, &validTo); err != nil {
			log.Error().Stack().Err(err).Msg("could not scan link row")
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}

		rec := &LinkRecord{
			SecurityID: securityID,
			CompanyID:  companyID,
			Start:      validFrom,
		}
		if validTo != nil {
			rec.End = *validTo
		}

		if !rec.End.IsZero() && !rec.Start.Before(rec.End) {
			log.Warn().Int32("SecurityID", securityID).Int32("CompanyID", companyID).
				Time("Start", rec.Start).Time("End", rec.End).Msg("rejecting link with empty validity interval")
			continue
		}

		lt.Add(rec)
		cnt++
	}

	if cnt == 0 {
		span.SetStatus(codes.Error, "no link records found")
		log.Error().Stack().Msg("no link records found")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, ErrNoLinks
	}

	if err := trx.Commit(ctx); err != nil {
		log.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	log.Debug().Int("NumRecords", cnt).Msg("loaded link table")
	return lt, nil
}

// NewLinkTable builds a link table from pre-loaded records; used by tests and
// file-based runs
func NewLinkTable(records []*LinkRecord) *LinkTable {
	lt := &LinkTable{links: make(map[int32][]*LinkRecord, len(records))}
	for _, rec := range records {
		lt.Add(rec)
	}
	return lt
}

// Add inserts a link record keeping each security's intervals sorted by start
// date so that resolution is deterministic
func (lt *LinkTable) Add(rec *LinkRecord) {
	recs := append(lt.links[rec.SecurityID], rec)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Start.Before(recs[j].Start)
	})
	lt.links[rec.SecurityID] = recs
}

// ResolveCompany returns the company ID linked to the security at the given
// date. When several intervals cover the date (a data-quality defect), the one
// with the earliest start wins and the ambiguity is logged with the offending
// keys.
func (lt *LinkTable) ResolveCompany(securityID int32, date time.Time) (int32, bool) {
	matches := make([]*LinkRecord, 0, 1)
	for _, rec := range lt.links[securityID] {
		if rec.Covers(date) {
			matches = append(matches, rec)
		}
	}

	switch len(matches) {
	case 0:
		return 0, false
	case 1:
		return matches[0].CompanyID, true
	}

	companyIDs := make([]int32, len(matches))
	for idx, rec := range matches {
		companyIDs[idx] = rec.CompanyID
	}
	log.Warn().Int32("SecurityID", securityID).Time("Date", date).
		Ints32("CompanyIDs", companyIDs).Msg("ambiguous link; keeping earliest validity start")

	// matches preserve start-date order; first is the earliest
	return matches[0].CompanyID, true
}

// Len returns the number of securities with at least one link
func (lt *LinkTable) Len() int {
	return len(lt.links)
}
