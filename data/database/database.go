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

package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// PgxIface is the subset of pgxpool.Pool used by the study; pgxmock satisfies
// it in tests.
type PgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
}

var ErrNotConnected = errors.New("database is not connected")

var pool PgxIface

// Connect to the database pointed at by the database.url configuration key
func Connect(ctx context.Context) error {
	var err error
	url := viper.GetString("database.url")
	subLog := log.With().Str("Url", url).Logger()

	pool, err = pgxpool.Connect(ctx, url)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not connect to database")
		return err
	}

	subLog.Info().Msg("connected to database")
	return nil
}

// SetPool replaces the connection pool; used by tests to substitute pgxmock
func SetPool(myPool PgxIface) {
	pool = myPool
}

// Trx returns a new transaction on the connection pool
func Trx(ctx context.Context) (pgx.Tx, error) {
	if pool == nil {
		log.Error().Stack().Msg("no database pool; call Connect first")
		return nil, ErrNotConnected
	}

	trx, err := pool.Begin(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin transaction")
		return nil, err
	}

	return trx, nil
}
