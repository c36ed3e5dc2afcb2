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
	"time"

	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru"
	"github.com/penny-vault/pv-factor/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var cache *lru.Cache

// SetupCache initializes the in-process series cache. Size comes from the
// cache.local_size configuration key (number of entries, not bytes).
func SetupCache() {
	size := viper.GetInt("cache.local_size")
	if size <= 0 {
		size = 16
	}

	var err error
	cache, err = lru.New(size)
	if err != nil {
		log.Panic().Err(err).Msg("could not create LRU cache")
	}
}

func cacheSet(key string, val interface{}) {
	if cache == nil {
		return
	}

	raw, err := json.Marshal(val)
	if err != nil {
		log.Warn().Stack().Err(err).Str("Key", key).Msg("could not serialize value for cache")
		return
	}

	compressed, err := common.Compress(raw)
	if err != nil {
		log.Warn().Stack().Err(err).Str("Key", key).Msg("could not compress value for cache")
		return
	}

	cache.Add(key, compressed)
}

func cacheGet(key string, val interface{}) bool {
	if cache == nil {
		return false
	}

	blob, ok := cache.Get(key)
	if !ok {
		return false
	}

	raw, err := common.Decompress(blob.([]byte))
	if err != nil {
		log.Warn().Stack().Err(err).Str("Key", key).Msg("could not decompress cached value")
		return false
	}

	if err := json.Unmarshal(raw, val); err != nil {
		log.Warn().Stack().Err(err).Str("Key", key).Msg("could not deserialize cached value")
		return false
	}

	return true
}

// CachedMonthlyReturns wraps GetMonthlyReturns with the series cache. The
// pipeline reads the monthly security table once per stage; repeated reads of
// the same window are served from memory.
func CachedMonthlyReturns(ctx context.Context, begin, end time.Time) ([]*MonthlyReturn, error) {
	key := fmt.Sprintf("monthly:%s:%s", begin.Format("2006-01-02"), end.Format("2006-01-02"))

	var res []*MonthlyReturn
	if cacheGet(key, &res) {
		log.Debug().Str("Key", key).Msg("monthly returns served from cache")
		return res, nil
	}

	res, err := GetMonthlyReturns(ctx, begin, end)
	if err != nil {
		return nil, err
	}

	cacheSet(key, res)
	return res, nil
}
