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

// Package reports renders study results as ASCII tables and a JSON artifact
// suitable for archival and replication.
package reports

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/penny-vault/pv-factor/panel"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

var ErrGenerateHash = errors.New("could not generate fingerprint hash")

// PanelFingerprint calculates a 16-byte blake3 hash over the filtered panel
// rows in their canonical (formation year, company) order. Two runs over
// the same inputs produce the same fingerprint, so the artifact can be
// checked for input drift without storing the panel itself.
func PanelFingerprint(p *panel.Panel) (string, error) {
	h := blake3.New()

	for _, row := range p.Rows {
		if _, err := h.Write([]byte(fmt.Sprintf("%d|%d|%d|", row.FormationYear, row.CompanyID, row.PrimarySecurityID))); err != nil {
			log.Error().Stack().Err(err).Msg("could not write row identity to blake3 hasher")
			return "", err
		}

		if _, err := h.Write([]byte(fmt.Sprintf("%.5f|%.5f|%.5f|", row.RDM, row.MarketEquity, row.AnnualReturn))); err != nil {
			log.Error().Stack().Err(err).Msg("could not write row values to blake3 hasher")
			return "", err
		}
	}

	digest := h.Digest()
	buf := make([]byte, 16)
	n, err := digest.Read(buf)
	if err != nil {
		return "", err
	}
	if n != 16 {
		return "", ErrGenerateHash
	}

	return hex.EncodeToString(buf), nil
}
