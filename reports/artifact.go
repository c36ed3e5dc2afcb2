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

package reports

import (
	"math"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/penny-vault/pv-factor/dataframe"
	"github.com/penny-vault/pv-factor/panel"
	"github.com/penny-vault/pv-factor/portfolio"
	"github.com/penny-vault/pv-factor/risk"
	"github.com/penny-vault/pv-factor/study"
	"github.com/rs/zerolog/log"
)

// SeriesPoint is one month of a reported series. Undefined observations are
// serialized as null.
type SeriesPoint struct {
	Month time.Time `json:"month"`
	Value *float64  `json:"value"`
}

// Artifact is the archival record of one study run. The fingerprint covers
// the filtered panel, so re-runs against drifted inputs are detectable.
type Artifact struct {
	RunID           string                   `json:"runId"`
	CreatedAt       time.Time                `json:"createdAt"`
	Study           *study.Study             `json:"study"`
	Fingerprint     string                   `json:"panelFingerprint"`
	NumFirms        int                      `json:"numFirms"`
	NumRows         int                      `json:"numRows"`
	MonthlyDiff     []SeriesPoint            `json:"monthlyDiff"`
	RollingVariance []SeriesPoint            `json:"rollingVariance"`
	AnnualDiff      []*portfolio.YearDiff    `json:"annualDiff"`
	Regressions     []*risk.RegressionResult `json:"regressions"`
	TailRisk        []*risk.TailSummary      `json:"tailRisk"`
}

func seriesPoints(df *dataframe.DataFrame[time.Time], colName string) ([]SeriesPoint, error) {
	col, err := df.Col(colName)
	if err != nil {
		return nil, err
	}
	points := make([]SeriesPoint, len(df.Index))
	for idx, month := range df.Index {
		points[idx] = SeriesPoint{Month: month}
		if !math.IsNaN(col[idx]) {
			v := col[idx]
			points[idx].Value = &v
		}
	}
	return points, nil
}

// NewArtifact assembles the archival record of a completed study run
func NewArtifact(s *study.Study, p *panel.Panel, diff *dataframe.DataFrame[time.Time], annual []*portfolio.YearDiff, regressions []*risk.RegressionResult, tail []*risk.TailSummary, varianceWindow int) (*Artifact, error) {
	fingerprint, err := PanelFingerprint(p)
	if err != nil {
		return nil, err
	}

	monthly, err := seriesPoints(diff, portfolio.LongShortCol)
	if err != nil {
		return nil, err
	}

	varianceDf, err := diff.RollingVariance(portfolio.LongShortCol, varianceWindow)
	if err != nil {
		return nil, err
	}
	rolling, err := seriesPoints(varianceDf, portfolio.LongShortCol+"_variance")
	if err != nil {
		return nil, err
	}

	firms := make(map[int32]struct{}, len(p.Rows))
	for _, row := range p.Rows {
		firms[row.CompanyID] = struct{}{}
	}

	return &Artifact{
		RunID:           uuid.New().String(),
		CreatedAt:       time.Now().UTC(),
		Study:           s,
		Fingerprint:     fingerprint,
		NumFirms:        len(firms),
		NumRows:         p.Len(),
		MonthlyDiff:     monthly,
		RollingVariance: rolling,
		AnnualDiff:      annual,
		Regressions:     regressions,
		TailRisk:        tail,
	}, nil
}

// Save writes the artifact to fn as indented JSON
func (a *Artifact) Save(fn string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not serialize study artifact")
		return err
	}
	if err := os.WriteFile(fn, data, 0644); err != nil {
		log.Error().Stack().Err(err).Str("FileName", fn).Msg("could not write study artifact")
		return err
	}
	log.Info().Str("FileName", fn).Str("RunID", a.RunID).Msg("saved study artifact")
	return nil
}
