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

package risk

import (
	"math"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// TailRisk holds empirical value-at-risk and expected shortfall for a
// return series at a single confidence level. VaR is the (1-confidence)
// empirical quantile of the monthly return distribution; ES is the mean of
// the returns at or below that quantile, so ES <= VaR always holds.
type TailRisk struct {
	Confidence   float64
	VaR          float64
	ES           float64
	NumObs       int
	NumTail      int
	Insufficient bool
}

type jsonTailRisk struct {
	Confidence   float64  `json:"confidence"`
	VaR          *float64 `json:"var"`
	ES           *float64 `json:"es"`
	NumObs       int      `json:"numObs"`
	NumTail      int      `json:"numTail"`
	Insufficient bool     `json:"insufficient"`
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

// MarshalJSON serializes undefined measures as null
func (tr *TailRisk) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonTailRisk{
		Confidence:   tr.Confidence,
		VaR:          nanToPtr(tr.VaR),
		ES:           nanToPtr(tr.ES),
		NumObs:       tr.NumObs,
		NumTail:      tr.NumTail,
		Insufficient: tr.Insufficient,
	})
}

func (tr *TailRisk) UnmarshalJSON(data []byte) error {
	var j jsonTailRisk
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	tr.Confidence = j.Confidence
	tr.VaR = ptrToNaN(j.VaR)
	tr.ES = ptrToNaN(j.ES)
	tr.NumObs = j.NumObs
	tr.NumTail = j.NumTail
	tr.Insufficient = j.Insufficient
	return nil
}

// TailSummary is the tail-risk profile of one named series at the standard
// confidence levels
type TailSummary struct {
	Series string      `json:"series"`
	Levels []*TailRisk `json:"levels"`
}

var confidenceLevels = []float64{0.95, 0.99}

// HistoricalVaR computes the empirical value-at-risk and expected shortfall
// of a return series. NaN observations are dropped before sorting. When the
// sample is too small to resolve the tail (fewer than ceil(1/(1-confidence))
// observations) the measures are still reported but flagged insufficient.
func HistoricalVaR(returns []float64, confidence float64) *TailRisk {
	clean := make([]float64, 0, len(returns))
	for _, r := range returns {
		if !math.IsNaN(r) {
			clean = append(clean, r)
		}
	}
	sort.Float64s(clean)

	res := &TailRisk{
		Confidence: confidence,
		VaR:        math.NaN(),
		ES:         math.NaN(),
		NumObs:     len(clean),
	}

	if len(clean) == 0 {
		res.Insufficient = true
		return res
	}

	minObs := int(math.Ceil(1 / (1 - confidence)))
	if len(clean) < minObs {
		res.Insufficient = true
		log.Warn().
			Float64("Confidence", confidence).
			Int("NumObs", len(clean)).
			Int("MinObs", minObs).
			Msg("sample too small to resolve the tail at requested confidence")
	}

	res.VaR = stat.Quantile(1-confidence, stat.Empirical, clean, nil)

	tailSum := 0.0
	for _, r := range clean {
		if r <= res.VaR {
			tailSum += r
			res.NumTail++
		}
	}
	// NumTail >= 1 because VaR is itself a sample value
	res.ES = tailSum / float64(res.NumTail)
	return res
}

// SummarizeTail computes the tail-risk profile of a named return series at
// the 95% and 99% confidence levels
func SummarizeTail(series string, returns []float64) *TailSummary {
	res := &TailSummary{
		Series: series,
		Levels: make([]*TailRisk, 0, len(confidenceLevels)),
	}
	for _, confidence := range confidenceLevels {
		tr := HistoricalVaR(returns, confidence)
		res.Levels = append(res.Levels, tr)
		log.Info().
			Str("Series", series).
			Float64("Confidence", confidence).
			Float64("VaR", tr.VaR).
			Float64("ES", tr.ES).
			Bool("Insufficient", tr.Insufficient).
			Msg("computed tail risk")
	}
	return res
}
