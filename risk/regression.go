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
	"errors"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrTooFewObservations = errors.New("too few observations for regression")
	ErrSingularDesign     = errors.New("design matrix is singular")
)

// Coefficient is a single estimated regression coefficient with its
// sampling statistics
type Coefficient struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"stdErr"`
	TStat    float64 `json:"tStat"`
	PValue   float64 `json:"pValue"`
}

// RegressionResult is the outcome of an OLS fit of the monthly long-short
// differential on a factor model
type RegressionResult struct {
	Model        string        `json:"model"`
	Coefficients []Coefficient `json:"coefficients"`
	R2           float64       `json:"r2"`
	AdjR2        float64       `json:"adjR2"`
	NumObs       int           `json:"numObs"`
	ResidualStd  float64       `json:"residualStd"`
}

// Alpha returns the intercept estimate
func (r *RegressionResult) Alpha() Coefficient {
	return r.Coefficients[0]
}

// Regress fits y on the given regressors by ordinary least squares with an
// intercept. Standard errors come from the classical homoskedastic
// covariance estimate s² (XᵀX)⁻¹; p-values are two-sided against a
// Student-t with n-k degrees of freedom.
func Regress(model string, y []float64, regressors [][]float64, names []string) (*RegressionResult, error) {
	n := len(y)
	k := len(regressors) + 1
	if n <= k {
		log.Error().Stack().Int("NumObs", n).Int("NumCoefficients", k).Msg("too few observations for regression")
		return nil, ErrTooFewObservations
	}
	for _, col := range regressors {
		if len(col) != n {
			log.Error().Stack().Int("NumObs", n).Int("RegressorLen", len(col)).Msg("regressor length does not match dependent series")
			return nil, ErrMisalignedSeries
		}
	}

	design := mat.NewDense(n, k, nil)
	for row := 0; row < n; row++ {
		design.Set(row, 0, 1)
		for col, reg := range regressors {
			design.Set(row, col+1, reg[row])
		}
	}
	yVec := mat.NewVecDense(n, y)

	var qr mat.QR
	qr.Factorize(design)
	var betaVec mat.VecDense
	if err := qr.SolveVecTo(&betaVec, false, yVec); err != nil {
		log.Error().Stack().Err(err).Msg("QR solve failed")
		return nil, ErrSingularDesign
	}

	// residual sum of squares
	var fitted mat.VecDense
	fitted.MulVec(design, &betaVec)
	rss := 0.0
	for row := 0; row < n; row++ {
		resid := y[row] - fitted.AtVec(row)
		rss += resid * resid
	}

	yMean := stat.Mean(y, nil)
	tss := 0.0
	for _, v := range y {
		tss += (v - yMean) * (v - yMean)
	}

	dof := float64(n - k)
	sigma2 := rss / dof

	var xtx mat.Dense
	xtx.Mul(design.T(), design)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		log.Error().Stack().Err(err).Msg("XᵀX is not invertible")
		return nil, ErrSingularDesign
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}
	coefNames := append([]string{"alpha"}, names...)
	coefficients := make([]Coefficient, k)
	for j := 0; j < k; j++ {
		est := betaVec.AtVec(j)
		se := math.Sqrt(sigma2 * xtxInv.At(j, j))
		tStat := est / se
		coefficients[j] = Coefficient{
			Name:     coefNames[j],
			Estimate: est,
			StdErr:   se,
			TStat:    tStat,
			PValue:   2 * tDist.Survival(math.Abs(tStat)),
		}
	}

	r2 := 1 - rss/tss
	res := &RegressionResult{
		Model:        model,
		Coefficients: coefficients,
		R2:           r2,
		AdjR2:        1 - (1-r2)*float64(n-1)/dof,
		NumObs:       n,
		ResidualStd:  math.Sqrt(sigma2),
	}

	log.Info().
		Str("Model", model).
		Int("NumObs", n).
		Float64("Alpha", res.Alpha().Estimate).
		Float64("R2", r2).
		Msg("fit factor regression")
	return res, nil
}

// CAPM regresses the excess differential on the excess market return
func CAPM(aligned *AlignedSeries) (*RegressionResult, error) {
	return Regress("CAPM", aligned.ExcessDiff(), [][]float64{aligned.MktRF}, []string{"MktRF"})
}

// ThreeFactor regresses the excess differential on the Fama-French market,
// size, and value factors
func ThreeFactor(aligned *AlignedSeries) (*RegressionResult, error) {
	return Regress("FF3", aligned.ExcessDiff(),
		[][]float64{aligned.MktRF, aligned.SMB, aligned.HML},
		[]string{"MktRF", "SMB", "HML"})
}
