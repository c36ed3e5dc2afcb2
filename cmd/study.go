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

package cmd

import (
	"context"
	"fmt"

	"github.com/penny-vault/pv-factor/common"
	"github.com/penny-vault/pv-factor/data"
	"github.com/penny-vault/pv-factor/data/database"
	"github.com/penny-vault/pv-factor/observability/opentelemetry"
	"github.com/penny-vault/pv-factor/panel"
	"github.com/penny-vault/pv-factor/portfolio"
	"github.com/penny-vault/pv-factor/reports"
	"github.com/penny-vault/pv-factor/risk"
	"github.com/penny-vault/pv-factor/study"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	studyCmd.Flags().String("factor-file", "", "Override the factor file location from the study definition")
	viper.BindPFlag("study.factor_file", studyCmd.Flags().Lookup("factor-file"))

	studyCmd.Flags().String("output", "study-results.json", "File to write the JSON results artifact to")
	viper.BindPFlag("study.output", studyCmd.Flags().Lookup("output"))

	studyCmd.Flags().Int("variance-window", 12, "Window, in months, of the rolling variance series")
	viper.BindPFlag("study.variance_window", studyCmd.Flags().Lookup("variance-window"))

	studyCmd.Flags().Bool("show-series", false, "Print the monthly bucket return series")
	viper.BindPFlag("study.show_series", studyCmd.Flags().Lookup("show-series"))

	rootCmd.AddCommand(studyCmd)
}

var studyCmd = &cobra.Command{
	Use:   "study [flags] [StudyDefinition.toml]",
	Short: "Run a cross-sectional factor study",
	Long:  `Build the firm panel, sort it into quantile portfolios at each formation date, and evaluate the long-short return differential against CAPM and the Fama-French three-factor model.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		common.SetupLogging()
		data.SetupCache()

		otelShutdown, err := opentelemetry.Setup()
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize tracing")
		}
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				log.Error().Err(err).Msg("could not flush trace spans")
			}
		}()

		s := study.DefaultStudy()
		if len(args) == 1 {
			var err error
			if s, err = study.Load(args[0]); err != nil {
				log.Fatal().Err(err).Str("FileName", args[0]).Msg("could not load study definition")
			}
		}
		if factorFile := viper.GetString("study.factor_file"); factorFile != "" {
			s.FactorFile = factorFile
		}

		if err := database.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}

		begin, end := s.Window()
		subLog := log.With().Str("Study", s.Name).Time("Begin", begin).Time("End", end).Logger()
		subLog.Info().Msg("running study")

		// fundamentals reported before the base formation month still feed the
		// base year's sort, so their fetch range starts a year earlier than
		// the market data window
		fndBegin, fndEnd := s.FundamentalsWindow()
		fundamentals, err := data.GetFundamentals(ctx, fndBegin, fndEnd)
		if err != nil {
			subLog.Fatal().Err(err).Msg("could not load fundamentals")
		}

		monthly, err := data.CachedMonthlyReturns(ctx, begin, end)
		if err != nil {
			subLog.Fatal().Err(err).Msg("could not load monthly security returns")
		}

		links, err := data.GetLinks(ctx)
		if err != nil {
			subLog.Fatal().Err(err).Msg("could not load security-company links")
		}

		factors, err := data.GetFactors(ctx, s.FactorFile)
		if err != nil {
			subLog.Fatal().Err(err).Msg("could not load factor returns")
		}

		fullPanel := panel.Assemble(ctx, s, fundamentals, monthly, links)
		filtered := panel.FilterComplete(fullPanel, s)
		if filtered.Len() == 0 {
			subLog.Fatal().Msg("no firms survive the complete-panel filter")
		}

		assignments := portfolio.SortAll(filtered, s.NumBuckets)

		bucketReturns := portfolio.BucketReturns(ctx, s, filtered, assignments, monthly)
		diff, err := portfolio.LongShort(bucketReturns, s.NumBuckets)
		if err != nil {
			subLog.Fatal().Err(err).Msg("could not compute long-short differential")
		}
		// holding windows cannot extend past the study window; trim in case a
		// study definition narrows the range
		diff = diff.Trim(begin, end)
		annual := portfolio.AnnualLongShort(filtered, assignments, s.NumBuckets)

		if viper.GetBool("study.show_series") {
			fmt.Println(bucketReturns.Table())
		}

		aligned, err := risk.AlignByMonth(diff, factors)
		if err != nil {
			subLog.Fatal().Err(err).Msg("could not align differential with factor series")
		}

		capm, err := risk.CAPM(aligned)
		if err != nil {
			subLog.Fatal().Err(err).Msg("CAPM regression failed")
		}
		ff3, err := risk.ThreeFactor(aligned)
		if err != nil {
			subLog.Fatal().Err(err).Msg("three-factor regression failed")
		}

		tail := []*risk.TailSummary{
			risk.SummarizeTail("longshort", aligned.Diff),
			risk.SummarizeTail("mktrf", aligned.MktRF),
			risk.SummarizeTail("smb", aligned.SMB),
			risk.SummarizeTail("hml", aligned.HML),
		}

		fmt.Println(reports.AnnualTable(annual))
		fmt.Println(reports.RegressionTable(capm))
		fmt.Println(reports.RegressionTable(ff3))
		fmt.Println(reports.TailRiskTable(tail))

		artifact, err := reports.NewArtifact(s, filtered, diff,
			annual, []*risk.RegressionResult{capm, ff3}, tail,
			viper.GetInt("study.variance_window"))
		if err != nil {
			subLog.Fatal().Err(err).Msg("could not assemble results artifact")
		}
		if err := artifact.Save(viper.GetString("study.output")); err != nil {
			subLog.Fatal().Err(err).Msg("could not save results artifact")
		}
	},
}
