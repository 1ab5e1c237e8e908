package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/kats/internal/contracts"
	"github.com/wonny/kats/internal/decomposition"
	"github.com/wonny/kats/internal/seasonality"
)

// detectCmd represents the detect command
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "계절성 감지 + 분해",
	Long: `ACF 로 계절성을 감지하고, 감지되면 주기별 계절 지수를 출력합니다.

Example:
  go run ./cmd/kats detect --file sales.csv
  go run ./cmd/kats detect --file sales.csv --threshold 0.4 --decomposition multiplicative`,
	RunE: runDetect,
}

var (
	detectFile          string
	detectThreshold     float64
	detectMaxLag        int
	detectDecomposition string
	detectJSON          bool
)

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringVarP(&detectFile, "file", "f", "", "입력 CSV (time,value)")
	detectCmd.Flags().Float64Var(&detectThreshold, "threshold", seasonality.DefaultThreshold, "ACF 피크 임계값")
	detectCmd.Flags().IntVar(&detectMaxLag, "max-lag", 0, "최대 lag (0 = n/2)")
	detectCmd.Flags().StringVar(&detectDecomposition, "decomposition", "additive", "additive | multiplicative")
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "JSON 출력")
}

func runDetect(cmd *cobra.Command, args []string) error {
	_, log, err := setup()
	if err != nil {
		return err
	}

	series, err := readSeriesFile(detectFile)
	if err != nil {
		return err
	}

	detector := seasonality.NewDetectorWithThreshold(detectThreshold, detectMaxLag, log.Zerolog())
	res, err := detector.Analyze(cmd.Context(), series)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	var comps *decomposition.Components
	if res.Seasonal {
		mode, ok := contracts.ParseDecompositionMode(detectDecomposition)
		if !ok {
			log.WithField("decomposition", detectDecomposition).Warn("Unknown decomposition, using additive")
		}
		comps, err = decomposition.NewDecomposer(log.Zerolog()).Decompose(series, mode, res.Period)
		if err != nil {
			return fmt.Errorf("decompose: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if detectJSON {
		payload := map[string]interface{}{"detection": res}
		if comps != nil {
			payload["seasonal_index"] = comps.Index
		}
		return printJSON(out, payload)
	}

	printHeader(out, "Seasonality")
	printKeyValue(out, "Points", fmt.Sprintf("%d", series.Len()), 10)
	printKeyValue(out, "Seasonal", fmt.Sprintf("%v", res.Seasonal), 10)
	printKeyValue(out, "Critical", formatFloat(res.Critical), 10)
	if res.Seasonal {
		printKeyValue(out, "Period", fmt.Sprintf("%d", res.Period), 10)
		printKeyValue(out, "Strength", formatFloat(res.Strength), 10)
	}

	if comps != nil {
		fmt.Fprintln(out, singleLine)
		widths := []int{8, 12}
		printTableHeader(out, []string{"phase", string(comps.Mode)}, widths)
		for i, v := range comps.Index {
			printTableRow(out, []string{fmt.Sprintf("%d", i), formatFloat(v)}, widths)
		}
	}
	fmt.Fprintln(out, doubleLine)
	return nil
}
