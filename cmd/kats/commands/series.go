package commands

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/kats/internal/contracts"
	"github.com/wonny/kats/pkg/httputil"
)

// seriesCmd represents the series command
var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "저장 시계열 관리",
	Long: `DB 에 저장된 시계열을 관리합니다.

Subcommands:
  import  - CSV 파일 또는 URL 에서 관측치 가져오기 (기존 시각은 덮어씀)
  list    - 저장된 시계열 목록
  latest  - 최근 예측 결과 조회

Example:
  go run ./cmd/kats series import sales --file sales.csv
  go run ./cmd/kats series import sales --url https://example.com/sales.csv
  go run ./cmd/kats series list`,
}

var (
	seriesImportCmd = &cobra.Command{
		Use:   "import [name]",
		Short: "관측치 가져오기",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeriesImport,
	}

	seriesListCmd = &cobra.Command{
		Use:   "list",
		Short: "저장된 시계열 목록",
		RunE:  runSeriesList,
	}

	seriesLatestCmd = &cobra.Command{
		Use:   "latest [name]",
		Short: "최근 예측 결과 조회",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeriesLatest,
	}
)

var (
	importFile string
	importURL  string
)

func init() {
	rootCmd.AddCommand(seriesCmd)
	seriesCmd.AddCommand(seriesImportCmd)
	seriesCmd.AddCommand(seriesListCmd)
	seriesCmd.AddCommand(seriesLatestCmd)

	seriesImportCmd.Flags().StringVarP(&importFile, "file", "f", "", "입력 CSV (time,value)")
	seriesImportCmd.Flags().StringVar(&importURL, "url", "", "CSV 를 내려받을 URL")
}

func runSeriesImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	var series contracts.Series
	switch {
	case importURL != "" && importFile != "":
		return fmt.Errorf("--file and --url are mutually exclusive: %w", contracts.ErrConfig)
	case importURL != "":
		body, err := httputil.New(d.log.Zerolog()).Fetch(ctx, importURL)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", importURL, err)
		}
		if series, err = readSeriesCSV(bytes.NewReader(body)); err != nil {
			return fmt.Errorf("%s: %w", importURL, err)
		}
	default:
		if series, err = readSeriesFile(importFile); err != nil {
			return err
		}
	}

	if err := d.service.ImportPoints(ctx, args[0], series); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Imported %d points into %q", series.Len(), args[0]))
	return nil
}

func runSeriesList(cmd *cobra.Command, args []string) error {
	d, err := openDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	names, err := d.service.ListSeries(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(out, "No series stored")
		return nil
	}
	for _, name := range names {
		fmt.Fprintf(out, "   • %s\n", name)
	}
	return nil
}

func runSeriesLatest(cmd *cobra.Command, args []string) error {
	d, err := openDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	run, err := d.service.Latest(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printHeader(out, fmt.Sprintf("Run #%d  %s", run.ID, run.Series))
	printKeyValue(out, "Created", run.CreatedAt.Format("2006-01-02 15:04:05"), 8)
	printKeyValue(out, "Spec", run.SpecHash, 8)
	printConsensus(out, run.Consensus)
	return nil
}
