package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/wonny/kats/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	doubleLine = "═══════════════════════════════════════════════════════════"
	singleLine = "───────────────────────────────────────────────────────────"
)

// printHeader prints a titled section header
func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, doubleLine)
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, singleLine)
}

// printKeyValue prints key-value pairs
func printKeyValue(w io.Writer, key, value string, keyWidth int) {
	fmt.Fprintf(w, "   %-*s : %s\n", keyWidth, key, value)
}

// printTableHeader prints a table header
func printTableHeader(w io.Writer, columns []string, widths []int) {
	printTableRow(w, columns, widths)

	total := 0
	for i, width := range widths {
		total += width
		if i < len(widths)-1 {
			total += 2
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", total))
}

// printTableRow prints a table row
func printTableRow(w io.Writer, values []string, widths []int) {
	for i, val := range values {
		fmt.Fprintf(w, "%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)
}

// printSuccess prints a success message
func printSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "✅ %s\n", message)
}

// formatFloat NaN 은 "-" 로 표시
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printConsensus 합의 예측 표 + 모델 가중치
func printConsensus(w io.Writer, c *contracts.Consensus) {
	printHeader(w, "Consensus Forecast")
	printKeyValue(w, "Aggregation", string(c.Mode), 12)
	printKeyValue(w, "Seasonal", fmt.Sprintf("%v", c.Seasonal), 12)
	printKeyValue(w, "Steps", fmt.Sprintf("%d", c.Len()), 12)
	fmt.Fprintln(w, singleLine)

	widths := []int{20, 12, 12, 12}
	printTableHeader(w, []string{"time", "fcst", "fcst_lower", "fcst_upper"}, widths)
	for i := range c.Fcst {
		printTableRow(w, []string{
			c.Time[i].Format("2006-01-02 15:04"),
			formatFloat(c.Fcst[i]),
			formatFloat(c.Lower[i]),
			formatFloat(c.Upper[i]),
		}, widths)
	}

	if len(c.Weights) > 0 {
		fmt.Fprintln(w)
		widths = []int{24, 10, 12}
		printTableHeader(w, []string{"model", "weight", "error"}, widths)
		for _, model := range c.Weights.Keys() {
			errVal := math.NaN()
			if e, ok := c.Errors[model]; ok {
				errVal = e
			}
			printTableRow(w, []string{model, fmt.Sprintf("%.4f", c.Weights[model]), formatFloat(errVal)}, widths)
		}
	}
	fmt.Fprintln(w, doubleLine)
}
