package commands

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/kats/internal/contracts"
)

// timeLayouts CSV time 열에 허용하는 형식
var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// readSeriesFile opens path ("-" = stdin) and parses it as time,value CSV
func readSeriesFile(path string) (contracts.Series, error) {
	if path == "" {
		return contracts.Series{}, fmt.Errorf("--file is required: %w", contracts.ErrConfig)
	}
	if path == "-" {
		return readSeriesCSV(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return contracts.Series{}, err
	}
	defer f.Close()

	s, err := readSeriesCSV(f)
	if err != nil {
		return contracts.Series{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// readSeriesCSV parses "time,value" rows. 헤더 행은 선택, 빈 값은 NaN
func readSeriesCSV(r io.Reader) (contracts.Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var points []contracts.Point
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return contracts.Series{}, fmt.Errorf("line %d: %v: %w", line, err, contracts.ErrConfig)
		}

		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "time") {
			continue
		}

		t, err := parseTime(record[0])
		if err != nil {
			return contracts.Series{}, fmt.Errorf("line %d: %w", line, err)
		}
		v, err := parseValue(record[1])
		if err != nil {
			return contracts.Series{}, fmt.Errorf("line %d: %w", line, err)
		}
		points = append(points, contracts.Point{Time: t, Value: v})
	}

	return contracts.NewSeries(points)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q: %w", s, contracts.ErrConfig)
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, contracts.ErrConfig)
	}
	return v, nil
}
