package utils

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

const TimeLayout = "2006-01-02 15:04:05"

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// TimeLayouts are the layouts seen in TaxiGov exports, used when none are configured.
var TimeLayouts = []string{
	"2006-01-02T15:04:05",
	TimeLayout,
	"2006-01-02T15:04:05.000",
	time.RFC3339,
	"2006-01-02",
}

// ParseTime tries layouts in order (TimeLayouts when empty); empty input is the zero time.
func ParseTime(s series.Element, layouts []string) (time.Time, error) {
	str := strings.TrimSpace(s.String())
	if str == "" || s.IsNA() || str == "NaN" {
		return time.Time{}, nil
	}
	if len(layouts) == 0 {
		layouts = TimeLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", str)
}

// SubSeriesTime appends colName3 = colName1 - colName2 in minutes. Rows where
// either side is missing get NaN.
func SubSeriesTime(df dataframe.DataFrame, colName1, colName2, colName3 string, layouts ...string) (dataframe.DataFrame, error) {
	col1 := df.Col(colName1)
	col2 := df.Col(colName2)
	if col1.Err != nil {
		return df, col1.Err
	}
	if col2.Err != nil {
		return df, col2.Err
	}

	durations := make([]float64, 0, df.Nrow())

	for i := 0; i < df.Nrow(); i++ {
		endTime, err := ParseTime(col1.Elem(i), layouts)
		if err != nil {
			return df, fmt.Errorf("failed to parse end time at row %d: %w", i, err)
		}

		startTime, err := ParseTime(col2.Elem(i), layouts)
		if err != nil {
			return df, fmt.Errorf("failed to parse start time at row %d: %w", i, err)
		}

		if endTime.IsZero() || startTime.IsZero() {
			durations = append(durations, math.NaN())
			continue
		}
		durations = append(durations, endTime.Sub(startTime).Minutes())
	}

	return df.Mutate(series.New(durations, series.Float, colName3)), nil
}

// Sheet pairs a worksheet name with the frame written to it.
type Sheet struct {
	Name string
	DF   dataframe.DataFrame
}

// SaveSheets writes each frame to its own worksheet, header in row 1.
func SaveSheets(filePath string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to save")
	}

	f := excelize.NewFile()
	defer f.Close()

	used := map[string]int{}
	for i, sh := range sheets {
		name := SheetName(sh.Name)
		if n := used[name]; n > 0 {
			name = SheetName(fmt.Sprintf("%.27s_%d", name, n+1))
		}
		used[SheetName(sh.Name)]++
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("创建工作表 %s 失败: %w", name, err)
		}
		if err := writeFrame(f, name, sh.DF); err != nil {
			return err
		}
	}

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

func writeFrame(f *excelize.File, sheetName string, df dataframe.DataFrame) error {
	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return err
		}
	}

	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			val := col.Val(rowIdx)
			// excelize rejects NaN/Inf, leave the cell empty
			if v, ok := val.(float64); ok && (math.IsNaN(v) || math.IsInf(v, 0)) {
				continue
			}
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				return err
			}
		}
	}
	return nil
}

var sheetNameReplacer = strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")")

// SheetName strips characters Excel forbids and truncates to 31 runes.
func SheetName(name string) string {
	name = sheetNameReplacer.Replace(name)
	if name == "" {
		name = "Sheet"
	}
	r := []rune(name)
	if len(r) > 31 {
		r = r[:31]
	}
	return string(r)
}
