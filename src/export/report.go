package export

import (
	"TaxiGovExplorer/src/processor"
	"TaxiGovExplorer/src/utils"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// DurationColumn is appended to the rides sheet when both timestamps parse.
const DurationColumn = "duracao_min"

// ReportName builds the file name of a report generated at t.
func ReportName(t time.Time) string {
	return fmt.Sprintf("taxigov_%s.xlsx", t.Format("20060102_150405"))
}

// WriteReport saves a workbook with the cleaned rides, one sheet per
// frequency table and the heat cells. It returns the written path.
func WriteReport(dir string, res *processor.Result) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ReportName(res.Summary.GeneratedAt))

	sheets := []utils.Sheet{{Name: "rides", DF: ridesSheet(res)}}
	for _, t := range res.Reasons {
		sheets = append(sheets, utils.Sheet{Name: "motivo_" + t.Partition, DF: t.DataFrame()})
	}
	for _, t := range res.Agencies {
		sheets = append(sheets, utils.Sheet{Name: "orgao_" + t.Partition, DF: t.DataFrame()})
	}
	sheets = append(sheets, utils.Sheet{Name: "heat_cells", DF: heatCellsFrame(res.HeatCells)})

	if err := utils.SaveSheets(path, sheets...); err != nil {
		return "", err
	}
	return path, nil
}

func ridesSheet(res *processor.Result) dataframe.DataFrame {
	schema := res.Schema
	df := res.Frame
	if !utils.HasColumn(df, schema.Start) || !utils.HasColumn(df, schema.End) {
		return df
	}
	withDuration, err := utils.SubSeriesTime(df, schema.End, schema.Start, DurationColumn, schema.TimestampLayouts...)
	if err != nil {
		// unknown timestamp layout, keep the frame as cleaned
		return df
	}
	return withDuration
}

func heatCellsFrame(cells []processor.HeatCell) dataframe.DataFrame {
	hashes := make([]string, len(cells))
	lats := make([]float64, len(cells))
	lons := make([]float64, len(cells))
	weights := make([]int, len(cells))
	for i, c := range cells {
		hashes[i], lats[i], lons[i], weights[i] = c.Hash, c.Lat, c.Lon, c.Weight
	}
	return dataframe.New(
		series.New(hashes, series.String, "geohash"),
		series.New(lats, series.Float, "lat"),
		series.New(lons, series.Float, "lon"),
		series.New(weights, series.Int, "weight"),
	)
}
