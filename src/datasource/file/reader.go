// reader.go
package file

import (
	"TaxiGovExplorer/src/config"
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding/charmap"
)

var (
	ErrNoCSV           = errors.New("archive contains no csv file")
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// Options 读取参数
type Options struct {
	Sheet     string
	Encoding  string
	Delimiter rune
	// HeaderRow is the 0-based xlsx row holding the headers; data starts below it.
	HeaderRow int
}

func OptionsFromConfig(cfg *config.Config, dcfg *config.DataConfig) Options {
	opts := Options{Encoding: dcfg.Encoding, HeaderRow: dcfg.HeaderRow, Delimiter: ','}
	if cfg != nil {
		opts.Sheet = cfg.SheetName
	}
	if d := []rune(dcfg.Delimiter); len(d) > 0 {
		opts.Delimiter = d[0]
	}
	return opts
}

// Supported reports whether ReadFile understands the extension of path.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".csv", ".xlsx":
		return true
	}
	return false
}

// ReadFile loads a local .zip, .csv or .xlsx export with every column as strings.
func ReadFile(path string, opts Options) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		data, err := os.ReadFile(path)
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		return ReadZip(data, opts)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		defer f.Close()
		return ReadCSV(f, opts)
	case ".xlsx":
		return ReadXLSX(path, opts)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
}

// ReadZip opens an in-memory archive and reads its first .csv entry.
func ReadZip(data []byte, opts Options) (dataframe.DataFrame, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("open zip: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(f.Name), ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return ReadCSV(rc, opts)
	}
	return dataframe.DataFrame{}, ErrNoCSV
}

// ReadCSV decodes r and loads it without type detection, so coordinates keep
// their raw text for repair.
func ReadCSV(r io.Reader, opts Options) (dataframe.DataFrame, error) {
	decoded, err := decode(r, opts.Encoding)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = ','
	}
	df := dataframe.ReadCSV(decoded,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithDelimiter(delimiter),
	)
	if df.Err != nil {
		return df, fmt.Errorf("read csv: %w", df.Err)
	}
	return df, nil
}

func decode(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin1", "latin-1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	case "cp1252", "windows-1252":
		return charmap.Windows1252.NewDecoder().Reader(r), nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}

// ReadXLSX reads opts.Sheet (the first sheet when empty) into a string frame.
func ReadXLSX(filePath string, opts Options) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表: %s", filePath)
	}

	sheet := xlFile.Sheets[0]
	if opts.Sheet != "" {
		s, ok := xlFile.Sheet[opts.Sheet]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("sheet %s 获取失败", opts.Sheet)
		}
		sheet = s
	}
	return convertSheetToDataFrame(sheet, opts.HeaderRow)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet, headerRow int) (dataframe.DataFrame, error) {
	if len(sheet.Rows) <= headerRow {
		return dataframe.DataFrame{}, fmt.Errorf("sheet %s 没有标题行 %d", sheet.Name, headerRow)
	}

	var headers []string
	for _, cell := range sheet.Rows[headerRow].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}
	// drop trailing empty header cells
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}

	dataRows := sheet.Rows[headerRow+1:]
	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(dataRows))
	}
	for _, row := range dataRows {
		for i := range headers {
			v := ""
			if row != nil && i < len(row.Cells) {
				v = row.Cells[i].Value
			}
			columns[i] = append(columns[i], v)
		}
	}

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}
	df := dataframe.New(seriesList...)
	return df, df.Err
}
