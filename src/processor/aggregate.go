package processor

import (
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FrequencyTable is a value count of one categorical column inside one partition,
// ordered by descending count.
type FrequencyTable struct {
	Partition string          `json:"partition"`
	Column    string          `json:"column"`
	Rows      []CategoryCount `json:"rows"`
}

// ValueCounts counts categoryCol over the rows where partitionCol equals
// partitionValue. An empty partitionCol counts the whole frame. Ties keep the
// order in which the values first appear; empty values are skipped.
func ValueCounts(df dataframe.DataFrame, partitionCol, partitionValue, categoryCol string) (FrequencyTable, error) {
	table := FrequencyTable{Partition: partitionValue, Column: categoryCol}

	if err := RequireColumns(df, categoryCol); err != nil {
		return table, err
	}
	part := df
	if partitionCol != "" {
		if err := RequireColumns(df, partitionCol); err != nil {
			return table, err
		}
		part = df.Filter(dataframe.F{
			Colname:    partitionCol,
			Comparator: series.Eq,
			Comparando: partitionValue,
		})
		if part.Err != nil {
			return table, part.Err
		}
	}

	table.Rows = countValues(part.Col(categoryCol).Records())
	return table, nil
}

func countValues(values []string) []CategoryCount {
	index := make(map[string]int)
	var rows []CategoryCount
	for _, v := range values {
		if isMissing(v) {
			continue
		}
		if i, ok := index[v]; ok {
			rows[i].Count++
			continue
		}
		index[v] = len(rows)
		rows = append(rows, CategoryCount{Value: v, Count: 1})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })
	return rows
}

func isMissing(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == "NaN"
}

// Partitions lists the distinct non-empty values of col in order of first appearance.
func Partitions(df dataframe.DataFrame, col string) ([]string, error) {
	if err := RequireColumns(df, col); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, v := range df.Col(col).Records() {
		if isMissing(v) || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}

// CountsByPartition builds one table per partition value. When partitions is
// empty every distinct value of partitionCol is used.
func CountsByPartition(df dataframe.DataFrame, partitionCol, categoryCol string, partitions []string) ([]FrequencyTable, error) {
	if len(partitions) == 0 {
		var err error
		if partitions, err = Partitions(df, partitionCol); err != nil {
			return nil, err
		}
	}
	tables := make([]FrequencyTable, 0, len(partitions))
	for _, p := range partitions {
		t, err := ValueCounts(df, partitionCol, p, categoryCol)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// Top returns a table holding at most the first n rows; n <= 0 keeps all.
func (t FrequencyTable) Top(n int) FrequencyTable {
	if n <= 0 || n >= len(t.Rows) {
		return t
	}
	out := t
	out.Rows = append([]CategoryCount(nil), t.Rows[:n]...)
	return out
}

func (t FrequencyTable) Total() int {
	total := 0
	for _, r := range t.Rows {
		total += r.Count
	}
	return total
}

func (t FrequencyTable) Map() map[string]int {
	m := make(map[string]int, len(t.Rows))
	for _, r := range t.Rows {
		m[r.Value] = r.Count
	}
	return m
}

// DataFrame renders the table as two columns: the category and "count".
func (t FrequencyTable) DataFrame() dataframe.DataFrame {
	values := make([]string, len(t.Rows))
	counts := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		values[i] = r.Value
		counts[i] = r.Count
	}
	return dataframe.New(
		series.New(values, series.String, t.Column),
		series.New(counts, series.Int, "count"),
	)
}
