package processor

import (
	"errors"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueCounts(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"TAXIGOV_DF", "TAXIGOV_DF", "TAXIGOV_DF", "TAXIGOV_SP_10"}, series.String, "base_origem"),
		series.New([]string{"A", "A", "B", "C"}, series.String, "motivo_corrida"),
	)

	table, err := ValueCounts(df, "base_origem", "TAXIGOV_DF", "motivo_corrida")
	require.NoError(t, err)
	assert.Equal(t, []CategoryCount{{"A", 2}, {"B", 1}}, table.Rows)
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, table.Map())
	assert.Equal(t, 3, table.Total())
	assert.Equal(t, "TAXIGOV_DF", table.Partition)

	all, err := ValueCounts(df, "", "", "motivo_corrida")
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total())
}

func TestValueCountsTiesAndMissing(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"B", "", "A", "B", "A", "C", "NaN"}, series.String, "motivo_corrida"),
	)
	table, err := ValueCounts(df, "", "", "motivo_corrida")
	require.NoError(t, err)
	// B and A tie; B appeared first
	assert.Equal(t, []CategoryCount{{"B", 2}, {"A", 2}, {"C", 1}}, table.Rows)
}

func TestValueCountsMissingColumn(t *testing.T) {
	df := dataframe.New(series.New([]string{"A"}, series.String, "motivo_corrida"))

	_, err := ValueCounts(df, "", "", "nome_orgao")
	assert.True(t, errors.Is(err, ErrMissingColumn))
	_, err = ValueCounts(df, "base_origem", "TAXIGOV_DF", "motivo_corrida")
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestCountsByPartition(t *testing.T) {
	df := rideFrame()

	bases, err := Partitions(df, "base_origem")
	require.NoError(t, err)
	assert.Equal(t, []string{"TAXIGOV_DF", "TAXIGOV_RJ_10"}, bases)

	tables, err := CountsByPartition(df, "base_origem", "nome_orgao", nil)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, []CategoryCount{{"MEC", 2}}, tables[0].Rows)
	assert.Equal(t, []CategoryCount{{"MS", 1}}, tables[1].Rows)

	// a configured base with no rides gets an empty table
	tables, err = CountsByPartition(df, "base_origem", "motivo_corrida", []string{"TAXIGOV_SP_10"})
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Empty(t, tables[0].Rows)
}

func TestFrequencyTableTop(t *testing.T) {
	table := FrequencyTable{Rows: []CategoryCount{{"A", 3}, {"B", 2}, {"C", 1}}}

	assert.Len(t, table.Top(2).Rows, 2)
	assert.Len(t, table.Top(0).Rows, 3)
	assert.Len(t, table.Top(10).Rows, 3)
	assert.Len(t, table.Rows, 3)
}

func TestFrequencyTableDataFrame(t *testing.T) {
	table := FrequencyTable{Column: "motivo_corrida", Rows: []CategoryCount{{"A", 2}, {"B", 1}}}
	df := table.DataFrame()

	assert.Equal(t, []string{"motivo_corrida", "count"}, df.Names())
	assert.Equal(t, []string{"A", "B"}, df.Col("motivo_corrida").Records())
	counts, err := df.Col("count").Int()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, counts)
}
