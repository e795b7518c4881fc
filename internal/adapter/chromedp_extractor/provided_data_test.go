package chromedp_extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/quiz-runner-service/internal/entity"
	"github.com/xuri/excelize/v2"
)

type fakeFetcher struct {
	data map[string][]byte
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data[url], nil
}

func TestLoadProvidedDataCSV(t *testing.T) {
	csvURL := "http://quiz.test/data.csv"
	e := &ChromedpExtractor{fetcher: &fakeFetcher{data: map[string][]byte{
		csvURL: []byte("A,B\n1,2\n41,3\n"),
	}}}

	data := e.loadProvidedData(context.Background(), csvURL)
	require.Equal(t, entity.ProvidedDataTabular, data.Kind)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, data.Rows[0])
	assert.Equal(t, map[string]string{"A": "41", "B": "3"}, data.Rows[1])
}

func TestLoadProvidedDataBinary(t *testing.T) {
	pdfURL := "http://quiz.test/report.pdf"
	raw := []byte{0x25, 0x50, 0x44, 0x46}
	e := &ChromedpExtractor{fetcher: &fakeFetcher{data: map[string][]byte{pdfURL: raw}}}

	data := e.loadProvidedData(context.Background(), pdfURL)
	require.Equal(t, entity.ProvidedDataBinary, data.Kind)
	assert.Equal(t, raw, data.Raw)
}

func workbookBytes(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoadProvidedDataXLSX(t *testing.T) {
	xlsxURL := "http://quiz.test/data.xlsx"
	raw := workbookBytes(t,
		[]any{"A", "B"},
		[]any{"1", "2"},
		[]any{"41", "3"},
	)
	e := &ChromedpExtractor{fetcher: &fakeFetcher{data: map[string][]byte{xlsxURL: raw}}}

	data := e.loadProvidedData(context.Background(), xlsxURL)
	require.Equal(t, entity.ProvidedDataTabular, data.Kind)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, data.Rows[0])
	assert.Equal(t, map[string]string{"A": "41", "B": "3"}, data.Rows[1])
}

func TestLoadProvidedDataCorruptXLSXDegradesToBinary(t *testing.T) {
	xlsxURL := "http://quiz.test/data.xlsx"
	raw := []byte("not a workbook")
	e := &ChromedpExtractor{fetcher: &fakeFetcher{data: map[string][]byte{xlsxURL: raw}}}

	data := e.loadProvidedData(context.Background(), xlsxURL)
	require.Equal(t, entity.ProvidedDataBinary, data.Kind)
	assert.Equal(t, raw, data.Raw)
}

func TestParseXLSXRowsShortRecord(t *testing.T) {
	raw := workbookBytes(t,
		[]any{"A", "B", "C"},
		[]any{"1", "2"},
	)

	rows, err := parseXLSXRows(raw)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0]["A"])
	assert.Equal(t, "2", rows[0]["B"])
	_, hasC := rows[0]["C"]
	assert.False(t, hasC)
}

func TestParseXLSXRowsEmptySheet(t *testing.T) {
	_, err := parseXLSXRows(workbookBytes(t))
	assert.Error(t, err)
}

func TestLoadProvidedDataFetchFailureDegrades(t *testing.T) {
	e := &ChromedpExtractor{fetcher: &fakeFetcher{err: errors.New("connection refused")}}

	data := e.loadProvidedData(context.Background(), "http://quiz.test/data.csv")
	assert.Equal(t, entity.ProvidedDataNone, data.Kind)
}

func TestExtensionOf(t *testing.T) {
	assert.Equal(t, ".csv", extensionOf("http://quiz.test/data.csv"))
	assert.Equal(t, ".csv", extensionOf("http://quiz.test/data.CSV?v=2"))
	assert.Equal(t, ".pdf", extensionOf("http://quiz.test/a/b/report.pdf#page=2"))
	assert.Equal(t, "", extensionOf("http://quiz.test/page"))
}

func TestIsBinaryExtension(t *testing.T) {
	assert.True(t, isBinaryExtension(".pdf"))
	assert.True(t, isBinaryExtension(".png"))
	assert.False(t, isBinaryExtension(".csv"))
	assert.False(t, isBinaryExtension(".html"))
}

func TestParseCSVRowsMalformed(t *testing.T) {
	_, err := parseCSVRows([]byte(""))
	assert.Error(t, err)
}

func TestParseCSVRowsShortRecord(t *testing.T) {
	rows, err := parseCSVRows([]byte("A,B,C\n1,2\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0]["A"])
	assert.Equal(t, "2", rows[0]["B"])
	_, hasC := rows[0]["C"]
	assert.False(t, hasC)
}
