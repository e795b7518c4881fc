package chromedp_extractor

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/user/quiz-runner-service/internal/entity"
	"github.com/xuri/excelize/v2"
)

var binaryExtensions = map[string]struct{}{
	".pdf": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {},
	".zip": {}, ".mp3": {}, ".wav": {}, ".bin": {},
}

// loadProvidedData fetches the provided-data resource and parses it by the
// content type inferred from the URL's path extension. Tabular files become
// header-to-value row maps, known binary types stay opaque bytes, and
// anything else renders through the browser as a plain HTML page. A failed
// secondary fetch degrades to no provided data rather than failing the
// extraction; the solver falls back to the raw page content.
func (e *ChromedpExtractor) loadProvidedData(ctx context.Context, dataURL string) entity.ProvidedData {
	ext := extensionOf(dataURL)

	switch {
	case ext == ".csv":
		raw, err := e.fetcher.Fetch(ctx, dataURL)
		if err != nil {
			slog.Warn("Provided data fetch failed", "url", dataURL, "error", err)
			return entity.ProvidedData{Kind: entity.ProvidedDataNone}
		}
		rows, err := parseCSVRows(raw)
		if err != nil {
			slog.Warn("Provided data CSV parse failed", "url", dataURL, "error", err)
			return entity.ProvidedData{Kind: entity.ProvidedDataBinary, Raw: raw}
		}
		return entity.ProvidedData{Kind: entity.ProvidedDataTabular, Rows: rows}

	case ext == ".xlsx" || ext == ".xls":
		raw, err := e.fetcher.Fetch(ctx, dataURL)
		if err != nil {
			slog.Warn("Provided data fetch failed", "url", dataURL, "error", err)
			return entity.ProvidedData{Kind: entity.ProvidedDataNone}
		}
		rows, err := parseXLSXRows(raw)
		if err != nil {
			slog.Warn("Provided data spreadsheet parse failed", "url", dataURL, "error", err)
			return entity.ProvidedData{Kind: entity.ProvidedDataBinary, Raw: raw}
		}
		return entity.ProvidedData{Kind: entity.ProvidedDataTabular, Rows: rows}

	case isBinaryExtension(ext):
		raw, err := e.fetcher.Fetch(ctx, dataURL)
		if err != nil {
			slog.Warn("Provided data fetch failed", "url", dataURL, "error", err)
			return entity.ProvidedData{Kind: entity.ProvidedDataNone}
		}
		return entity.ProvidedData{Kind: entity.ProvidedDataBinary, Raw: raw}

	default:
		html, err := e.renderHTML(ctx, dataURL)
		if err != nil {
			slog.Warn("Provided data page render failed", "url", dataURL, "error", err)
			return entity.ProvidedData{Kind: entity.ProvidedDataNone}
		}
		return entity.ProvidedData{Kind: entity.ProvidedDataHTML, HTML: html}
	}
}

func extensionOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(parsed.Path))
}

func isBinaryExtension(ext string) bool {
	_, ok := binaryExtensions[ext]
	return ok
}

// parseCSVRows parses CSV bytes into an ordered sequence of header-to-value
// row maps. The first record is the header.
func parseCSVRows(raw []byte) ([]map[string]string, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(record) {
				row[key] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseXLSXRows reads the first sheet of a spreadsheet into the same row-map
// shape as parseCSVRows.
func parseXLSXRows(raw []byte) ([]map[string]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}

	records, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	header := records[0]
	var rows []map[string]string
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(record) {
				row[key] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
