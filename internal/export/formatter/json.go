package formatter

import (
	"encoding/json"

	"github.com/harunnryd/metsuke/internal/audit"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) FormatReport(report *audit.Report) (string, error) {
	if report == nil {
		return "null", nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
