package formatter

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harunnryd/metsuke/internal/audit"
)

type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) FormatReport(report *audit.Report) (string, error) {
	if report == nil {
		return "null", nil
	}
	data, err := yaml.Marshal(report)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
