// Package output печать результатов команд в табличном, JSON или YAML виде.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Table строки таблицы; первая строка заголовок
type Table [][]string

// Print выводит v в формате format. Для table используется rows.
func Print(w io.Writer, format string, v any, rows func() Table) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable, "":
		return printTable(w, rows())
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func printTable(w io.Writer, t Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, row := range t {
		for j, cell := range row {
			if j > 0 {
				fmt.Fprint(tw, "\t")
			}
			if i == 0 {
				cell = color.New(color.Bold).Sprint(cell)
			}
			fmt.Fprint(tw, cell)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
