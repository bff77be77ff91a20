// Package optable lists a registry's notations for people (a table) and for
// tools (JSON).
package optable

import (
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/sambeau/pratt/pkg/pratt/registry"
)

// Row describes one registered symbol.
type Row struct {
	Symbol     string `json:"symbol"`
	Leading    bool   `json:"leading"`
	Trailing   bool   `json:"trailing"`
	Terminator bool   `json:"terminator,omitempty"`
	Precedence int    `json:"precedence"` // trailing binding power; 0 for leading-only symbols
}

// Rows returns trailing symbols by precedence, then leading-only symbols.
func Rows(reg *registry.Registry) []Row {
	leading := make(map[string]bool)
	for _, s := range reg.LeadingSymbols() {
		leading[s] = true
	}

	var rows []Row
	seen := make(map[string]bool)
	for _, e := range reg.Entries() {
		rows = append(rows, Row{
			Symbol:     e.Symbol,
			Leading:    leading[e.Symbol],
			Trailing:   true,
			Terminator: e.Terminator(),
			Precedence: e.Precedence,
		})
		seen[e.Symbol] = true
	}

	var rest []string
	for s := range leading {
		if !seen[s] {
			rest = append(rest, s)
		}
	}
	sort.Strings(rest)
	for _, s := range rest {
		rows = append(rows, Row{Symbol: s, Leading: true})
	}
	return rows
}

// WriteTable renders the rows as a text table.
func WriteTable(w io.Writer, reg *registry.Registry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Symbol", "Precedence", "Role"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, r := range Rows(reg) {
		prec := "-"
		if r.Trailing {
			prec = strconv.Itoa(r.Precedence)
		}
		table.Append([]string{r.Symbol, prec, role(r)})
	}
	table.Render()
}

func role(r Row) string {
	switch {
	case r.Terminator:
		return "terminator"
	case r.Leading && r.Trailing:
		return "leading, trailing"
	case r.Trailing:
		return "trailing"
	}
	return "leading"
}

// WriteJSON writes the rows as an indented JSON array.
func WriteJSON(w io.Writer, reg *registry.Registry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Rows(reg))
}
