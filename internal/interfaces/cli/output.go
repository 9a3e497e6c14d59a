package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/turtacn/substance-resolver/internal/application/resolution"
	wire "github.com/turtacn/substance-resolver/pkg/types/substance"
)

// Output formats accepted by --output.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatText  = "text"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	return t
}

// colorMatchType highlights exact matches green, fuzzy matches yellow and
// misses red.
func colorMatchType(matchType string) string {
	t := resolution.MatchType(matchType)
	switch {
	case t.IsExact():
		return color.GreenString(matchType)
	case t.IsFuzzy():
		return color.YellowString(matchType)
	default:
		return color.RedString(matchType)
	}
}

func printRecords(w io.Writer, format string, records []wire.MatchRecord) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, records)
	case FormatText:
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				r.MatchType, r.ReferenceID, r.Score, r.SubstanceCode, r.Name, r.MatchedText)
		}
		return nil
	}

	t := newTable(w, "Match", "Score", "Reference", "Code", "Name", "Matched", "Synonyms", "Weighting")
	for _, r := range records {
		t.Append([]string{
			colorMatchType(r.MatchType),
			strconv.Itoa(r.Score),
			r.ReferenceID,
			r.SubstanceCode,
			r.Name,
			r.MatchedText,
			strconv.Itoa(r.SynonymCount),
			r.WeightingTagTitle,
		})
	}
	t.Render()
	return nil
}

func printLookup(w io.Writer, format string, resp *wire.SynonymLookupResponse) error {
	if format == FormatJSON {
		return writeJSON(w, resp)
	}
	if !resp.Found {
		fmt.Fprintf(w, "no synonyms found for %q\n", resp.Term)
		return nil
	}
	if format == FormatText {
		for _, g := range resp.Groups {
			for _, s := range g.Synonyms {
				fmt.Fprintf(w, "%s\t%s\t%s\n", g.ReferenceID, g.SubstanceCode, s)
			}
		}
		return nil
	}

	t := newTable(w, "Reference", "Code", "Name", "Synonym")
	for _, g := range resp.Groups {
		for _, s := range g.Synonyms {
			t.Append([]string{g.ReferenceID, g.SubstanceCode, g.Name, s})
		}
	}
	t.Render()
	return nil
}

func printInsights(w io.Writer, format string, r *wire.InsightsReport) error {
	if format == FormatJSON {
		return writeJSON(w, r)
	}

	fmt.Fprintf(w, "Total synonyms:            %d\n", r.TotalSynonyms)
	fmt.Fprintf(w, "Single-substance synonyms: %d\n", r.SingleSubstanceSynonymsCount)
	fmt.Fprintf(w, "Multi-substance synonyms:  %d\n", r.MultiSubstanceSynonymsCount)
	if format == FormatText {
		for _, s := range r.AmbiguousTop10 {
			fmt.Fprintf(w, "ambiguous\t%s\t%d\n", s.LocalName, s.DistinctSubstanceCount)
		}
		for _, s := range r.TopSubstancesBySynonyms {
			fmt.Fprintf(w, "top\t%s\t%s\t%d\n", s.SubstanceCode, s.Name, s.SynonymCount)
		}
		return nil
	}

	if len(r.AmbiguousTop10) > 0 {
		fmt.Fprintln(w, "\nMost ambiguous synonyms")
		t := newTable(w, "Synonym", "Substances")
		for _, s := range r.AmbiguousTop10 {
			t.Append([]string{s.LocalName, strconv.Itoa(s.DistinctSubstanceCount)})
		}
		t.Render()
	}
	if len(r.TopSubstancesBySynonyms) > 0 {
		fmt.Fprintln(w, "\nSubstances with most synonyms")
		t := newTable(w, "Code", "Name", "Synonyms")
		for _, s := range r.TopSubstancesBySynonyms {
			t.Append([]string{s.SubstanceCode, s.Name, strconv.Itoa(s.SynonymCount)})
		}
		t.Render()
	}
	if len(r.SubstancesPerType) > 0 {
		fmt.Fprintln(w, "\nSubstances per type")
		t := newTable(w, "Type", "Count")
		for _, s := range r.SubstancesPerType {
			t.Append([]string{s.Type, strconv.Itoa(s.Count)})
		}
		t.Render()
	}
	return nil
}
