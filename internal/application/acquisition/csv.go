package acquisition

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
)

// CSVHeader is the column layout of an acquisition CSV.
var CSVHeader = []string{"Substance", "CAS Number", "Synonyms", "PubChem CID"}

// SynonymSeparator joins the synonyms of one row.
const SynonymSeparator = "; "

// WriteCSV writes ids with a header row. Unknown substances keep their name
// and leave the other columns empty.
func WriteCSV(w io.Writer, ids []Identifier) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, id := range ids {
		cid := ""
		if id.CID > 0 {
			cid = strconv.FormatInt(id.CID, 10)
		}
		row := []string{id.Substance, id.CASNumber, strings.Join(id.Synonyms, SynonymSeparator), cid}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
