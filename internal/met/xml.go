package met

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bgforge/gnubgcore/internal/datafile"
)

type xmlMET struct {
	XMLName      xml.Name          `xml:"met"`
	Info         xmlInfo           `xml:"info"`
	PreCrawford  xmlPreCrawford    `xml:"pre-crawford-table"`
	PostCrawford []xmlPostCrawford `xml:"post-crawford-table"`
}

type xmlInfo struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Length      int    `xml:"length"`
}

type xmlPreCrawford struct {
	Type string   `xml:"type,attr"`
	Rows []xmlRow `xml:"row"`
}

type xmlPostCrawford struct {
	Player string `xml:"player,attr"`
	Type   string `xml:"type,attr"`
	Row    xmlRow `xml:"row"`
}

type xmlRow struct {
	Values []string `xml:"me"`
}

// LoadXML loads a gnubg XML match equity table, optionally zstd compressed.
func LoadXML(filename string) (*Table, error) {
	r, err := datafile.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open MET file: %w", err)
	}
	defer r.Close()
	return ParseXML(r)
}

func parseRow(row xmlRow, n int) ([]float32, error) {
	if len(row.Values) < n {
		return nil, fmt.Errorf("%w: row has %d values, want %d", ErrInvalidTable, len(row.Values), n)
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(row.Values[i]), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %v", ErrInvalidTable, i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// ParseXML parses an explicit table. Scores beyond the table's length are
// extrapolated the same way Default extrapolates.
func ParseXML(r io.Reader) (*Table, error) {
	var doc xmlMET
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	n := doc.Info.Length
	if n < 1 || n > MaxScore {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidTable, n)
	}
	if doc.PreCrawford.Type != "" && doc.PreCrawford.Type != "explicit" {
		return nil, fmt.Errorf("%w: unsupported pre-Crawford type %q", ErrInvalidTable, doc.PreCrawford.Type)
	}
	if len(doc.PreCrawford.Rows) < n {
		return nil, fmt.Errorf("%w: %d pre-Crawford rows, want %d", ErrInvalidTable, len(doc.PreCrawford.Rows), n)
	}

	t := &Table{
		Name:        doc.Info.Name,
		Description: doc.Info.Description,
		Length:      n,
	}

	for i := 0; i < n; i++ {
		row, err := parseRow(doc.PreCrawford.Rows[i], n)
		if err != nil {
			return nil, fmt.Errorf("pre-Crawford row %d: %w", i, err)
		}
		copy(t.PreCrawford[i][:], row)
	}

	var have [2]bool
	for _, pc := range doc.PostCrawford {
		var players []int
		switch pc.Player {
		case "0":
			players = []int{0}
		case "1":
			players = []int{1}
		case "both", "":
			players = []int{0, 1}
		default:
			continue
		}
		// the n-away post-Crawford score cannot occur, so only n-1 values are used
		row, err := parseRow(pc.Row, n-1)
		if err != nil {
			return nil, fmt.Errorf("post-Crawford table: %w", err)
		}
		for _, p := range players {
			copy(t.PostCrawford[p][:], row)
			initPostCrawford(&t.PostCrawford[p], n-1, gammonRate, freeDrop2, freeDrop4)
			have[p] = true
		}
	}
	for p := 0; p < 2; p++ {
		if !have[p] {
			initPostCrawford(&t.PostCrawford[p], 0, gammonRate, freeDrop2, freeDrop4)
		}
	}

	t.extend(n)
	return t, nil
}
