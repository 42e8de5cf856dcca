// Package fetcher reads raw delimited and spreadsheet files and downloads
// remote datasets over HTTP and FTP.
package fetcher

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// CSVOptions configures the delimited text reader.
type CSVOptions struct {
	Delimiter  rune   // 0 = sniff from the first line
	Encoding   string // WHATWG label such as "windows-1251"; "" means UTF-8
	Comment    rune   // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// sniffCandidates are tried in order; earlier entries win ties.
var sniffCandidates = []rune{',', ';', '\t', '|'}

// ReadCSV reads every record from r. The first record is returned as the
// header and the remainder as rows. Records may have any number of fields.
func ReadCSV(r io.Reader, opts CSVOptions) ([]string, [][]string, error) {
	decoded, err := DecodeReader(r, opts.Encoding)
	if err != nil {
		return nil, nil, err
	}

	br := bufio.NewReaderSize(decoded, 64*1024)
	delim := opts.Delimiter
	if delim == 0 {
		// Peek returns what is buffered together with io.EOF on short input.
		head, _ := br.Peek(64 * 1024)
		delim = SniffDelimiter(firstLine(head))
	}

	reader := csv.NewReader(br)
	reader.Comma = delim
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields

	var header []string
	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrap(err, "csv: read row")
		}

		if opts.TrimSpace {
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}
		}

		if header == nil {
			header = record
			continue
		}
		rows = append(rows, record)
	}

	if header == nil {
		return nil, nil, eris.New("csv: missing header row")
	}
	return header, rows, nil
}

// DecodeReader wraps r with a decoder for the named encoding. UTF-8 input has
// a leading byte order mark removed.
func DecodeReader(r io.Reader, encoding string) (io.Reader, error) {
	label := strings.ToLower(strings.TrimSpace(encoding))
	if label == "" || label == "utf-8" || label == "utf8" {
		return unicode.UTF8BOM.NewDecoder().Reader(r), nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: unsupported encoding %q", encoding)
	}
	return enc.NewDecoder().Reader(r), nil
}

// SniffDelimiter picks the candidate delimiter that occurs most often outside
// quotes in line. It falls back to ','.
func SniffDelimiter(line string) rune {
	counts := make(map[rune]int, len(sniffCandidates))
	inQuotes := false
	for _, ch := range line {
		if ch == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[ch]++
		}
	}

	best, bestCount := ',', 0
	for _, c := range sniffCandidates {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

func firstLine(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSuffix(string(b), "\r")
}
