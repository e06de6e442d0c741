package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/TomasB/geoalloc/internal/cidr"
)

// ErrDatasetLoad is returned when a dataset row cannot be turned into a Record.
var ErrDatasetLoad = errors.New("dataset load failed")

const (
	headerToken = "network"
	fieldCount  = 7
)

// Column positions in a dataset row. Columns 1 and 2 are not used.
const (
	colNetwork     = 0
	colCountryCode = 3
	colCountryName = 4
	colStateCode   = 5
	colStateName   = 6
)

// ParseDataset reads comma-separated allocation rows of the form
//
//	network,?,?,country_code,country_name,state_code,state_name
//
// Blank rows and a header row (first field "network") are skipped.
// A bare '"' inside an unquoted field is kept as part of the value.
// Any other malformed row fails the whole parse.
func ParseDataset(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var records []Record
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatasetLoad, err)
		}
		line, _ := cr.FieldPos(0)

		if isBlank(fields) || strings.TrimSpace(fields[colNetwork]) == headerToken {
			continue
		}
		if len(fields) != fieldCount {
			return nil, fmt.Errorf("%w: line %d: expected %d fields, got %d", ErrDatasetLoad, line, fieldCount, len(fields))
		}

		rec, err := parseRow(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrDatasetLoad, line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseRows is ParseDataset over lines already split by the caller.
func ParseRows(rows []string) ([]Record, error) {
	return ParseDataset(strings.NewReader(strings.Join(rows, "\n")))
}

func parseRow(fields []string) (Record, error) {
	network := strings.TrimSpace(fields[colNetwork])
	r, err := cidr.Compute(network)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Network:     network,
		CountryCode: strings.TrimSpace(fields[colCountryCode]),
		CountryName: strings.TrimSpace(fields[colCountryName]),
		StateCode:   strings.TrimSpace(fields[colStateCode]),
		StateName:   strings.TrimSpace(fields[colStateName]),
		Start:       r.Start,
		End:         r.End,
	}, nil
}

func isBlank(fields []string) bool {
	return len(fields) == 1 && strings.TrimSpace(fields[0]) == ""
}
