package logstore

import (
	"bufio"
	"errors"
	"io"
)

// scanner is a bufio.Scanner that splits a log file into records
type scanner struct {
	*bufio.Scanner
}

func newScanner(r io.Reader, maxRecordSize int) *scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 4096), maxRecordSize+headerLength)
	s.Split(split)
	return &scanner{s}
}

// split implements bufio.SplitFunc for serialized records
func split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	r, err := deserialize(data)
	if err != nil {
		if errors.Is(err, ErrInsufficientData) && !atEOF {
			// Not enough bytes for a whole record yet, request more.
			return 0, nil, nil
		}
		return 0, nil, err
	}

	advance = r.size()
	return advance, data[:advance], nil
}

// record returns the record of the last successful call to Scan.
func (s *scanner) record() *record {
	r, _ := deserialize(s.Bytes())
	return r
}
