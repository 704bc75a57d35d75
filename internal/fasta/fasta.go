// Package fasta reads protein sequence files in FASTA format.
package fasta

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

type Record struct {
	ID          string
	Description string
	Seq         string
}

func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read fasta %s", path)
	}
	return records, nil
}

// Read parses records from r. A record starts with a '>' header line whose
// first word is the id; sequence lines are concatenated until the next header.
func Read(r io.Reader) ([]Record, error) {
	var records []Record
	var current *Record
	var seq strings.Builder

	var flush = func() {
		if current != nil {
			current.Seq = seq.String()
			records = append(records, *current)
			seq.Reset()
		}
	}

	var scanner = bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lineNo int
	for scanner.Scan() {
		lineNo++
		var line = strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			var header = strings.TrimSpace(line[1:])
			if header == "" {
				return nil, errors.Errorf("line %d: empty fasta header", lineNo)
			}
			var fields = strings.Fields(header)
			current = &Record{ID: fields[0]}
			if len(fields) > 1 {
				current.Description = strings.Join(fields[1:], " ")
			}
			continue
		}
		if current == nil {
			return nil, errors.Errorf("line %d: sequence data before first header", lineNo)
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return records, nil
}
