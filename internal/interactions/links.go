package interactions

import (
	"bufio"
	"math/rand"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Split labels accepted in a training column.
const (
	labelTrain = "Train"
	labelTest  = "Test"
	labelValid = "Valid"
)

type linksTable struct {
	train []Pair
	test  []Pair
	valid []Pair
}

// parseLinks reads one tab separated links file. The first two columns hold
// the interacting protein ids; trainingColumn, when present in the header,
// assigns each row to a split. Without it rows split 90/10 train/test with
// the supplied rng.
func parseLinks(path, trainingColumn string, pool *Pool, rnd *rand.Rand) (*linksTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var scanner = bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		return nil, errors.Errorf("links file %s is empty", path)
	}
	var header = strings.Split(scanner.Text(), "\t")
	if len(header) < 2 {
		return nil, errors.Errorf("links file %s needs at least two id columns", path)
	}
	var splitCol = -1
	if trainingColumn != "" {
		for i, name := range header {
			if strings.TrimSpace(name) == trainingColumn {
				splitCol = i
				break
			}
		}
	}

	var table = &linksTable{}
	var lineNo = 1
	for scanner.Scan() {
		lineNo++
		var line = scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var fields = strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, errors.Errorf("%s:%d: need two id columns", path, lineNo)
		}
		anchor, ok := pool.Sequence(strings.TrimSpace(fields[0]))
		if !ok {
			return nil, errors.Errorf("%s:%d: id %q not in sequence pool", path, lineNo, fields[0])
		}
		positive, ok := pool.Sequence(strings.TrimSpace(fields[1]))
		if !ok {
			return nil, errors.Errorf("%s:%d: id %q not in sequence pool", path, lineNo, fields[1])
		}
		var pair = Pair{Anchor: anchor, Positive: positive}

		var label string
		if splitCol >= 0 {
			if splitCol >= len(fields) {
				return nil, errors.Errorf("%s:%d: missing %s column", path, lineNo, trainingColumn)
			}
			label = strings.TrimSpace(fields[splitCol])
		} else if rnd.Float64() < 0.9 {
			label = labelTrain
		} else {
			label = labelTest
		}

		switch label {
		case labelTrain:
			table.train = append(table.train, pair)
		case labelTest:
			table.test = append(table.test, pair)
		case labelValid:
			table.valid = append(table.valid, pair)
		default:
			return nil, errors.Errorf("%s:%d: unknown split label %q", path, lineNo, label)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return table, nil
}
