// Package checkpoint persists named weight matrices in a compact binary
// container. Files are written once and never mutated; periodic saves during
// training go to fresh timestamped paths.
package checkpoint

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mortonjt/poplar/internal/ml"
)

// LastSuffix marks the checkpoint written after training completes.
const LastSuffix = "last"

const formatVersion = 1

var magic = [4]byte{'P', 'P', 'L', 'R'}

const maxNameLen = 1 << 12

// maxEntryElems bounds rows*cols before allocation so a corrupt file cannot
// demand an absurd buffer.
const maxEntryElems = 1 << 26

// TimestampSuffix renders t the way periodic checkpoints and default log
// directories are named.
func TimestampSuffix(t time.Time) string {
	return t.Format("060102_150405")
}

// Entry is one named matrix inside a checkpoint file.
type Entry struct {
	Name   string
	Matrix *mat.Dense
}

// FromParams snapshots parameter values as checkpoint entries.
func FromParams(params []*ml.Param) []Entry {
	var entries = make([]Entry, len(params))
	for i, p := range params {
		entries[i] = Entry{Name: p.Name, Matrix: p.Value}
	}
	return entries
}

// Save writes the entries to path. Values are stored as row-major float32,
// little endian.
func Save(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create checkpoint %s", path)
	}
	if err := writeAll(f, entries); err != nil {
		f.Close()
		return errors.Wrapf(err, "write checkpoint %s", path)
	}
	return errors.Wrapf(f.Close(), "close checkpoint %s", path)
}

func writeAll(f io.Writer, entries []Entry) error {
	var w = bufio.NewWriter(f)
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if err := writeUint32(w, formatVersion); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeEntry(w, e); err != nil {
			return errors.Wrapf(err, "entry %s", e.Name)
		}
	}
	return w.Flush()
}

func writeEntry(w *bufio.Writer, e Entry) error {
	if err := writeUint32(w, uint32(len(e.Name))); err != nil {
		return err
	}
	if _, err := w.WriteString(e.Name); err != nil {
		return err
	}
	var rows, cols = e.Matrix.Dims()
	if err := writeUint32(w, uint32(rows)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(cols)); err != nil {
		return err
	}
	var values = make([]float32, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			values = append(values, float32(e.Matrix.At(r, c)))
		}
	}
	return binary.Write(w, binary.LittleEndian, values)
}

// Load reads every entry of a checkpoint file.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open checkpoint %s", path)
	}
	defer f.Close()

	var r = bufio.NewReader(f)
	var header [4]byte
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrapf(err, "read checkpoint %s", path)
	}
	if header != magic {
		return nil, errors.Errorf("%s is not a checkpoint file", path)
	}
	version, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read checkpoint %s", path)
	}
	if version != formatVersion {
		return nil, errors.Errorf("checkpoint %s has unsupported version %d", path, version)
	}
	count, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read checkpoint %s", path)
	}

	var entries = make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		e, err := readEntry(r)
		if err != nil {
			return nil, errors.Wrapf(err, "read checkpoint %s entry %d", path, i)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func readEntry(r *bufio.Reader) (Entry, error) {
	nameLen, err := readUint32(r)
	if err != nil {
		return Entry{}, err
	}
	if nameLen == 0 || nameLen > maxNameLen {
		return Entry{}, errors.Errorf("corrupt entry name length %d", nameLen)
	}
	var name = make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return Entry{}, err
	}
	rows, err := readUint32(r)
	if err != nil {
		return Entry{}, err
	}
	cols, err := readUint32(r)
	if err != nil {
		return Entry{}, err
	}
	// the product is taken in uint64 so corrupt dims cannot wrap around
	var elems = uint64(rows) * uint64(cols)
	if elems == 0 || elems > maxEntryElems {
		return Entry{}, errors.Errorf("corrupt entry shape %dx%d", rows, cols)
	}
	var values = make([]float32, elems)
	if err := binary.Read(r, binary.LittleEndian, values); err != nil {
		return Entry{}, err
	}
	var data = make([]float64, len(values))
	for i, v := range values {
		data[i] = float64(v)
	}
	return Entry{
		Name:   string(name),
		Matrix: mat.NewDense(int(rows), int(cols), data),
	}, nil
}

// Restore copies entry values into matching parameters by name. Every
// parameter must have an entry of the same shape.
func Restore(entries []Entry, params []*ml.Param) error {
	var byName = make(map[string]*mat.Dense, len(entries))
	for _, e := range entries {
		byName[e.Name] = e.Matrix
	}
	for _, p := range params {
		m, ok := byName[p.Name]
		if !ok {
			return errors.Errorf("checkpoint has no entry %s", p.Name)
		}
		var pr, pc = p.Value.Dims()
		var mr, mc = m.Dims()
		if pr != mr || pc != mc {
			return errors.Errorf("entry %s is %dx%d, parameter wants %dx%d", p.Name, mr, mc, pr, pc)
		}
		p.Value.Copy(m)
	}
	return nil
}

func writeUint32(w *bufio.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readUint32(r *bufio.Reader) (uint32, error) {
	var v uint32
	var err = binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
