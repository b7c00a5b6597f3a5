package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/arloliu/shocktrack/internal/logging"
	"github.com/arloliu/shocktrack/types"
)

// CompressedSuffix marks a zstd-compressed dump.
const CompressedSuffix = ".zst"

// maxLineSize bounds a single data row.
const maxLineSize = 1 << 20

// Directory reads readable text dumps from a dataset directory.
//
// Snapshot i (0-based) lives at <base>/<dataset>/<file>.<i+1>, optionally
// with a ".zst" suffix. A dump has a banner line, a line of scalars, a line
// of column names and then one whitespace-separated row per grid point.
type Directory struct {
	basePath string
	baseFile string
	logger   types.Logger
}

var _ types.SnapshotReader = (*Directory)(nil)

// NewDirectory creates a directory snapshot reader.
//
// Parameters:
//   - basePath: Directory holding one subdirectory per dataset
//   - baseFile: Dump file prefix (e.g., "dump")
//   - logger: Logger for skipped entries (nil for no logging)
//
// Returns:
//   - *Directory: Initialized reader
//
// Example:
//
//	reader := source.NewDirectory("/scratch/runs", "dump", logger)
//	numFiles, first, err := reader.Count(ctx, "s15.0.swbj15.horo.3d")
func NewDirectory(basePath, baseFile string, logger types.Logger) *Directory {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Directory{basePath: basePath, baseFile: baseFile, logger: logger}
}

// Count scans the dataset directory for dump files.
//
// Returns:
//   - numFiles: Highest dump number found (series length)
//   - first: Lowest dump number minus one (0-based index of the first dump)
//   - err: types.ErrNoSnapshots when the directory holds no dump
func (d *Directory) Count(_ context.Context, dataset string) (int, int, error) {
	entries, err := os.ReadDir(filepath.Join(d.basePath, dataset))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, 0, fmt.Errorf("%w: dataset %s", types.ErrNoSnapshots, dataset)
		}

		return 0, 0, fmt.Errorf("list dataset %s: %w", dataset, err)
	}

	lowest, highest := 0, 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, ok := d.dumpNumber(e.Name())
		if !ok {
			continue
		}
		if lowest == 0 || n < lowest {
			lowest = n
		}
		if n > highest {
			highest = n
		}
	}

	if highest == 0 {
		return 0, 0, fmt.Errorf("%w: dataset %s", types.ErrNoSnapshots, dataset)
	}

	return highest, lowest - 1, nil
}

// dumpNumber extracts the 1-based dump number from a file name.
func (d *Directory) dumpNumber(name string) (int, bool) {
	name = strings.TrimSuffix(name, CompressedSuffix)
	prefix := d.baseFile + "."
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}

	n, err := strconv.Atoi(name[len(prefix):])
	if err != nil || n < 1 {
		return 0, false
	}

	return n, true
}

// Read loads and parses snapshot i.
//
// Returns:
//   - *types.Profile: Parsed snapshot
//   - error: types.ErrSnapshotNotFound when neither the plain nor the
//     compressed dump exists, types.ErrSnapshotFormat when parsing fails
func (d *Directory) Read(ctx context.Context, dataset string, i int) (*types.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rc, err := d.open(dataset, i)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	p, err := Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("dataset %s snapshot %d: %w", dataset, i, err)
	}
	p.Index = i

	return p, nil
}

func (d *Directory) open(dataset string, i int) (io.ReadCloser, error) {
	path := filepath.Join(d.basePath, dataset, fmt.Sprintf("%s.%d", d.baseFile, i+1))

	f, err := os.Open(path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	f, err = os.Open(path + CompressedSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", types.ErrSnapshotNotFound, path)
		}

		return nil, fmt.Errorf("open %s%s: %w", path, CompressedSuffix, err)
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: zstd %s: %v", types.ErrSnapshotFormat, path, err)
	}

	return &zstdFile{dec: dec, f: f}, nil
}

type zstdFile struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdFile) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdFile) Close() error {
	z.dec.Close()
	return z.f.Close()
}

// Parse decodes one readable text dump.
//
// Line 2 carries time, bounce time, PNS index, PNS radius, shock index,
// shock radius and one or three luminosities. Column names containing '['
// are unit annotations and do not name a data column. Fortran-style 'D'
// exponents are accepted.
//
// Parameters:
//   - r: Dump contents
//
// Returns:
//   - *types.Profile: Profile with Index left at 0
//   - error: types.ErrSnapshotFormat for malformed input
func Parse(r io.Reader) (*types.Profile, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lines := make([]string, 0, 3)
	for len(lines) < 3 && sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSnapshotFormat, err)
	}
	if len(lines) < 3 {
		return nil, fmt.Errorf("%w: header has %d lines", types.ErrSnapshotFormat, len(lines))
	}

	p := &types.Profile{}
	if err := parseScalars(lines[1], p); err != nil {
		return nil, err
	}

	names := columnNames(lines[2])
	cols := resolveColumns(names)
	if cols.radius < 0 || cols.rho < 0 || cols.velocity < 0 {
		return nil, fmt.Errorf("%w: missing radius, density or velocity column in %v", types.ErrSnapshotFormat, names)
	}

	row := 3
	for sc.Scan() {
		row++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < len(names) {
			return nil, fmt.Errorf("%w: row %d has %d of %d columns", types.ErrSnapshotFormat, row, len(fields), len(names))
		}

		vals, err := parseFields(fields, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", types.ErrSnapshotFormat, row, err)
		}
		p.Radius = append(p.Radius, vals[0])
		p.Density = append(p.Density, vals[1])
		p.Velocity = append(p.Velocity, vals[2])
		if cols.sound >= 0 {
			p.Sound = append(p.Sound, vals[3])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSnapshotFormat, err)
	}

	return p, nil
}

func parseScalars(line string, p *types.Profile) error {
	fields := strings.Fields(line)
	if len(fields) < 7 {
		return fmt.Errorf("%w: scalar line has %d values", types.ErrSnapshotFormat, len(fields))
	}

	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseFloat(f)
		if err != nil {
			return fmt.Errorf("%w: scalar %d: %v", types.ErrSnapshotFormat, i, err)
		}
		vals[i] = v
	}

	p.Time = vals[0]
	p.BounceTime = vals[1]
	for s := 0; s < types.NumSpecies && 6+s < len(vals); s++ {
		p.Luminosity[s] = vals[6+s]
	}

	return nil
}

func columnNames(line string) []string {
	names := make([]string, 0, 16)
	for _, tok := range strings.Fields(line) {
		if strings.Contains(tok, "[") {
			continue
		}
		names = append(names, strings.ToLower(tok))
	}

	return names
}

type columns struct {
	radius, rho, velocity, sound int
}

func resolveColumns(names []string) columns {
	c := columns{radius: -1, rho: -1, velocity: -1, sound: -1}
	for i, name := range names {
		switch {
		case c.radius < 0 && (name == "r" || name == "x" || strings.Contains(name, "radius")):
			c.radius = i
		case c.rho < 0 && strings.Contains(name, "rho"):
			c.rho = i
		case c.velocity < 0 && (name == "u1" || name == "v" || name == "vr" || strings.HasPrefix(name, "vel")):
			c.velocity = i
		case c.sound < 0 && (name == "eos1" || name == "cs" || strings.Contains(name, "sound")):
			c.sound = i
		}
	}

	return c
}

func parseFields(fields []string, c columns) ([4]float64, error) {
	var out [4]float64
	idx := [4]int{c.radius, c.rho, c.velocity, c.sound}
	for k, i := range idx {
		if i < 0 {
			continue
		}
		v, err := parseFloat(fields[i])
		if err != nil {
			return out, err
		}
		out[k] = v
	}

	return out, nil
}

func parseFloat(s string) (float64, error) {
	if strings.ContainsAny(s, "dD") {
		s = strings.NewReplacer("d", "e", "D", "E").Replace(s)
	}

	return strconv.ParseFloat(s, 64)
}
