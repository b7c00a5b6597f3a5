package series

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/arloliu/shocktrack/internal/logging"
	"github.com/arloliu/shocktrack/types"
)

// EvolutionFile is the file name of the persisted series.
const EvolutionFile = "evolution.txt"

// evolutionHeader labels the persisted columns in Columns order.
const evolutionHeader = "# Time [s] \t PNS Index \t PNS Radius [cm] \t PNS Encm [Msol] \t" +
	"Shock Index \t Shock Radius [cm] \t Shock Encm [Msol] \t" +
	"Lum nue [erg/s] \t Lum nueb [erg/s] \t Lum nux [erg/s]"

// WriteEvolution writes the series as one text row per snapshot.
//
// Rows hold the Columns in order, space-separated in %.18e notation, under
// a single '#' header line.
//
// Parameters:
//   - w: Destination
//   - s: Reconstructed series
//
// Returns:
//   - error: Write error
func WriteEvolution(w io.Writer, s *Series) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(evolutionHeader + "\n"); err != nil {
		return err
	}

	buf := make([]byte, 0, 32*len(Columns))
	for i := range s.NumFiles {
		buf = buf[:0]
		for c, name := range Columns {
			if c > 0 {
				buf = append(buf, ' ')
			}
			v := 0.0
			if col := s.Columns[name]; i < len(col) {
				v = col[i]
			}
			buf = strconv.AppendFloat(buf, v, 'e', 18, 64)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// FileSink persists reduced series under each dataset's plots directory.
//
// The file is written to <base>/<dataset>/plots/<amend>evolution.txt through
// a temporary file and renamed into place.
type FileSink struct {
	basePath string
	amend    string
	logger   types.Logger
}

// NewFileSink creates a file sink.
//
// Parameters:
//   - basePath: Directory holding one subdirectory per dataset
//   - amend: Prefix added to the file name (may be empty)
//   - logger: Logger (nil for no logging)
//
// Returns:
//   - *FileSink: Initialized sink
func NewFileSink(basePath, amend string, logger types.Logger) *FileSink {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &FileSink{basePath: basePath, amend: amend, logger: logger}
}

// Path returns the evolution file path of dataset.
func (f *FileSink) Path(dataset string) string {
	return filepath.Join(f.basePath, dataset, "plots", f.amend+EvolutionFile)
}

// Persist writes s to its evolution file.
func (f *FileSink) Persist(ctx context.Context, s *Series) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := f.Path(s.Dataset)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create plots directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".evolution-*")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteEvolution(tmp, s); err != nil {
		tmp.Close()
		return fmt.Errorf("write evolution: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close evolution: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename evolution: %w", err)
	}

	f.logger.Info("evolution saved", "dataset", s.Dataset, "path", path, "rows", s.NumFiles)

	return nil
}
