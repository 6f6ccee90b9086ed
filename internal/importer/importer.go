package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conciliar-dev/conciliar/internal/bankfile"
)

// Decoder converts raw file contents into bank transactions or ledger entries.
type Decoder interface {
	Format() string
	// Sniff reports whether the decoder accepts data without a full parse.
	Sniff(data []byte, filename string) bool
	Decode(data []byte) (*bankfile.Result, error)
}

// Registry holds decoders in detection order.
type Registry struct {
	order    []Decoder
	decoders map[string]Decoder
}

// FileInfo describes a file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty decoder registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register adds a decoder. Panics on duplicate format.
func (r *Registry) Register(d Decoder) {
	key := strings.ToLower(d.Format())
	if _, ok := r.decoders[key]; ok {
		panic("duplicate decoder format: " + key)
	}
	r.decoders[key] = d
	r.order = append(r.order, d)
}

// Get returns the decoder for format, or nil.
func (r *Registry) Get(format string) Decoder {
	return r.decoders[strings.ToLower(format)]
}

// Formats lists registered format names in detection order.
func (r *Registry) Formats() []string {
	names := make([]string, len(r.order))
	for i, d := range r.order {
		names[i] = d.Format()
	}
	return names
}

// Detect returns the first decoder, in registration order, whose sniff
// predicate accepts the file.
func (r *Registry) Detect(data []byte, filename string) (Decoder, error) {
	for _, d := range r.order {
		if d.Sniff(data, filename) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", filepath.Base(filename), bankfile.ErrUnrecognizedFormat)
}

// DefaultRegistry returns a registry with all built-in decoders. Fixed-width
// and OFX files are recognized by content; CSV files by extension and header.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(bankFileDecoder{bankfile.FormatCNAB240, bankfile.SniffCNAB240})
	r.Register(bankFileDecoder{bankfile.FormatCNAB400, bankfile.SniffCNAB400})
	r.Register(bankFileDecoder{bankfile.FormatOFX, bankfile.SniffOFX})
	r.Register(&LedgerCSVDecoder{})
	r.Register(&StatementCSVDecoder{})
	return r
}

type bankFileDecoder struct {
	format string
	sniff  func([]byte) bool
}

func (d bankFileDecoder) Format() string { return d.format }

func (d bankFileDecoder) Sniff(data []byte, _ string) bool { return d.sniff(data) }

func (d bankFileDecoder) Decode(data []byte) (*bankfile.Result, error) {
	return bankfile.DecodeAs(d.format, data)
}

// importDir is the subdirectory for files waiting to be imported.
const importDir = "import"

// processedDir is the subdirectory for imported files.
const processedDir = "import/processed"

// Scan returns the files waiting in <repoRoot>/import/. Hidden files are
// ignored.
func Scan(repoRoot string) ([]FileInfo, error) {
	dir := filepath.Join(repoRoot, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(repoRoot, fileName string) error {
	src := filepath.Join(repoRoot, importDir, fileName)
	dstDir := filepath.Join(repoRoot, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
