package unified_index

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// UnifiedDirectory is a read-only view over the files packed in one
// unified index
type UnifiedDirectory struct {
	data   []byte
	footer *IndexFooter
}

// OpenWithLen opens the unified index in data, whose trailing footerLen
// bytes hold the footer
func OpenWithLen(data []byte, footerLen int) (*UnifiedDirectory, error) {
	if footerLen <= 0 || footerLen > len(data) {
		return nil, fmt.Errorf("footer length %d out of range for %d bytes", footerLen, len(data))
	}

	body := data[:len(data)-footerLen]
	footer, err := parseFooter(data[len(body):], uint64(len(body)))
	if err != nil {
		return nil, err
	}

	return &UnifiedDirectory{data: body, footer: footer}, nil
}

// Files returns the packed file names in lexical order
func (ud *UnifiedDirectory) Files() []string {
	names := make([]string, 0, len(ud.footer.FileOffsets))
	for name := range ud.footer.FileOffsets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AtomicRead returns the contents of a packed file. The slice aliases the
// directory's buffer
func (ud *UnifiedDirectory) AtomicRead(name string) ([]byte, error) {
	r, exists := ud.footer.FileOffsets[name]
	if !exists {
		return nil, fmt.Errorf("file does not exist: %s", name)
	}
	return ud.data[r.Start:r.End], nil
}

// Extract writes every packed file below dir, recreating subdirectories
func (ud *UnifiedDirectory) Extract(dir string) error {
	for _, name := range ud.Files() {
		clean := path.Clean(name)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("refusing to extract %s outside of %s", name, dir)
		}

		target := filepath.Join(dir, filepath.FromSlash(clean))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", name, err)
		}

		contents, err := ud.AtomicRead(name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, contents, 0644); err != nil {
			return fmt.Errorf("failed to extract %s: %w", name, err)
		}
	}
	return nil
}
