package unified_index

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FileReader is one file to pack, under the name it gets in the footer
type FileReader struct {
	reader   io.Reader
	fileName string
}

// NewFileReader creates a new FileReader
func NewFileReader(reader io.Reader, fileName string) *FileReader {
	return &FileReader{
		reader:   reader,
		fileName: fileName,
	}
}

// UnifiedIndexWriter concatenates files and appends a footer locating them
type UnifiedIndexWriter struct {
	fileReaders []*FileReader
	fileOffsets map[string]Range
	closers     []io.Closer
}

// NewUnifiedIndexWriter creates a new UnifiedIndexWriter
func NewUnifiedIndexWriter(fileReaders []*FileReader) *UnifiedIndexWriter {
	return &UnifiedIndexWriter{
		fileReaders: fileReaders,
		fileOffsets: make(map[string]Range),
	}
}

// NewUnifiedIndexWriterFromDir packs every regular file below dir. Names are
// slash separated paths relative to dir, in lexical order
func NewUnifiedIndexWriterFromDir(dir string) (*UnifiedIndexWriter, error) {
	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(names)

	writer := NewUnifiedIndexWriter(nil)
	for _, name := range names {
		file, err := os.Open(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			writer.Close()
			return nil, err
		}
		writer.fileReaders = append(writer.fileReaders, NewFileReader(file, name))
		writer.closers = append(writer.closers, file)
	}
	return writer, nil
}

// Write writes all files then the footer, returning the total number of
// bytes written and the footer length
func (uiw *UnifiedIndexWriter) Write(writer io.Writer) (uint64, uint64, error) {
	var written uint64

	for _, fileReader := range uiw.fileReaders {
		start := written
		fileName := fileReader.fileName

		if _, exists := uiw.fileOffsets[fileName]; exists {
			return 0, 0, fmt.Errorf("duplicate file in unified index: %s", fileName)
		}

		n, err := io.Copy(writer, fileReader.reader)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to copy %s: %w", fileName, err)
		}

		written += uint64(n)
		uiw.fileOffsets[fileName] = Range{Start: start, End: written}
	}

	footerBytes, err := NewIndexFooter(uiw.fileOffsets).Marshal()
	if err != nil {
		return 0, 0, err
	}

	footerLen := uint64(len(footerBytes))
	footerWritten, err := writer.Write(footerBytes)
	if err != nil {
		return 0, 0, err
	}

	if uint64(footerWritten) < footerLen {
		return 0, 0, fmt.Errorf("written less than expected: %d < %d", footerWritten, footerLen)
	}

	return written + footerLen, footerLen, nil
}

// Close closes files opened by NewUnifiedIndexWriterFromDir
func (uiw *UnifiedIndexWriter) Close() {
	for _, closer := range uiw.closers {
		_ = closer.Close()
	}
	uiw.closers = nil
}
