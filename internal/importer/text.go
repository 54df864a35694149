package importer

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/offersplice/internal/block"
)

// TextImporter handles plain text files. Blank lines separate paragraphs.
type TextImporter struct{}

func (p *TextImporter) Import(r io.Reader, filename string) (block.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return block.Document{}, err
	}

	b := newBuilder(filename)
	for _, para := range paragraphs(strings.Join(lines, "\n")) {
		b.plain(block.Paragraph(), para)
	}
	return b.doc, nil
}
