package parser

import (
	"bufio"
	"io"
	"strings"
)

// TextExtractor handles plain text files. Runs of blank lines collapse to a
// single paragraph break and line endings are normalized.
type TextExtractor struct{}

func (p *TextExtractor) Extract(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var b blocks
	var current strings.Builder

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			b.add(current.String())
			current.Reset()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	b.add(current.String())

	if err := scanner.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}
