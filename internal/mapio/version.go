// Package mapio reads and writes mind maps as XML documents, detects the
// schema version of a document and migrates older documents forward.
package mapio

import (
	"bufio"
	"io"
	"strings"
)

// Document versions understood without conversion.
const (
	CurrentVersion = "0.9.0"
	LegacyVersion  = "0.7.1"
)

// signatures lists the document prefixes that parse directly.
// The first entry decides how much of a file is sniffed.
var signatures = []string{
	`<map version="` + CurrentVersion + `"`,
	`<map version="` + LegacyVersion + `"`,
}

// CurrentSignature returns the prefix written at the top of every saved map.
func CurrentSignature() string {
	return signatures[0]
}

// ReadStart returns at least minLength characters from the beginning of r,
// reading whole lines and dropping their line breaks. A shorter result means
// the input ended first.
func ReadStart(r io.Reader, minLength int) (string, error) {
	var sb strings.Builder
	br := bufio.NewReader(r)
	for sb.Len() < minLength {
		line, err := br.ReadString('\n')
		sb.WriteString(strings.TrimRight(line, "\r\n"))
		if err == io.EOF {
			break
		}
		if err != nil {
			return sb.String(), err
		}
	}
	return sb.String(), nil
}

// HasKnownSignature reports whether start begins with the current or the
// legacy version signature.
func HasKnownSignature(start string) bool {
	for _, sig := range signatures {
		if len(start) < len(sig) {
			continue
		}
		if strings.HasPrefix(start[:len(sig)], sig) {
			return true
		}
	}
	return false
}
