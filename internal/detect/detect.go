// Package detect classifies file content as text or binary before it is
// edited in place.
package detect

import (
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
)

// sniffLen is how much of a file is inspected.
const sniffLen = 3072

// minConfidence is the chardet confidence needed to trust a wide-charset guess.
const minConfidence = 80

// Result is what Sniff learned about a file.
type Result struct {
	MIME    string
	Charset string
	Binary  bool
}

// IsBinary reports whether the file at path should be treated as binary.
func IsBinary(path string) (bool, error) {
	r, err := Sniff(path)
	if err != nil {
		return false, err
	}
	return r.Binary, nil
}

// Sniff inspects the head of the file at path.
func Sniff(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return Result{}, err
	}
	return Bytes(head[:n]), nil
}

// Bytes classifies a content sample.
func Bytes(sample []byte) Result {
	if len(sample) == 0 {
		return Result{MIME: "text/plain"}
	}
	mtype := mimetype.Detect(sample)
	r := Result{MIME: mtype.String(), Binary: !isText(mtype)}
	if r.Binary {
		return r
	}

	r.Charset = charsetParam(mtype.String())
	if r.Charset == "" {
		if best, err := chardet.NewTextDetector().DetectBest(sample); err == nil && best != nil && best.Confidence >= minConfidence {
			r.Charset = strings.ToLower(best.Charset)
		}
	}
	// regexp works on UTF-8; editing wide encodings would corrupt them
	if isWide(r.Charset) {
		r.Binary = true
	}
	return r
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func charsetParam(mime string) string {
	_, params, ok := strings.Cut(mime, ";")
	if !ok {
		return ""
	}
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if ok && strings.EqualFold(k, "charset") {
			return strings.ToLower(v)
		}
	}
	return ""
}

func isWide(charset string) bool {
	return strings.HasPrefix(charset, "utf-16") || strings.HasPrefix(charset, "utf-32")
}
