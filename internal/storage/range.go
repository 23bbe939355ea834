package storage

import (
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
)

const rangeUnit = "bytes="

// ByteRange is an inclusive byte span within an object.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange renders the Content-Range value for a 206 response.
func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// UnsatisfiedContentRange renders the Content-Range value for a 416 response.
func UnsatisfiedContentRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// ParseRange interprets a single-range Range header against an object of size
// bytes. An empty header yields nil. Syntax errors and multi-range requests
// fail with VALIDATION_ERROR; well-formed ranges that select nothing fail with
// RANGE_NOT_SATISFIABLE. An end past the object is clamped to size-1.
func ParseRange(header string, size int64) (*ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	if !strings.HasPrefix(header, rangeUnit) {
		return nil, malformed(header, "unsupported range unit")
	}
	spec := strings.TrimSpace(strings.TrimPrefix(header, rangeUnit))
	if strings.Contains(spec, ",") {
		return nil, malformed(header, "multiple ranges are not supported")
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, malformed(header, "missing '-'")
	}
	startStr, endStr = strings.TrimSpace(startStr), strings.TrimSpace(endStr)

	if startStr == "" {
		// Suffix form: the last N bytes.
		n, err := parseOffset(endStr)
		if err != nil {
			return nil, malformed(header, "invalid suffix length")
		}
		if n == 0 || size == 0 {
			return nil, unsatisfiable(header, size)
		}
		if n > size {
			n = size
		}
		return &ByteRange{Start: size - n, End: size - 1}, nil
	}

	start, err := parseOffset(startStr)
	if err != nil {
		return nil, malformed(header, "invalid start")
	}
	end := size - 1
	if endStr != "" {
		end, err = parseOffset(endStr)
		if err != nil {
			return nil, malformed(header, "invalid end")
		}
		if end < start {
			return nil, unsatisfiable(header, size)
		}
	}
	if start >= size {
		return nil, unsatisfiable(header, size)
	}
	if end > size-1 {
		end = size - 1
	}
	return &ByteRange{Start: start, End: end}, nil
}

func parseOffset(s string) (int64, error) {
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(s, 10, 64)
}

func malformed(header, reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "malformed Range header").
		WithDetails(map[string]string{"range": header, "reason": reason})
}

func unsatisfiable(header string, size int64) error {
	return pkgerrors.New(pkgerrors.CodeRangeUnsatisfied, "range not satisfiable").
		WithDetails(map[string]any{"range": header, "size": size})
}
