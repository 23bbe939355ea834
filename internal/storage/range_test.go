package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
)

func TestParseRange(t *testing.T) {
	cases := []struct {
		name   string
		header string
		size   int64
		want   *ByteRange
	}{
		{"empty header", "", 10, nil},
		{"explicit span", "bytes=2-5", 10, &ByteRange{2, 5}},
		{"first hundred", "bytes=0-99", 1000, &ByteRange{0, 99}},
		{"open ended", "bytes=950-", 1000, &ByteRange{950, 999}},
		{"end clamped", "bytes=5-500", 10, &ByteRange{5, 9}},
		{"suffix", "bytes=-3", 10, &ByteRange{7, 9}},
		{"suffix larger than object", "bytes=-50", 10, &ByteRange{0, 9}},
		{"whitespace tolerated", " bytes= 1 - 2 ", 10, &ByteRange{1, 2}},
		{"single byte", "bytes=9-9", 10, &ByteRange{9, 9}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRange(tc.header, tc.size)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseRangeMalformed(t *testing.T) {
	for _, header := range []string{
		"items=0-1",
		"bytes=abc-",
		"bytes=1-x",
		"bytes=0-1,4-5",
		"bytes=5",
		"bytes=-",
		"bytes=+1-2",
		"bytes=--1",
	} {
		_, err := ParseRange(header, 10)
		assert.Truef(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%q should be malformed, got %v", header, err)
	}
}

func TestParseRangeUnsatisfiable(t *testing.T) {
	cases := []struct {
		header string
		size   int64
	}{
		{"bytes=10-", 10},
		{"bytes=10-20", 10},
		{"bytes=6-5", 10},
		{"bytes=0-0", 0},
		{"bytes=-0", 10},
		{"bytes=-5", 0},
	}
	for _, tc := range cases {
		_, err := ParseRange(tc.header, tc.size)
		assert.Truef(t, pkgerrors.IsCode(err, pkgerrors.CodeRangeUnsatisfied), "%q/%d should be unsatisfiable, got %v", tc.header, tc.size, err)
	}
}

func TestByteRangeHeaders(t *testing.T) {
	r := ByteRange{Start: 2, End: 5}
	assert.Equal(t, int64(4), r.Length())
	assert.Equal(t, "bytes 2-5/10", r.ContentRange(10))
	assert.Equal(t, "bytes */10", UnsatisfiedContentRange(10))
}
