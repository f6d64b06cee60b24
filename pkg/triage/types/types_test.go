package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRef_Helpers(t *testing.T) {
	f := FileRef{Path: "/data/cases/Report.PDF", Size: 2 * MiB}

	assert.Equal(t, "Report.PDF", f.Name())
	assert.Equal(t, "/data/cases", f.Dir())
	assert.Equal(t, ".pdf", f.Ext())
	assert.Equal(t, "2.0 MiB", f.HumanSize())
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"regular", CategoryRegular},
		{"SLACK", CategorySlack},
		{"Virtual", CategoryVirtual},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.want, mustParse(t, got.String()))
	}

	_, err := ParseCategory("bogus")
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func mustParse(t *testing.T, s string) Category {
	t.Helper()
	c, err := ParseCategory(s)
	require.NoError(t, err)
	return c
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1024", 1024},
		{"512B", 512},
		{"100K", 100 * KiB},
		{"50MB", 50 * MiB},
		{"2GiB", 2 * GiB},
		{"1.5M", int64(1.5 * float64(MiB))},
		{" 1T ", TiB},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParseSize_Errors(t *testing.T) {
	_, err := ParseSize("")
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = ParseSize("ten megabytes")
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = ParseSize("-5M")
	assert.ErrorIs(t, err, ErrNegativeSize)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "1.0 KiB", FormatSize(1024))
}
