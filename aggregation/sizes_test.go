package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.00 KB", FormatSize(1024))
	assert.Equal(t, "12.50 KB", FormatSize(12800))
	assert.Equal(t, "1.00 MB", FormatSize(1024*1024))
	assert.Equal(t, "2.50 GB", FormatSize(int64(2.5*1024*1024*1024)))
}

func TestParseSize(t *testing.T) {
	assert.Equal(t, int64(0), ParseSize(""))
	assert.Equal(t, int64(512), ParseSize("512 B"))
	assert.Equal(t, int64(12800), ParseSize("12.50 KB"))
	assert.Equal(t, int64(1024*1024), ParseSize("1.00 MB"))
	assert.Equal(t, int64(1024*1024*1024), ParseSize("1.00 GB"))
}

func TestParseSizeUnknownUnitKeepsRawNumber(t *testing.T) {
	assert.Equal(t, int64(42), ParseSize("42 XB"))
	assert.Equal(t, int64(7), ParseSize("7"))
}

func TestParseSizeMalformed(t *testing.T) {
	assert.Equal(t, int64(0), ParseSize("garbage"))
	assert.Equal(t, int64(0), ParseSize("NaN KB"))
}

func TestRoundTrip(t *testing.T) {
	for _, bytes := range []int64{0, 100, 1024, 12800, 5 * 1024 * 1024} {
		label := FormatSize(bytes)
		assert.Equal(t, bytes, ParseSize(label), "label %s", label)
	}
}
