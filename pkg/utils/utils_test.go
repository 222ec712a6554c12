package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapError(t *testing.T) {
	base := errors.New("boom")

	assert.Nil(t, WrapError(nil, "ctx"))
	assert.Nil(t, WrapErrorf(nil, "ctx %d", 1))

	err := WrapErrorf(base, "series %s", "cpu.csv")
	assert.EqualError(t, err, "series cpu.csv: boom")
	assert.ErrorIs(t, err, base)
	assert.ErrorIs(t, WrapError(base, "ctx"), base)
}

func TestNormalizeExtensions(t *testing.T) {
	got := NormalizeExtensions([]string{"CSV, .txt", "", " tsv "})
	assert.Equal(t, []string{".csv", ".txt", ".tsv"}, got)
	assert.Nil(t, NormalizeExtensions(nil))
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateOneOf("json", []string{"json", "markdown"}, "format"))
	assert.EqualError(t, ValidateOneOf("yaml", []string{"json", "markdown"}, "format"),
		"format must be one of [json markdown], got: yaml")

	assert.NoError(t, ValidateNonNegativeInt(0, "column"))
	assert.Error(t, ValidateNonNegativeInt(-1, "column"))

	assert.NoError(t, ValidateNonEmpty("bucket", "bucket"))
	assert.Error(t, ValidateNonEmpty("  ", "bucket"))
}
