package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForURL(t *testing.T) {
	f, err := ForURL("https://example.com/districts.geojson", Options{})
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, f)

	f, err = ForURL("ftp://ftp.example.org/pub/quarters.zip", Options{})
	require.NoError(t, err)
	assert.IsType(t, &FTPFetcher{}, f)

	_, err = ForURL("s3://bucket/key", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestFileNameFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/data/prices.csv", "prices.csv"},
		{"https://example.com/data/prices.csv?token=abc", "prices.csv"},
		{"ftp://ftp.example.org/pub/quarters.zip", "quarters.zip"},
		{"https://example.com/", "download"},
		{"https://example.com", "download"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileNameFromURL(tt.url, "download"), tt.url)
	}
}
