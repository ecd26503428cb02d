package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "plain bytes", input: "1024", want: 1024},
		{name: "zero bytes", input: "0", want: 0},
		{name: "bytes with B suffix", input: "512B", want: 512},
		{name: "kilobytes lowercase", input: "100k", want: 100 * 1024},
		{name: "kilobytes with iB", input: "100KiB", want: 100 * 1024},
		{name: "megabytes lowercase", input: "50m", want: 50 * 1024 * 1024},
		{name: "megabytes with B", input: "50MB", want: 50 * 1024 * 1024},
		{name: "gigabytes uppercase", input: "2G", want: 2 * 1024 * 1024 * 1024},
		{name: "terabytes with iB", input: "1TiB", want: 1024 * 1024 * 1024 * 1024},
		{name: "space before suffix", input: "10 k", want: 10 * 1024},
		{name: "surrounding whitespace", input: "  100M  ", want: 100 * 1024 * 1024},
		{name: "decimal values truncated", input: "1.5G", want: 1610612736},
		{name: "largest terabyte count", input: "8388607T", want: 8388607 * 1024 * 1024 * 1024 * 1024},

		{name: "empty string", input: "", wantErr: true},
		{name: "only whitespace", input: "   ", wantErr: true},
		{name: "invalid suffix", input: "100X", wantErr: true},
		{name: "negative value", input: "-100M", wantErr: true},
		{name: "letters only", input: "abc", wantErr: true},
		{name: "suffix only", input: "M", wantErr: true},
		{name: "invalid format", input: "100M100", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSize_NegativeSentinel(t *testing.T) {
	_, err := ParseSize("-1")
	assert.ErrorIs(t, err, ErrNegativeSize)

	_, err = ParseSize("ten")
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestParseSize_Overflow(t *testing.T) {
	for _, in := range []string{"8388608T", "99999999999T", "9999999999999999999", "1e30"} {
		t.Run(in, func(t *testing.T) {
			got, err := ParseSize(in)
			assert.ErrorIs(t, err, ErrInvalidSize)
			assert.Zero(t, got)
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{1024, "1.0 KiB"},
		{1536 * 1024, "1.5 MiB"},
		{1024 * 1024 * 1024, "1.0 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSize(tt.bytes))
		})
	}
}

func TestIdentity_Key(t *testing.T) {
	assert.Equal(t, "i:12:345", Identity{Device: 12, Inode: 345, Path: "/a"}.Key())
	assert.Equal(t, "p:/a/b", Identity{Path: "/a/b"}.Key())
}

func TestChecksum(t *testing.T) {
	c := NewChecksum("md5", []byte{0xde, 0xad, 0xbe, 0xef})
	assert.Equal(t, Checksum("md5:deadbeef"), c)
	assert.Equal(t, "md5", c.Algorithm())
	assert.Equal(t, "deadbeef", c.Short())

	long := NewChecksum("sha256", make([]byte, 32))
	assert.Len(t, long.Short(), 12)

	assert.Equal(t, "", Checksum("").Algorithm())
	assert.Equal(t, "", Checksum("").Short())
}

func TestDuplicateGroup(t *testing.T) {
	g := DuplicateGroup{
		Checksum: "md5:00",
		Size:     100,
		Files:    []FileEntry{{Path: "/a", Size: 100}, {Path: "/b", Size: 100}, {Path: "/c", Size: 100}},
	}

	assert.Equal(t, []string{"/a", "/b", "/c"}, g.Paths())
	assert.Equal(t, int64(200), g.Wasted())
	assert.Equal(t, int64(0), DuplicateGroup{Size: 10}.Wasted())
}

func TestState(t *testing.T) {
	assert.Equal(t, "hashing", StateHashing.String())
	assert.True(t, StateHalted.Terminal())
	assert.True(t, StateDone.Terminal())
	assert.False(t, StateGrouping.Terminal())
	assert.Equal(t, "state(42)", State(42).String())

	text, err := StateDone.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "done", string(text))
}

func TestErrors(t *testing.T) {
	base := errors.New("permission denied")

	readErr := fmt.Errorf("hashing: %w", &ReadError{Path: "/x", Err: base})
	var re *ReadError
	require.ErrorAs(t, readErr, &re)
	assert.Equal(t, "/x", re.Path)
	assert.ErrorIs(t, readErr, base)

	corrupt := &CacheCorruptionError{Key: "p:/x", Err: base}
	assert.Contains(t, corrupt.Error(), "p:/x")
	assert.ErrorIs(t, corrupt, base)

	cfg := fmt.Errorf("load: %w", &ConfigurationError{Field: "limit", Reason: "both set"})
	assert.True(t, IsConfigurationError(cfg))
	assert.False(t, IsConfigurationError(base))
	assert.Equal(t, "invalid configuration: limit: both set", errors.Unwrap(cfg).Error())

	fe := FileError{Path: "/y", Stage: StageHash, Err: "boom"}
	assert.Equal(t, "hash /y: boom", fe.Error())
}
