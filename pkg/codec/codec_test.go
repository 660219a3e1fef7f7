package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	c := New()

	require.NoError(t, c.Encode(&buf, Frame{"$KE", "INF"}))
	assert.Equal(t, "$KE,INF\r\n", buf.String())
}

func TestDecode(t *testing.T) {
	c := New()
	buf := []byte("#INF,Laurent-2\r\n")

	frame, n, err := c.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Frame{"#INF", "Laurent-2"}, frame)
	assert.Equal(t, len(buf), n)
}

func TestDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{name: "single field", frame: Frame{"$KE"}},
		{name: "command", frame: Frame{"$KE", "REL", "3", "1", ".5"}},
		{name: "empty field", frame: Frame{"#M", "", "x"}},
		{name: "utf8", frame: Frame{"#INF", "Лоран-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := AppendFrame(nil, tt.frame)
			assert.Equal(t, EncodedLen(tt.frame), len(encoded))

			c := New()
			got, n, err := c.Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.frame, got)
			assert.Equal(t, len(encoded), n, "consumed byte count")
		})
	}
}

func TestDecodeTwoLinesInOrder(t *testing.T) {
	c := New()
	buf := []byte("#RDR,3,1\r\n#M,EIN,1,0\r\n")

	first, n, err := c.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Frame{"#RDR", "3", "1"}, first)
	buf = buf[n:]

	second, n, err := c.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Frame{"#M", "EIN", "1", "0"}, second)
	buf = buf[n:]

	none, n, err := c.Decode(buf)
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.Zero(t, n)
	assert.Empty(t, buf)
}

func TestDecodeIncremental(t *testing.T) {
	c := New()
	var buf []byte

	for _, chunk := range []string{"#R", "EL,", "OK\r"} {
		buf = append(buf, chunk...)
		frame, n, err := c.Decode(buf)
		require.NoError(t, err)
		require.Nil(t, frame)
		require.Zero(t, n)
	}

	buf = append(buf, '\n')
	frame, n, err := c.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Frame{"#REL", "OK"}, frame)
	assert.Equal(t, len(buf), n)
}

func TestDecodeBareLineFeed(t *testing.T) {
	c := New()
	frame, _, err := c.Decode([]byte("#OK\n"))
	require.NoError(t, err)
	assert.Equal(t, Frame{"#OK"}, frame)
}

func TestDecodeInvalidText(t *testing.T) {
	c := New()
	buf := []byte("#INF,\xff\xfe\r\n#OK\r\n")

	_, n, err := c.Decode(buf)
	assert.True(t, errors.Is(err, ErrInvalidText))

	frame, _, err := c.Decode(buf[n:])
	require.NoError(t, err)
	assert.Equal(t, Frame{"#OK"}, frame)
}

func TestDecodeTooLongResyncs(t *testing.T) {
	c := NewWithMaxLength(16)
	buf := []byte(strings.Repeat("x", 40) + "\r\n#REL,OK\r\n")

	frame, n, err := c.Decode(buf)
	assert.ErrorIs(t, err, ErrFrameTooLong)
	assert.Nil(t, frame)
	assert.True(t, c.Discarding())
	buf = buf[n:]

	frame, n, err = c.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Frame{"#REL", "OK"}, frame)
	assert.False(t, c.Discarding())
	assert.Equal(t, len(buf), n)
}

func TestDecodeTooLongAcrossReads(t *testing.T) {
	c := NewWithMaxLength(8)
	var buf []byte

	buf = append(buf, strings.Repeat("y", 12)...)
	_, n, err := c.Decode(buf)
	require.ErrorIs(t, err, ErrFrameTooLong)
	buf = buf[n:]

	// Still inside the oversized line: everything is dropped silently.
	buf = append(buf, strings.Repeat("y", 30)...)
	frame, n, err := c.Decode(buf)
	require.NoError(t, err)
	require.Nil(t, frame)
	buf = buf[n:]
	assert.Empty(t, buf)
	assert.True(t, c.Discarding())

	buf = append(buf, "yy\r\n#OK\r\n"...)
	frame, n, err = c.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Frame{"#OK"}, frame)
	assert.Equal(t, len(buf), n)
}

func TestDecodeExactlyMaxLength(t *testing.T) {
	c := NewWithMaxLength(4)
	frame, _, err := c.Decode([]byte("#A,B\n"))
	require.NoError(t, err)
	assert.Equal(t, Frame{"#A", "B"}, frame)
}

func TestFrameValidate(t *testing.T) {
	assert.NoError(t, Frame{"$KE", "PSW", "SET", "Laurent"}.Validate())

	for _, bad := range []string{"a,b", "a\rb", "a\nb"} {
		err := Frame{"$KE", "PSW", "SET", bad}.Validate()
		assert.ErrorIs(t, err, ErrInvalidField, "field %q", bad)
	}
}

func TestFrameAccessors(t *testing.T) {
	f := Frame{"#RDR", "3", "1"}
	assert.Equal(t, "#RDR", f.Tag())
	assert.Equal(t, []string{"3", "1"}, f.Args())
	assert.Equal(t, "#RDR,3,1", f.String())

	var empty Frame
	assert.Equal(t, "", empty.Tag())
	assert.Nil(t, empty.Args())
}
