package codec

import (
	"bytes"
	"testing"
	"time"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Fields(t *testing.T) {
	buf := buffer.New()
	b := NewBuilder(buf, 0)
	b.Uint8(0x01, 0xab)
	b.Uint16(0x02, 0x0102)
	b.Uint32(0x03, 0x01020304)
	b.Uint64(0x04, 0x0102030405060708)
	b.String(0x20, "Bob")
	b.Raw(0x05, []byte{0xde, 0xad})
	require.NoError(t, b.Finish())

	want := []byte{
		0x01, 0x00, 0x01, 0xab,
		0x02, 0x00, 0x02, 0x01, 0x02,
		0x03, 0x00, 0x04, 0x01, 0x02, 0x03, 0x04,
		0x04, 0x00, 0x08, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x20, 0x00, 0x04, 'B', 'o', 'b', 0x00,
		0x05, 0x00, 0x02, 0xde, 0xad,
	}
	assert.Equal(t, want, buf.Bytes())
}

func TestBuilder_Offset(t *testing.T) {
	buf := buffer.FromBytes([]byte{0xff, 0xee, 0x99, 0x99})
	b := NewBuilder(buf, 2)
	b.Uint8(0x01, 0x07)
	require.NoError(t, b.Finish())

	assert.Equal(t, []byte{0xff, 0xee, 0x01, 0x00, 0x01, 0x07}, buf.Bytes())
	assert.Equal(t, 6, b.Offset())
}

func TestBuilder_EmptyFinish(t *testing.T) {
	buf := buffer.Wrap([]byte("old contents"))
	require.NoError(t, NewBuilder(buf, 0).Finish())
	assert.Equal(t, 0, buf.Size())
	assert.False(t, buf.IsExternal())
}

func TestBuilder_OversizedField(t *testing.T) {
	buf := buffer.New()
	b := NewBuilder(buf, 0)
	b.Raw(0x01, bytes.Repeat([]byte{'x'}, MaxFieldSize+1))
	b.Uint8(0x02, 1)
	assert.Error(t, b.Finish())
}

func TestBuilder_Unknowns(t *testing.T) {
	var u Unknowns
	u.Add(Field{Type: 0x99, Data: []byte{1, 2, 3}})
	u.Add(Field{Type: 0x42, Data: []byte("x")})

	buf := buffer.New()
	b := NewBuilder(buf, 0)
	b.Unknowns(u)
	require.NoError(t, b.Finish())

	assert.Equal(t, []byte{0x99, 0x00, 0x03, 1, 2, 3, 0x42, 0x00, 0x01, 'x'}, buf.Bytes())
}

func TestUnknowns_AddCopies(t *testing.T) {
	src := []byte{1, 2, 3}
	var u Unknowns
	u.Add(Field{Type: 1, Data: src})
	src[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, u[0].Data)
	assert.Contains(t, u.String(), "Unknown FieldType: 0x01, Size: 3")
}

func TestBuilder_Min1900(t *testing.T) {
	buf := buffer.New()
	b := NewBuilder(buf, 0)
	b.Min1900(0x06, time.Time{})
	require.NoError(t, b.Finish())
	assert.Equal(t, []byte{0x06, 0x00, 0x04, 0xff, 0xff, 0xff, 0xff}, buf.Bytes())
}

func TestBuilder_ParseRoundTrip(t *testing.T) {
	buf := buffer.New()
	b := NewBuilder(buf, 0)
	b.String(0x01, "first")
	b.Uint32(0x02, 77)
	b.String(0x03, "")
	require.NoError(t, b.Finish())

	var got []Field
	_, err := Walk(buf.Bytes(), 0, func(f Field) error {
		got = append(got, f)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", ParseString(got[0].Data))
	v, err := got[1].Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(77), v)
	assert.Equal(t, "", ParseString(got[2].Data))
}

func TestBuilder_GrowsPastFirstAllocation(t *testing.T) {
	buf := buffer.New()
	initial := len(buf.GetBuffer(0))

	b := NewBuilder(buf, 0)
	b.String(0x01, "head")
	for i := 0; i < 8; i++ {
		b.Raw(0x02, bytes.Repeat([]byte{byte('a' + i)}, initial/2))
	}
	b.String(0x03, "tail")
	require.NoError(t, b.Finish())
	require.Greater(t, buf.Size(), initial)

	var got []Field
	_, err := Walk(buf.Bytes(), 0, func(f Field) error {
		got = append(got, f)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "head", ParseString(got[0].Data))
	for i := 0; i < 8; i++ {
		assert.Equal(t, bytes.Repeat([]byte{byte('a' + i)}, initial/2), got[i+1].Data)
	}
	assert.Equal(t, "tail", ParseString(got[9].Data))
}
