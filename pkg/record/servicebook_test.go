package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceBook_Parse(t *testing.T) {
	config := []byte{
		PackedFormat02,
		0x01, 0x03, 0x10, 'a', 'b', 'c',
		0x02, 0x00, 0x11, // empty field is skipped
		0x03, 0x01, 0x12, 0x7f,
	}
	data := cat(
		strField(sbName, "Desktop [CMIME]"),
		strField(sbDescription, "Desktop email"),
		strField(sbUniqueID, "S12345"),
		strField(sbDSID, "S12345"),
		strField(sbBesDomain, "corp.example.com"),
		strField(sbContentID, "CMIME"),
		field(sbConfig, config...),
		field(0xa3, 0x01, 0x02),
	)

	s := NewServiceBook()
	require.NoError(t, Parse(s, data, nil))
	assert.Equal(t, "Desktop [CMIME]", s.Name)
	assert.Equal(t, "Desktop email", s.Desc)
	assert.Equal(t, "S12345", s.UniqueID)
	assert.Equal(t, "S12345", s.DSID)
	assert.Equal(t, "corp.example.com", s.BesDomain)
	assert.Equal(t, "CMIME", s.ContentID)
	assert.Equal(t, "Desktop [CMIME]", s.Description())

	require.True(t, s.HasConfig)
	assert.Equal(t, uint8(PackedFormat02), s.Config.Format)
	assert.Equal(t, []PackedField{
		{Code: 0x01, Type: 0x10, Data: []byte("abc")},
		{Code: 0x03, Type: 0x12, Data: []byte{0x7f}},
	}, s.Config.Fields)

	require.Len(t, s.Unknowns, 1)
	assert.Equal(t, uint8(0xa3), s.Unknowns[0].Type)
}

func TestServiceBook_KeepsFieldCodes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"old codes", cat(
			strField(sbOldName, "WAP"),
			strField(sbOldDesc, "browser"),
			strField(sbOldUniqueID, "U1"),
		)},
		{"new codes", cat(
			strField(sbName, "WAP"),
			strField(sbDescription, "browser"),
			strField(sbUniqueID, "U1"),
		)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServiceBook()
			require.NoError(t, Parse(s, tt.data, nil))

			out, err := Bytes(s, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.data, out)
		})
	}
}

func TestServiceBook_RoundTrip(t *testing.T) {
	s := NewServiceBook()
	s.Name = "Browser"
	s.HiddenName = "hidden"
	s.UniqueID = "U77"
	s.HasConfig = true
	s.Config = ServiceBookConfig{
		Format: PackedFormat10,
		Fields: []PackedField{{Type: 0x01, Data: []byte("x")}, {Type: 0x02, Data: []byte("yz")}},
	}

	parsed := NewServiceBook()
	data := rebuild(t, s, parsed)
	assert.Equal(t, s, parsed)
	assert.Equal(t, strField(sbOldName, "Browser"), data[:11])
}

func TestServiceBook_UnknownConfigFormatKept(t *testing.T) {
	data := cat(strField(sbName, "X"), field(sbConfig, 0x44, 9, 8, 7))

	s := NewServiceBook()
	require.NoError(t, Parse(s, data, nil))
	assert.Equal(t, uint8(0x44), s.Config.Format)
	assert.Empty(t, s.Config.Fields)
	assert.Equal(t, []byte{9, 8, 7}, s.Config.Raw)

	out, err := Bytes(s, nil)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestServiceBook_TruncatedConfig(t *testing.T) {
	config := []byte{PackedFormat10, 0x02, 0x01, 'o', 'k', 0x09, 0x02, 'c'}
	s := NewServiceBook()
	require.NoError(t, Parse(s, field(sbConfig, config...), nil))
	assert.Equal(t, []PackedField{{Type: 0x01, Data: []byte("ok")}}, s.Config.Fields)
}

func TestServiceBook_Validate(t *testing.T) {
	s := NewServiceBook()
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	s.UniqueID = "U1"
	assert.NoError(t, s.Validate())
	assert.Equal(t, "U1", s.Description())

	s.HasConfig = true
	s.Config = ServiceBookConfig{
		Format: PackedFormat02,
		Fields: []PackedField{{Type: 1, Data: make([]byte, maxPackedSize+1)}},
	}
	assert.True(t, IsValidationError(s.Validate()))
}
