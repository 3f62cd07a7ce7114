package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolder_RoundTrip(t *testing.T) {
	data := cat(
		field(folderNumber, 0xff),
		field(folderLevel, 2),
		strField(folderName, "Inbox"),
		field(folderType, byte(FolderInbox)),
	)

	f := NewFolder()
	require.NoError(t, Parse(f, data, nil))
	assert.Equal(t, int8(-1), f.Number)
	assert.Equal(t, uint8(2), f.Level)
	assert.Equal(t, "Inbox", f.Name)
	assert.Equal(t, FolderInbox, f.Type)

	out, err := Bytes(f, nil)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestFolderType_String(t *testing.T) {
	assert.Equal(t, "Draft", FolderDraft.String())
	assert.Equal(t, "Unknown (0x42)", FolderType(0x42).String())
}

func TestFolder_Validate(t *testing.T) {
	assert.True(t, IsValidationError(NewFolder().Validate()))
}
