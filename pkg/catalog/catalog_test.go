package catalog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDBDB() *DatabaseDatabase {
	return &DatabaseDatabase{Databases: []Database{
		{Number: 0x0b, RecordCount: 120, Name: "Address Book"},
		{Number: 0x24, RecordCount: 3, Name: "Memos"},
		{Number: 0x4c, RecordCount: 0, Name: "Time Zones"},
	}}
}

func TestDatabaseDatabase_RoundTrip(t *testing.T) {
	data := sampleDBDB().Build()

	var d DatabaseDatabase
	require.NoError(t, d.Parse(data))
	assert.Equal(t, sampleDBDB().Databases, d.Databases)

	n, ok := d.GetDBNumber("Memos")
	require.True(t, ok)
	assert.Equal(t, uint16(0x24), n)

	name, ok := d.GetDBName(0x4c)
	require.True(t, ok)
	assert.Equal(t, "Time Zones", name)

	_, ok = d.GetDBNumber("Tasks")
	assert.False(t, ok)
	_, ok = d.GetDBName(0x99)
	assert.False(t, ok)
}

func TestDatabaseDatabase_OldFormat(t *testing.T) {
	data := []byte{OpOldGetDBDB, 0, 1,
		0x00, 0x07, // number
		0x00,                   // unknown
		0x00, 0x00, 0x00, 0x00, // size
		0x00, 0x05, // record count
		0x00, 0x00, // unknown
		0x00, 0x06, // name size
		'T', 'a', 's', 'k', 's', 0,
	}

	var d DatabaseDatabase
	require.NoError(t, d.Parse(data))
	assert.Equal(t, []Database{{Number: 7, RecordCount: 5, Name: "Tasks"}}, d.Databases)
}

func TestDatabaseDatabase_Truncated(t *testing.T) {
	data := sampleDBDB().Build()
	for k := 0; k < len(data); k++ {
		var d DatabaseDatabase
		require.NoError(t, d.Parse(data[:k]))
		assert.Less(t, len(d.Databases), 3, "k=%d", k)
	}
}

func TestDatabaseDatabase_UnknownOperation(t *testing.T) {
	var d DatabaseDatabase
	err := d.Parse([]byte{0x01, 0, 0, 0, 0, 0, 0})
	assert.True(t, errors.Is(err, ErrUnknownOperation))
}

func TestDatabaseDatabase_Dump(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleDBDB().Dump(&buf))
	assert.Contains(t, buf.String(), "    Database: 0xb 'Address Book' (records: 120)\n")
}

func TestCommandTable(t *testing.T) {
	data := []byte{0x0e, 0x4a}
	data = append(data, "DatabaseAccess"...)
	// claims 10 bytes, has 7
	data = append(data, 0x0a, 0x55, 'J', 'a', 'v', 'a', 'L', 'o', 'a')

	var c CommandTable
	c.Parse(data, 0)
	require.Len(t, c.Commands, 1, "truncated entry is dropped")
	assert.Equal(t, Command{Code: 0x4a, Name: "DatabaseAccess"}, c.Commands[0])
	assert.Equal(t, uint8(0x4a), c.GetCommand("DatabaseAccess"))
	assert.Zero(t, c.GetCommand("JavaLoader"))
}

func TestCommandTable_RoundTrip(t *testing.T) {
	orig := CommandTable{Commands: []Command{
		{Code: 0x4a, Name: "Database Access"},
		{Code: 0x10, Name: "IPModem"},
	}}
	prefix := []byte{0xff, 0xfe}
	data := append(prefix, orig.Build()...)

	var c CommandTable
	c.Parse(data, len(prefix))
	assert.Equal(t, orig.Commands, c.Commands)

	var buf bytes.Buffer
	require.NoError(t, c.Dump(&buf))
	assert.Contains(t, buf.String(), "    Command: 0x10 'IPModem'\n")
}

func TestCommandTable_EmptyNameStops(t *testing.T) {
	var c CommandTable
	c.Parse([]byte{0x00, 0x01, 0x02, 0x03, 'a', 'b'}, 0)
	assert.Empty(t, c.Commands)
}
