package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemo_RoundTrip(t *testing.T) {
	data := cat(
		field(memoType, 'm'),
		strField(memoTitle, "Groceries"),
		strField(memoBody, "milk\neggs"),
		strField(memoCategory, "Home, Errands"),
	)

	m := NewMemo()
	require.NoError(t, Parse(m, data, nil))
	assert.Equal(t, "Groceries", m.Title)
	assert.Equal(t, "milk\neggs", m.Body)
	assert.Equal(t, CategoryList{"Home", "Errands"}, m.Categories)

	out, err := Bytes(m, nil)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestMemo_Validate(t *testing.T) {
	m := NewMemo()
	assert.True(t, IsValidationError(m.Validate()))
	m.Body = "untitled"
	assert.NoError(t, m.Validate())
}
