package catalog

import (
	"fmt"
	"io"
)

// command field header: size u8, code u8
const commandFieldHeaderSize = 2

// Command is one command table entry.
type Command struct {
	Code uint8  `json:"code"`
	Name string `json:"name"`
}

// CommandTable maps command names to the codes a device expects.
type CommandTable struct {
	Commands []Command `json:"commands"`
}

// Clear empties the table.
func (c *CommandTable) Clear() {
	c.Commands = nil
}

// Parse replaces the table with the entries in data starting at off. Each
// entry is [size u8][code u8][name, no terminator]. Parsing stops at a
// truncated entry or one with an empty name.
func (c *CommandTable) Parse(data []byte, off int) {
	c.Clear()
	for off+commandFieldHeaderSize <= len(data) {
		size := int(data[off])
		end := off + commandFieldHeaderSize + size
		if end > len(data) || size == 0 {
			return
		}
		c.Commands = append(c.Commands, Command{
			Code: data[off+1],
			Name: string(data[off+commandFieldHeaderSize : end]),
		})
		off = end
	}
}

// GetCommand returns the code for name, or 0 when there is none.
func (c *CommandTable) GetCommand(name string) uint8 {
	for _, cmd := range c.Commands {
		if cmd.Name == name {
			return cmd.Code
		}
	}
	return 0
}

// Build encodes the table. Names longer than 255 bytes are cut.
func (c *CommandTable) Build() []byte {
	var out []byte
	for _, cmd := range c.Commands {
		name := cmd.Name
		if len(name) > 0xff {
			name = name[:0xff]
		}
		out = append(out, byte(len(name)), cmd.Code)
		out = append(out, name...)
	}
	return out
}

// Dump writes the table in a human readable layout.
func (c *CommandTable) Dump(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "Command table:"); err != nil {
		return err
	}
	for _, cmd := range c.Commands {
		if _, err := fmt.Fprintf(w, "    Command: 0x%x '%s'\n", cmd.Code, cmd.Name); err != nil {
			return err
		}
	}
	return nil
}
