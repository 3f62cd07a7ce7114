package buffer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const bytesPerLine = 16

// MaxHexOffset is the largest line offset ParseHexLine accepts.
const MaxHexOffset = 16 << 20

func isPrint(c byte) bool {
	return c >= 0x20 && c < 0x7f
}

func writeHexLine(w io.Writer, prefix string, data []byte, offset int, ascii bool) error {
	var sb strings.Builder
	sb.WriteString(prefix)
	fmt.Fprintf(&sb, "%08x: ", offset)
	for i := 0; i < bytesPerLine; i++ {
		if offset+i < len(data) {
			fmt.Fprintf(&sb, "%02x ", data[offset+i])
		} else {
			sb.WriteString("   ")
		}
	}
	if ascii {
		sb.WriteByte(' ')
		for i := 0; i < bytesPerLine && offset+i < len(data); i++ {
			c := data[offset+i]
			if !isPrint(c) {
				c = '.'
			}
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}

// DumpHex writes data as a classic hex dump, 16 bytes per line with an
// ASCII column.
func DumpHex(w io.Writer, data []byte) error {
	for off := 0; off < len(data); off += bytesPerLine {
		if err := writeHexLine(w, "    ", data, off, true); err != nil {
			return err
		}
	}
	return nil
}

// HexString returns DumpHex output as a string.
func HexString(data []byte) string {
	var sb strings.Builder
	_ = DumpHex(&sb, data)
	return sb.String()
}

// Diff writes old as a hex dump, and after each line a comparison line
// showing only the bytes of updated that differ. Bytes present in old but
// missing from updated print as XX.
func Diff(w io.Writer, old, updated []byte) error {
	if len(old) != len(updated) {
		if _, err := fmt.Fprintf(w, "sizes differ: %d != %d\n", len(old), len(updated)); err != nil {
			return err
		}
	}
	max := len(old)
	if len(updated) > max {
		max = len(updated)
	}
	for off := 0; off < max; off += bytesPerLine {
		if err := writeHexLine(w, "    ", old, off, true); err != nil {
			return err
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, ">   %08x: ", off)
		for i := 0; i < bytesPerLine; i++ {
			addr := off + i
			switch {
			case addr < len(old) && addr < len(updated):
				if old[addr] != updated[addr] {
					fmt.Fprintf(&sb, "%02x ", updated[addr])
				} else {
					sb.WriteString("   ")
				}
			case addr < len(updated):
				fmt.Fprintf(&sb, "%02x ", updated[addr])
			case addr < len(old):
				sb.WriteString("XX ")
			default:
				sb.WriteString("   ")
			}
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// ParseHexLine reads one DumpHex style line ("offset: xx xx ...") into b at
// the offset named by the line, growing b as needed. Lines that do not
// start with a hex offset, or whose offset is past MaxHexOffset, are ignored
// and report false.
func ParseHexLine(b *Buffer, line string) bool {
	line = strings.TrimSpace(line)
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return false
	}
	addr, err := strconv.ParseUint(line[:colon], 16, 32)
	if err != nil || addr > MaxHexOffset {
		return false
	}

	// the ASCII column starts after a double space
	hexPart := strings.SplitN(strings.TrimLeft(line[colon+1:], " "), "  ", 2)[0]

	values := make([]byte, 0, bytesPerLine)
	for _, tok := range strings.Fields(hexPart) {
		if len(values) == bytesPerLine || len(tok) != 2 {
			break
		}
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			break
		}
		values = append(values, byte(v))
	}

	end := int(addr) + len(values)
	mem := b.GetBuffer(end)
	copy(mem[addr:], values)
	if end < b.Size() {
		end = b.Size()
	}
	// size is within the capacity just requested
	_ = b.ReleaseBuffer(end)
	return true
}

// Chunk is one block of a captured USB conversation: the endpoint it was
// seen on and its bytes.
type Chunk struct {
	Endpoint int
	Data     *Buffer
}

func endpointStart(line string) (int, bool) {
	if !strings.HasPrefix(line, "sep: ") && !strings.HasPrefix(line, "rep: ") {
		return 0, false
	}
	ep, err := strconv.Atoi(strings.TrimSpace(line[5:]))
	if err != nil {
		return 0, false
	}
	return ep, true
}

// LoadHexDump reads a capture made of "sep: N" or "rep: N" endpoint lines,
// each followed by DumpHex lines, and returns one chunk per endpoint block.
// Hex lines outside a block are skipped.
func LoadHexDump(r io.Reader) ([]Chunk, error) {
	var chunks []Chunk
	in := false
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if ep, ok := endpointStart(line); ok {
			chunks = append(chunks, Chunk{Endpoint: ep, Data: New()})
			in = true
			continue
		}
		if !in {
			continue
		}
		if !ParseHexLine(chunks[len(chunks)-1].Data, line) {
			in = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading hex dump: %w", err)
	}
	return chunks, nil
}
