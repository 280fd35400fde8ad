// Package testutil provides test data generators.
package testutil

import (
	"bytes"
	"fmt"
)

// Pattern produces deterministic, position-dependent content so a single
// misplaced or missing chunk is guaranteed to change the result.
func Pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// CSVFixture builds line-oriented content whose line count and byte
// length are easy to assert after reassembly.
func CSVFixture(lines int) []byte {
	var buf bytes.Buffer
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&buf, "row-%07d,value-%d\n", i, i*3)
	}
	return buf.Bytes()
}

// CountLines counts newline-terminated lines in data.
func CountLines(data []byte) int {
	return bytes.Count(data, []byte{'\n'})
}
