//go:build ignore

// This program writes the raw height tile fixture and compresses it with the
// bzip2 command line tool (Go's compress/bzip2 only decodes).
// Run with: go run generate_tiles.go
package main

import (
	"encoding/binary"
	"os"
	"os/exec"
)

func main() {
	const size = 512
	raw := make([]byte, size*size*2)
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			v := int16((row*7+col*3)%2000 - 1000)
			binary.LittleEndian.PutUint16(raw[(row*size+col)*2:], uint16(v))
		}
	}
	if err := os.WriteFile("height_tile.raw", raw, 0o644); err != nil {
		panic(err)
	}
	cmd := exec.Command("bzip2", "-9", "-f", "height_tile.raw")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic(err)
	}
}
