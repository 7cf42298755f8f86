package model

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"os"
)

// SaveGob encodes v with gob and writes it to path. Used for training
// checkpoints, where compactness matters less than decode speed.
func SaveGob(v interface{}, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return SaveGobToWriter(v, file)
}

// LoadGob reads path and gob-decodes it into v, which must be a pointer.
func LoadGob(v interface{}, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return LoadGobFromReader(v, file)
}

// SaveGobCompressed gob-encodes v through gzip. Datasets use this: the
// vertex-delta arrays are large and highly compressible.
func SaveGobCompressed(v interface{}, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	if err := SaveGobToWriter(v, zw); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush gzip stream: %w", err)
	}
	return nil
}

// LoadGobCompressed reads a gzip-wrapped gob stream from path into v.
func LoadGobCompressed(v interface{}, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer zr.Close()

	return LoadGobFromReader(v, zr)
}

// SaveGobToWriter gob-encodes v to an arbitrary writer.
func SaveGobToWriter(v interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode: %w", err)
	}
	return nil
}

// LoadGobFromReader gob-decodes a value from r into v.
func LoadGobFromReader(v interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}
	return nil
}
