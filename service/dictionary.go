package service

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Dictionary is the JSON document a client downloads with identify to learn
// command ids and device constants.
type Dictionary struct {
	Version       string         `json:"version"`
	BuildVersions string         `json:"build_versions"`
	Config        map[string]any `json:"config"`
	Commands      map[string]int `json:"commands"`
	Responses     map[string]int `json:"responses"`
}

// Inflate returns the JSON text of a dictionary as served, which is zlib
// compressed. Data that is not compressed is returned as is.
func Inflate(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x78 {
		return data, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("inflate dictionary: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate dictionary: %w", err)
	}
	return out, nil
}

// ParseDictionary decodes a dictionary downloaded from a device, compressed
// or not.
func ParseDictionary(data []byte) (*Dictionary, error) {
	data, err := Inflate(data)
	if err != nil {
		return nil, err
	}
	var d Dictionary
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	return &d, nil
}

// dictCache holds the encoded dictionary, built on first use.
type dictCache struct {
	once sync.Once
	data []byte
	err  error
}

func (c *dictCache) get(build func() ([]byte, error)) ([]byte, error) {
	c.once.Do(func() { c.data, c.err = build() })
	return c.data, c.err
}

// BuildDictionary encodes the registry together with constants and
// compresses the result.
func BuildDictionary(reg *Registry, version string, constants map[string]any) ([]byte, error) {
	d := Dictionary{
		Version:       version,
		BuildVersions: "go",
		Config:        constants,
		Commands:      make(map[string]int),
		Responses:     make(map[string]int),
	}
	if d.Config == nil {
		d.Config = map[string]any{}
	}
	for _, c := range reg.Commands() {
		if c.Handler != nil {
			d.Commands[c.Signature()] = int(c.ID)
		} else {
			d.Responses[c.Signature()] = int(c.ID)
		}
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress dictionary: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress dictionary: %w", err)
	}
	return buf.Bytes(), nil
}

// Chunk returns up to count bytes of data starting at offset.
func Chunk(data []byte, offset uint32, count int) []byte {
	if offset >= uint32(len(data)) || count <= 0 {
		return nil
	}
	end := min(int(offset)+count, len(data))
	return data[offset:end]
}
