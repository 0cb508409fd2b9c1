package catalog

// Mapping is a read-only view of a whole file outside any catalog, memory
// mapped where the platform allows.
type Mapping struct {
	m *mapping
}

// MapFile maps path for reading.
func MapFile(path string) (*Mapping, error) {
	m, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	return &Mapping{m: m}, nil
}

// Bytes returns the file contents. The slice is invalid after Close.
func (m *Mapping) Bytes() []byte { return m.m.data }

// Close releases the mapping.
func (m *Mapping) Close() error { return m.m.close() }
