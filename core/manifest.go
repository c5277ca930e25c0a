package core

// Manifest lists the tables and cached queries contained in a bundle.
type Manifest struct {
	Tables  []string   `json:"tables"`
	Queries []CacheKey `json:"queries"`
}

// NewManifest returns an empty manifest that encodes as {"tables":[],"queries":[]}.
func NewManifest() Manifest {
	return Manifest{
		Tables:  []string{},
		Queries: []CacheKey{},
	}
}

// AddTable appends a table name once.
func (m *Manifest) AddTable(name string) {
	for _, t := range m.Tables {
		if t == name {
			return
		}
	}
	m.Tables = append(m.Tables, name)
}

// AddQuery appends a cache key once.
func (m *Manifest) AddQuery(key CacheKey) {
	for _, q := range m.Queries {
		if q == key {
			return
		}
	}
	m.Queries = append(m.Queries, key)
}
