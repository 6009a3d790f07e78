package cron_feature

import "sort"

// Metadata is a free-form key-value mapping attached to a config. Key order
// carries no meaning.
type Metadata map[string]string

// MetadataEntry is the serialized form of a single Metadata pair.
type MetadataEntry struct {
	Key   string `json:"key" bson:"key" yaml:"key"`
	Value string `json:"value" bson:"value" yaml:"value"`
}

// NewMetadata builds a mapping from entries. Later duplicates win.
func NewMetadata(entries []MetadataEntry) Metadata {
	m := make(Metadata, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Value
	}
	return m
}

// Entries returns the pairs sorted by key so serialized documents are stable.
func (m Metadata) Entries() []MetadataEntry {
	entries := make([]MetadataEntry, 0, len(m))
	for k, v := range m {
		entries = append(entries, MetadataEntry{Key: k, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

func (m Metadata) Clone() Metadata {
	c := make(Metadata, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
