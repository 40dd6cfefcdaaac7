package model

// PluginMetadata identifies an optimization plugin. Name is the unique
// registry key; SupportedTypes is the set of request types the plugin claims
// to handle. Enablement and priority are registry configuration, not
// metadata, and live outside this struct.
type PluginMetadata struct {
	Name           string        `json:"name"`
	Version        string        `json:"version"`
	SupportedTypes []RequestType `json:"supportedTypes"`
}

// Supports reports whether the plugin's metadata claims the given type.
func (m PluginMetadata) Supports(t RequestType) bool {
	for _, st := range m.SupportedTypes {
		if st == t {
			return true
		}
	}
	return false
}
