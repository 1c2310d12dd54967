package dg

// Capabilities records what the compiler under test supports. It is probed
// once per run and handed to every engine; nothing caches it globally.
type Capabilities struct {
	TLS   bool `json:"tls"`
	Weak  bool `json:"weak"`
	Iconv bool `json:"iconv"`
	// DebugOptions lists the option sets debug tests are run with.
	DebugOptions [][]string `json:"debugOptions"`
}

// AllCapabilities returns a record claiming support for everything, with no
// debug option sets.
func AllCapabilities() Capabilities {
	return Capabilities{TLS: true, Weak: true, Iconv: true}
}
