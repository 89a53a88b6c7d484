package internalwasm

// Features is a bitmask of optional WebAssembly proposals this module accepts beyond the 1.0
// (20191205) MVP. Unset bits keep strict MVP validation.
type Features uint64

const (
	// FeatureMultiValue allows function and block types to declare more than one result.
	FeatureMultiValue Features = 1 << iota
	// FeatureSignExtensionOps allows the i32.extend8_s family of instructions.
	FeatureSignExtensionOps
)

// Get reports whether f is enabled in the set.
func (set Features) Get(f Features) bool { return set&f != 0 }

// Set returns a copy of set with f enabled or disabled.
func (set Features) Set(f Features, enabled bool) Features {
	if enabled {
		return set | f
	}
	return set &^ f
}
