package types

// Value is the dynamic sum type carried by an Intent's parameters and
// context maps: null, bool, number, string, list, or nested map. It is kept
// opaque through the system and only typed at the canonicalization boundary
// in the crypto package, so callers build these directly from decoded JSON
// rather than through typed constructors.
type Value = interface{}

// ValueMap is a convenience alias for the map form of Value used by
// parameters and context.
type ValueMap = map[string]Value
