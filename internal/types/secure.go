package types

import "encoding/json"

// SecretString is a string type that prevents accidental logging or
// serialization of sensitive values. Use Unmask to get the raw value at
// the point of use.
type SecretString string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s SecretString) String() string {
	return "[REDACTED]"
}

// MarshalJSON redacts the value in any JSON output.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return json.Marshal("[REDACTED]")
}

// Unmask returns the raw secret value.
func (s SecretString) Unmask() string {
	return string(s)
}
