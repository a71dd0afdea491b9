package config

import "strings"

// EnvKeyReplacer maps nested keys such as gate.limit to GATE_LIMIT.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}
