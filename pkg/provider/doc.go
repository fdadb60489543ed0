// Package provider describes third-party identity providers.
//
// A Descriptor is plain data: protocol, endpoints, requested scopes, the
// field mapping used to normalize profiles and a set of named quirk flags
// for providers that deviate from the canonical OAuth exchanges. Descriptors
// are values; the Registry hands out deep copies so that concurrent
// handshakes never share mutable state.
//
//	reg, err := provider.NewRegistry(provider.Builtin()...)
//	if err != nil {
//		return err
//	}
//	github, ok := reg.Get("github")
//
// Operator-defined providers can be loaded from YAML with LoadFile or Decode
// and merged over the built-in table with Registry.Register.
package provider
