// Package fingerprint derives a device identity digest from client
// characteristics (user agent, screen resolution, timezone, language,
// platform, cookie support, rendering-surface digest) and compares
// fingerprints to detect session hijacking.
//
// Generation uses a single SHA3-256 path over a length-prefixed canonical
// serialization of the attributes. Matching requires both the full hash and
// a field-by-field comparison of the critical attributes (user agent,
// platform, timezone) to agree, so a copied hash on a forged object is not
// enough to pass.
//
// Attributes are supplied through a Collector; Static and Host collectors
// are provided, and applications embedding real client data implement their
// own.
package fingerprint
