package common

// MaxExistenceLookups caps the number of photo lookups accepted by a single
// existence-check call. The upstream API enforces the same bound.
const MaxExistenceLookups = 50
