package domain

// KeyPrefix is the namespace prefix for all costgate keys in the store.
const KeyPrefix = "costgate:"
