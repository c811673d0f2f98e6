// Package types defines the domain result shapes returned by the index
// provider and serialized into tool results: symbols, search matches, file
// records, tree nodes, usage statistics, and index status.
package types
