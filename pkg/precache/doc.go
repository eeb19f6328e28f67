// Package precache warms a cache with a fixed manifest of critical assets.
//
// Every manifest path is fetched with cache-bypass semantics through a
// bounded worker group. The batch is all-or-nothing: the first failed fetch
// or non-2xx response cancels the remaining fetches and no item is returned.
package precache
