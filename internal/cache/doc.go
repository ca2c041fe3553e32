// Package cache keeps synthesized audio so repeating a sentence does not
// cost another round trip to a cloud engine. A small in-memory LRU sits in
// front of a zstd-compressed disk cache that survives restarts.
package cache
