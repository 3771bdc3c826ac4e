// Package tar treats a tar file as a simple value store: list entries, read
// an entry by path, add an entry, extract everything. The model archive
// format is built entirely on this surface so a different container format
// could be substituted without touching the packaging logic.
package tar
