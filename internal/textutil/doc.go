// Package textutil normalizes and sanitizes text that ends up in file names.
//
// Photo names arrive from cameras, sensor logs, and user templates. Before a
// name is written to disk it is NFC-normalized so the same visual name always
// maps to the same bytes, and unsafe path characters are replaced.
package textutil
