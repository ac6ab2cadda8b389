// Package sensor parses methane sensor logs and correlates photos with the
// sensor record that produced them.
//
// An Index is built once per run from every discovered log and is read-only
// afterwards. Matching tries an explicit photo-column reference first and
// falls back to the nearest timestamped record, refusing to guess when two
// records are within TieWindow of each other or when the best record is
// further away than the configured threshold.
package sensor
