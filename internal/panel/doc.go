// Package panel builds the wide country-month table by merging monthly
// variable tables one at a time.
//
// Every merge checks its own row arithmetic. Incoming keys must be unique,
// the resulting row count must equal the previous count plus the keys that
// were new, and an optional growth tolerance rejects merges that would add
// an implausible number of rows. A failed merge leaves the panel as it was.
//
// Merges are single-threaded; load sources concurrently if needed and feed
// the finished tables to Merge in a fixed order.
package panel
