// Package worldbank fetches annual indicator series from the World Bank v2
// REST API.
//
// Each country and indicator pair is an independent request with its own
// timeout and a small retry budget. Responses are decoded defensively: the
// error envelope the API sends with status 200 is surfaced as an APIError,
// a null data page means no data, and null values are skipped rather than
// read as zero. FetchBatch never lets one failing pair abort the others.
package worldbank
