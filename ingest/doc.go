// Package ingest runs the asynchronous page ingestion pipeline: fetch,
// extract, chunk, embed, index. Each submitted ingestion row moves
// PENDING -> PROCESSING -> SUCCESS or FAILED; failures carry a stable
// error code so clients can react without parsing messages.
package ingest
