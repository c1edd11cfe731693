// Package vecindex stores chunk embeddings and serves similarity search.
//
// Vectors live in namespaces keyed by (device, ingestion) so one device's
// pages never leak into another device's answers. All stored vectors are
// expected to be L2-normalized; similarity is cosine computed as a dot
// product and mapped onto [0, 1].
package vecindex
