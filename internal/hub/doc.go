// Package hub is a thin client for the Hugging Face Hub dataset API.
//
// It covers exactly what the shard pipeline needs: creating the
// destination dataset repository if it does not exist, and committing
// files to it. Small files travel inline (base64) through the NDJSON
// commit endpoint; large files go through the LFS batch flow, with
// multipart part uploads bounded by an errgroup limit. Transient request
// failures are retried once with a short backoff; anything else surfaces
// to the caller and aborts the run.
package hub
