// Package corpus models speech corpus records and streams them out of
// remote source archives.
//
// A source archive is a tar.gz containing one transcript table member
// (*_Transcripts.json) and one .wav member per utterance. The streamer
// walks the archive over HTTP without buffering more than the current
// member, pairs each wav with its transcript entry, stamps the configured
// speaker metadata, and hands the record to a caller-supplied callback.
package corpus
