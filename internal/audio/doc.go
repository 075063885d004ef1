// Package audio handles local audio artifacts: resolving output paths from
// the configured template, embedding ID3 tags into downloaded files, and
// writing playlist index files.
package audio
