// Package models defines the domain records exchanged between the metadata
// source, the plan pipeline and the audio layer.
//
// The types here are lightweight DTOs describing external catalog data:
//   - [Track] : Song metadata with artist/album context for tagging and pathing
//   - [Album] : Album metadata including its track listing
//   - [Artist] : Artist metadata
//   - [Playlist] : Playlist metadata; tracks are fetched page by page
//   - [PlaylistEntry] : One playlist position, possibly local/non-streamable
//
// Records are produced by the services layer and consumed by the pipeline;
// they carry no behavior beyond small derived accessors.
package models
