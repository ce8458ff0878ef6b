// Package episode orchestrates the ingestion pipeline: probing an uploaded
// source, planning renditions, extracting thumbnails and subtitles, and
// driving the background transcode that turns an episode ready. It is the
// only component that mutates episode rows in the catalog.
package episode
