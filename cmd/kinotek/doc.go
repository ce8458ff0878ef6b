// Command kinotek manages a video-on-demand library: series and season
// catalog entries, and the ingest pipeline that turns uploaded episode files
// into adaptive HLS streaming packages with thumbnails and subtitles.
package main
