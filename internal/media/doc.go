// Package media generates poster frames for swing videos: ffmpeg extracts
// a frame mid-swing, then libvips (with a pure-Go imaging fallback)
// downscales it for the library grid.
package media
