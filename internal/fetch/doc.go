// Package fetch wraps the yt-dlp binary: it probes which quality tiers a
// source video offers and downloads the chosen tier into per-item
// staging space.
package fetch
