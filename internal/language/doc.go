// Package language normalizes the loose language metadata found in media
// containers (ISO 639-1/639-2 codes, full words, missing values) into codes
// and human-readable display names used for subtitle and audio track labels.
package language
