// Package hlsmanifest post-processes encoder-generated HLS master playlists.
// The encoder's muxer can reference alternate audio renditions by URI but
// cannot assign them display names, so the NAME attribute of each audio
// entry is rewritten to the track's human-readable title after the encode.
package hlsmanifest

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/google/renameio/v2"

	"kinotek/internal/media/probe"
	"kinotek/internal/media/transcode"
	"kinotek/internal/services"
)

var nameAttr = regexp.MustCompile(`NAME="[^"]*"`)

// Augment rewrites the NAME attribute of every alternate-audio entry in the
// master playlist to the corresponding track's display title. The rewrite is
// idempotent: lines are edited in place and re-running produces the same
// manifest. Every supplied track must have a matching URI reference or the
// augmentation fails.
func Augment(manifestPath string, audioTracks []probe.AudioTrack) error {
	if len(audioTracks) == 0 {
		return nil
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return services.Wrap(services.ErrTransient, "manifest", "read master playlist", "", err)
	}

	lines := strings.Split(string(data), "\n")
	for _, track := range audioTracks {
		uri := transcode.AudioVariantName(track.Index) + "/index.m3u8"
		if !rewriteAudioName(lines, uri, transcode.AudioTrackTitle(track)) {
			return services.Wrap(services.ErrTransient, "manifest", "rewrite audio names",
				fmt.Sprintf("no audio entry references %q", uri), nil)
		}
	}

	if err := renameio.WriteFile(manifestPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "manifest", "write master playlist", "", err)
	}
	return nil
}

// rewriteAudioName edits the single EXT-X-MEDIA audio line whose URI matches
// and reports whether a line was found.
func rewriteAudioName(lines []string, uri, title string) bool {
	needle := `URI="` + uri + `"`
	for i, line := range lines {
		if !strings.HasPrefix(line, "#EXT-X-MEDIA:") || !strings.Contains(line, "TYPE=AUDIO") {
			continue
		}
		if !strings.Contains(line, needle) {
			continue
		}
		lines[i] = nameAttr.ReplaceAllString(line, `NAME="`+escapeAttr(title)+`"`)
		return true
	}
	return false
}

// escapeAttr keeps the rewritten title from breaking the attribute quoting.
func escapeAttr(value string) string {
	return strings.ReplaceAll(value, `"`, "'")
}
