package probe

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"kinotek/internal/language"
)

// mediainfo emits every numeric field as a string, so the raw schema is
// all-string and conversion happens during normalization.
type rawReport struct {
	Media struct {
		Tracks []rawTrack `json:"track"`
	} `json:"media"`
}

type rawTrack struct {
	Type     string `json:"@type"`
	Format   string `json:"Format"`
	CodecID  string `json:"CodecID"`
	Duration string `json:"Duration"`
	BitRate  string `json:"BitRate"`
	Width    string `json:"Width"`
	Height   string `json:"Height"`
	Channels string `json:"Channels"`
	Title    string `json:"Title"`
	Language string `json:"Language"`
	Default  string `json:"Default"`
}

// Parse decodes a mediainfo JSON report into a Result. Sources without audio
// or text streams yield empty track slices, not an error; a missing video
// stream is an error.
func Parse(data []byte) (Result, error) {
	var report rawReport
	if err := json.Unmarshal(data, &report); err != nil {
		return Result{}, fmt.Errorf("decode report: %w", err)
	}

	var video *rawTrack
	var audio, text []rawTrack
	for i := range report.Media.Tracks {
		track := report.Media.Tracks[i]
		switch track.Type {
		case "Video":
			if video == nil {
				video = &report.Media.Tracks[i]
			}
		case "Audio":
			audio = append(audio, track)
		case "Text":
			text = append(text, track)
		}
	}
	if video == nil {
		return Result{}, errNoVideoStream
	}

	result := Result{
		DurationSeconds: int(math.Round(parseFloat(video.Duration))),
		Resolution: Resolution{
			Width:  parseInt(video.Width),
			Height: parseInt(video.Height),
		},
	}
	if result.Resolution.Width <= 0 || result.Resolution.Height <= 0 {
		return Result{}, fmt.Errorf("video stream reports invalid resolution %dx%d",
			result.Resolution.Width, result.Resolution.Height)
	}

	for i, track := range audio {
		result.AudioTracks = append(result.AudioTracks, AudioTrack{
			Index:    i,
			Bitrate:  strings.TrimSpace(track.BitRate),
			Title:    strings.TrimSpace(track.Title),
			Language: language.Normalize(track.Language),
			Default:  strings.EqualFold(track.Default, "yes"),
			Channels: parseInt(track.Channels),
			CodecID:  strings.TrimSpace(track.CodecID),
			Format:   strings.TrimSpace(track.Format),
		})
	}

	for i, track := range text {
		result.SubtitleTracks = append(result.SubtitleTracks, SubtitleTrack{
			Index:     i,
			Codec:     mapSubtitleCodec(track),
			RawFormat: strings.TrimSpace(track.Format),
			Language:  language.Normalize(track.Language),
			Title:     strings.TrimSpace(track.Title),
		})
	}

	return result, nil
}

// mapSubtitleCodec maps the container's format identifiers onto the fixed
// codec enum. Unknown codecs are marked explicitly so extraction can refuse
// them instead of guessing an extension.
func mapSubtitleCodec(track rawTrack) SubtitleCodec {
	switch {
	case strings.EqualFold(track.Format, "SubRip"):
		return CodecSubRip
	case strings.EqualFold(track.Format, "ASS"), strings.EqualFold(track.Format, "SSA"):
		return CodecASS
	case strings.EqualFold(track.CodecID, "tx3g"), strings.EqualFold(track.Format, "Timed Text"):
		return CodecMovText
	default:
		return CodecUnknown
	}
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return 0
}

func parseInt(value string) int {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.Atoi(cleaned); err == nil {
		return parsed
	}
	// Some containers report "2 / 2" style channel counts; take the first field.
	if fields := strings.Fields(cleaned); len(fields) > 0 {
		if parsed, err := strconv.Atoi(fields[0]); err == nil {
			return parsed
		}
	}
	return 0
}
