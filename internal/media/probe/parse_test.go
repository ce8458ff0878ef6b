package probe

import (
	"errors"
	"testing"
)

const sampleReport = `{
  "creatingLibrary": {"name": "MediaInfoLib", "version": "24.05"},
  "media": {
    "@ref": "/tmp/uploads/episode.mp4",
    "track": [
      {"@type": "General", "Format": "MPEG-4", "Duration": "1321.504"},
      {"@type": "Video", "Format": "AVC", "CodecID": "avc1", "Duration": "1321.404",
       "BitRate": "1423453", "Width": "1280", "Height": "720"},
      {"@type": "Audio", "Format": "AAC", "CodecID": "mp4a-40-2", "BitRate": "196094",
       "Channels": "2", "Title": "Dub", "Language": "ru", "Default": "Yes"},
      {"@type": "Audio", "Format": "AAC", "CodecID": "mp4a-40-2", "BitRate": "197184",
       "Channels": "2", "Title": "Original", "Language": "en", "Default": "No"},
      {"@type": "Text", "Format": "Timed Text", "CodecID": "tx3g",
       "Title": "SRT - Full", "Language": "ru", "Default": "Yes"},
      {"@type": "Text", "Format": "SubRip", "Language": "en"},
      {"@type": "Text", "Format": "PGS", "Language": "en"},
      {"@type": "Menu", "Format": "Timed Text", "CodecID": "text"}
    ]
  }
}`

func TestParseFullReport(t *testing.T) {
	result, err := Parse([]byte(sampleReport))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if result.DurationSeconds != 1321 {
		t.Errorf("duration = %d, want 1321", result.DurationSeconds)
	}
	if result.Resolution.Width != 1280 || result.Resolution.Height != 720 {
		t.Errorf("resolution = %dx%d, want 1280x720", result.Resolution.Width, result.Resolution.Height)
	}

	if len(result.AudioTracks) != 2 {
		t.Fatalf("audio tracks = %d, want 2", len(result.AudioTracks))
	}
	first := result.AudioTracks[0]
	if first.Index != 0 || first.Language != "ru" || !first.Default || first.Bitrate != "196094" {
		t.Errorf("unexpected first audio track: %+v", first)
	}
	if result.AudioTracks[1].Index != 1 || result.AudioTracks[1].Default {
		t.Errorf("unexpected second audio track: %+v", result.AudioTracks[1])
	}

	if len(result.SubtitleTracks) != 3 {
		t.Fatalf("subtitle tracks = %d, want 3", len(result.SubtitleTracks))
	}
	if got := result.SubtitleTracks[0].Codec; got != CodecMovText {
		t.Errorf("tx3g track codec = %q, want mov_text", got)
	}
	if got := result.SubtitleTracks[1].Codec; got != CodecSubRip {
		t.Errorf("SubRip track codec = %q, want subrip", got)
	}
	if got := result.SubtitleTracks[2].Codec; got != CodecUnknown {
		t.Errorf("PGS track codec = %q, want unknown marker", got)
	}
	for i, track := range result.SubtitleTracks {
		if track.Index != i {
			t.Errorf("subtitle track %d has index %d", i, track.Index)
		}
	}
}

func TestParseNoAudioNoText(t *testing.T) {
	report := `{"media":{"track":[
	  {"@type":"General","Duration":"12.0"},
	  {"@type":"Video","Format":"AVC","Duration":"12.0","Width":"1920","Height":"1080"}
	]}}`
	result, err := Parse([]byte(report))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(result.AudioTracks) != 0 || len(result.SubtitleTracks) != 0 {
		t.Fatalf("expected empty track lists, got %+v", result)
	}
}

func TestParseMissingLanguageFallsBackToUnd(t *testing.T) {
	report := `{"media":{"track":[
	  {"@type":"Video","Duration":"60","Width":"640","Height":"360"},
	  {"@type":"Text","Format":"SubRip"}
	]}}`
	result, err := Parse([]byte(report))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.SubtitleTracks[0].Language != "und" {
		t.Fatalf("language = %q, want und", result.SubtitleTracks[0].Language)
	}
}

func TestParseNoVideoStream(t *testing.T) {
	report := `{"media":{"track":[{"@type":"Audio","Format":"AAC"}]}}`
	if _, err := Parse([]byte(report)); !errors.Is(err, errNoVideoStream) {
		t.Fatalf("expected errNoVideoStream, got %v", err)
	}
}

func TestParseGarbage(t *testing.T) {
	if _, err := Parse([]byte("mediainfo: command not found")); err == nil {
		t.Fatal("expected error for unparsable output")
	}
}
