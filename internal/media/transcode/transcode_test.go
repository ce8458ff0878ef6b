package transcode

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"kinotek/internal/logging"
	"kinotek/internal/media/probe"
	"kinotek/internal/media/renditions"
	"kinotek/internal/services"
)

func testBitrates() map[int]int {
	return map[int]int{240: 200, 360: 400, 480: 550, 720: 1500, 1080: 3000}
}

func newTestEngine(t *testing.T, run runFunc) *Engine {
	t.Helper()
	e := NewEngine("ffmpeg", t.TempDir(), Options{
		HWAccel:          "cuda",
		VideoCodec:       "h264_nvenc",
		Preset:           "slow",
		GopSize:          48,
		SegmentSeconds:   10,
		AudioChannels:    2,
		AudioDefaultKbps: 128,
	}, testBitrates(), logging.NewNop())
	if run != nil {
		e.run = run
	}
	return e
}

func fullHDPlan() []renditions.Rung {
	return []renditions.Rung{
		{Width: 426, Height: 240},
		{Width: 640, Height: 360},
		{Width: 854, Height: 480},
		{Width: 1280, Height: 720},
		{Width: 1920, Height: 1080},
	}
}

func TestBuildArgsLayout(t *testing.T) {
	e := newTestEngine(t, nil)
	audio := []probe.AudioTrack{
		{Index: 0, Bitrate: "196094", Language: "rus", Default: true},
		{Index: 1, Bitrate: "", Language: "eng"},
	}
	args := e.buildArgs("/tmp/in.mkv", fullHDPlan(), audio, "/static/video/key-1")
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-hwaccel cuda",
		"-i /tmp/in.mkv",
		"-preset slow",
		"-g 48",
		"-sc_threshold 0",
		"-s:v:0 426x240", "-b:v:0 200k",
		"-s:v:4 1920x1080", "-b:v:4 3000k",
		"-c:v h264_nvenc",
		"-c:a aac",
		"-b:a:0 196k", "-ac:a:0 2",
		"-b:a:1 128k", "-ac:a:1 2",
		"-master_pl_name master.m3u8",
		"-f hls",
		"-hls_time 10",
		"-hls_playlist_type vod",
		"-hls_list_size 0",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q:\n%s", want, joined)
		}
	}

	if got := strings.Count(joined, "-map 0:v:0"); got != len(fullHDPlan()) {
		t.Errorf("video mapped %d times, want %d", got, len(fullHDPlan()))
	}
	for _, want := range []string{"-map 0:a:0", "-map 0:a:1"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q", want)
		}
	}
}

func TestVarStreamMap(t *testing.T) {
	e := newTestEngine(t, nil)
	audio := []probe.AudioTrack{
		{Index: 0, Language: "rus", Default: true},
		{Index: 1, Language: "eng"},
	}
	got := e.varStreamMap(fullHDPlan()[:2], audio)
	want := "v:0,name:240p,agroup:audio v:1,name:360p,agroup:audio " +
		"a:0,agroup:audio,name:audio_0,language:rus,default:yes " +
		"a:1,agroup:audio,name:audio_1,language:eng"
	if got != want {
		t.Fatalf("var_stream_map = %q, want %q", got, want)
	}
}

func TestVarStreamMapNoAudio(t *testing.T) {
	e := newTestEngine(t, nil)
	got := e.varStreamMap(fullHDPlan()[:1], nil)
	if got != "v:0,name:240p" {
		t.Fatalf("var_stream_map = %q", got)
	}
}

func TestNormalizeAudioBitrate(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"196094", "196k"},
		{"192000", "192k"},
		{"192k", "192k"},
		{"", "128k"},
		{"garbage", "128k"},
		{"500", "128k"},
	}
	for _, tc := range cases {
		if got := NormalizeAudioBitrate(tc.raw, 128); got != tc.want {
			t.Errorf("NormalizeAudioBitrate(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestAudioTrackTitle(t *testing.T) {
	withTitle := probe.AudioTrack{Title: "Director commentary", Language: "en"}
	if got := AudioTrackTitle(withTitle); got != "Director commentary" {
		t.Fatalf("title = %q", got)
	}
	noTitle := probe.AudioTrack{Language: "jpn"}
	if got := AudioTrackTitle(noTitle); got != "Japanese" {
		t.Fatalf("title = %q", got)
	}
}

func TestTranscodeReturnsManifestPath(t *testing.T) {
	e := newTestEngine(t, func(ctx context.Context, name string, args []string) (string, error) {
		return "", nil
	})
	rel, err := e.Transcode(context.Background(), "/tmp/in.mkv", fullHDPlan(), nil, "key-1")
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if rel != "video/key-1/master.m3u8" {
		t.Fatalf("manifest path = %q", rel)
	}
	if !strings.HasPrefix(rel, DirName+"/") {
		t.Fatalf("manifest path not under %s: %q", DirName, rel)
	}
}

func TestTranscodeFailureCarriesDiagnostics(t *testing.T) {
	bang := errors.New("exit status 1")
	e := newTestEngine(t, func(ctx context.Context, name string, args []string) (string, error) {
		return "No NVENC capable devices found", bang
	})
	_, err := e.Transcode(context.Background(), "/tmp/in.mkv", fullHDPlan(), nil, "key-1")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "NVENC") {
		t.Fatalf("expected encoder diagnostics, got %q", err.Error())
	}
}

func TestTranscodeEmptyPlanRejected(t *testing.T) {
	e := newTestEngine(t, nil)
	if _, err := e.Transcode(context.Background(), "/tmp/in.mkv", nil, nil, "key-1"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestTranscodeUncoveredRungRejected(t *testing.T) {
	e := newTestEngine(t, nil)
	plan := []renditions.Rung{{Width: 3840, Height: 2160}}
	if _, err := e.Transcode(context.Background(), "/tmp/in.mkv", plan, nil, "key-1"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestTailWriterKeepsTail(t *testing.T) {
	w := newTailWriter(8)
	for _, chunk := range []string{"aaaa", "bbbb", "cccc"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatal(err)
		}
	}
	if got := w.String(); got != "bbbbcccc" {
		t.Fatalf("tail = %q", got)
	}
}

func TestBuildArgsSegmentPaths(t *testing.T) {
	e := newTestEngine(t, nil)
	outDir := filepath.Join("static", "video", "key-1")
	args := e.buildArgs("/tmp/in.mkv", fullHDPlan()[:1], nil, outDir)
	last := args[len(args)-1]
	if last != filepath.Join(outDir, "%v", "index.m3u8") {
		t.Fatalf("playlist target = %q", last)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, filepath.Join(outDir, "%v", "segment_%03d.ts")) {
		t.Fatalf("segment filename missing: %s", joined)
	}
}
