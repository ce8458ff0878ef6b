package episode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kinotek/internal/catalog"
	"kinotek/internal/media/probe"
	"kinotek/internal/media/renditions"
	"kinotek/internal/media/subtitles"
	"kinotek/internal/services"
	"kinotek/internal/testsupport"
)

type fakeProber struct {
	result probe.Result
	err    error
	calls  int
}

func (f *fakeProber) Probe(ctx context.Context, path string) (probe.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakePlanner struct {
	plan []renditions.Rung
	err  error
}

func (f *fakePlanner) Plan(resolution probe.Resolution) ([]renditions.Rung, error) {
	return f.plan, f.err
}

type fakeThumbs struct {
	paths []string
	err   error
	calls int
}

func (f *fakeThumbs) Extract(ctx context.Context, sourcePath string, durationSeconds int, artifactKey string) ([]string, error) {
	f.calls++
	return f.paths, f.err
}

type fakeSubs struct {
	tracks []subtitles.Extracted
	err    error
	calls  int
}

func (f *fakeSubs) Extract(ctx context.Context, sourcePath string, tracks []probe.SubtitleTrack, artifactKey string) ([]subtitles.Extracted, error) {
	f.calls++
	return f.tracks, f.err
}

type fakeTranscoder struct {
	manifest string
	err      error
	calls    int
}

func (f *fakeTranscoder) Transcode(ctx context.Context, sourcePath string, plan []renditions.Rung, audioTracks []probe.AudioTrack, artifactKey string) (string, error) {
	f.calls++
	return f.manifest, f.err
}

type fixture struct {
	reconciler *Reconciler
	store      *catalog.Store
	staticDir  string
	tmpDir     string
	logDir     string
	season     *catalog.Season
	prober     *fakeProber
	thumbs     *fakeThumbs
	subs       *fakeSubs
	transcoder *fakeTranscoder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	store := testsupport.MustOpenStore(t)
	season := testsupport.SeedSeason(t, store)

	f := &fixture{
		store:     store,
		staticDir: filepath.Join(root, "static"),
		tmpDir:    filepath.Join(root, "tmp"),
		logDir:    filepath.Join(root, "logs"),
		season:    season,
		prober: &fakeProber{result: probe.Result{
			DurationSeconds: 600,
			Resolution:      probe.Resolution{Width: 1920, Height: 1080},
			AudioTracks:     []probe.AudioTrack{{Index: 0, Language: "en"}},
		}},
		thumbs: &fakeThumbs{paths: []string{
			"thumbnails/k/thumb_00.webp",
			"thumbnails/k/thumb_01.webp",
			"thumbnails/k/thumb_02.webp",
		}},
		subs:       &fakeSubs{},
		transcoder: &fakeTranscoder{manifest: "video/k/master.m3u8"},
	}
	if err := os.MkdirAll(f.staticDir, 0o755); err != nil {
		t.Fatalf("mkdir static: %v", err)
	}
	if err := os.MkdirAll(f.tmpDir, 0o755); err != nil {
		t.Fatalf("mkdir tmp: %v", err)
	}

	f.reconciler = New(Options{
		Store:      store,
		Prober:     f.prober,
		Planner:    &fakePlanner{plan: []renditions.Rung{{Width: 1280, Height: 720}, {Width: 1920, Height: 1080}}},
		Thumbs:     f.thumbs,
		Subtitles:  f.subs,
		Transcoder: f.transcoder,
		Augmenter:  func(manifestPath string, audioTracks []probe.AudioTrack) error { return nil },
		StaticDir:  f.staticDir,
		LogDir:     f.logDir,
		LogLevel:   "debug",
	})
	return f
}

func (f *fixture) writeUpload(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(f.tmpDir, name)
	testsupport.WriteFile(t, path, 64)
	return path
}

func TestCreateHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source := f.writeUpload(t, "upload.mkv")

	episode, err := f.reconciler.Create(ctx, CreateRequest{
		SeasonID:   f.season.ID,
		Order:      1,
		Title:      "Pilot",
		SourcePath: source,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if episode.Status != catalog.EpisodeProcessing {
		t.Errorf("status after create = %q, want processing", episode.Status)
	}
	if episode.Duration != 600 || episode.Width != 1920 || episode.Height != 1080 {
		t.Errorf("probe fields not carried: %+v", episode)
	}
	if episode.PosterPath != "thumbnails/k/thumb_01.webp" {
		t.Errorf("poster = %q, want the middle thumbnail", episode.PosterPath)
	}
	if episode.ArtifactKey == "" {
		t.Error("artifact key not assigned")
	}

	f.reconciler.Close()

	loaded, err := f.store.GetEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if loaded.Status != catalog.EpisodeReady {
		t.Errorf("status after encode = %q, want ready", loaded.Status)
	}
	if loaded.ManifestPath != "video/k/master.m3u8" {
		t.Errorf("manifest = %q", loaded.ManifestPath)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Error("source upload not removed after encode")
	}
	if f.transcoder.calls != 1 {
		t.Errorf("transcoder calls = %d, want 1", f.transcoder.calls)
	}
}

func TestCreateWritesChainLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source := f.writeUpload(t, "upload.mkv")

	episode, err := f.reconciler.Create(ctx, CreateRequest{SeasonID: f.season.ID, Order: 1, Title: "Pilot", SourcePath: source})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.reconciler.Close()

	data, err := os.ReadFile(filepath.Join(f.logDir, "transcode-"+episode.ArtifactKey+".log"))
	if err != nil {
		t.Fatalf("read chain log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "transcode chain started") || !strings.Contains(out, "transcode chain finished") {
		t.Fatalf("chain log missing start/finish records: %q", out)
	}
	if !strings.Contains(out, episode.ArtifactKey) {
		t.Fatalf("chain log missing artifact key: %q", out)
	}
}

func TestCreateDuplicateOrderRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	defer f.reconciler.Close()

	first := f.writeUpload(t, "a.mkv")
	if _, err := f.reconciler.Create(ctx, CreateRequest{SeasonID: f.season.ID, Order: 1, Title: "A", SourcePath: first}); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	second := f.writeUpload(t, "b.mkv")
	_, err := f.reconciler.Create(ctx, CreateRequest{SeasonID: f.season.ID, Order: 1, Title: "B", SourcePath: second})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("duplicate create error = %v, want ErrValidation", err)
	}
	if f.prober.calls != 1 {
		t.Errorf("prober ran for rejected create (calls = %d)", f.prober.calls)
	}
	if f.thumbs.calls != 1 {
		t.Errorf("thumbnail extraction ran for rejected create (calls = %d)", f.thumbs.calls)
	}
}

func TestCreateMissingSourceRejected(t *testing.T) {
	f := newFixture(t)
	defer f.reconciler.Close()

	_, err := f.reconciler.Create(context.Background(), CreateRequest{
		SeasonID:   f.season.ID,
		Order:      1,
		SourcePath: filepath.Join(f.tmpDir, "nope.mkv"),
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("missing source error = %v, want ErrValidation", err)
	}
}

func TestCreateTranscodeFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.transcoder.err = errors.New("encoder exited 1")
	source := f.writeUpload(t, "upload.mkv")

	episode, err := f.reconciler.Create(ctx, CreateRequest{SeasonID: f.season.ID, Order: 1, Title: "Pilot", SourcePath: source})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.reconciler.Close()

	loaded, err := f.store.GetEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if loaded.Status != catalog.EpisodeFailed {
		t.Errorf("status = %q, want failed", loaded.Status)
	}
	if loaded.ErrorMessage == "" {
		t.Error("failure left no error message")
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Error("source upload not removed after failed encode")
	}
}

func TestCreateSyncFailureLeavesNoRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.thumbs.err = errors.New("frame capture failed")
	source := f.writeUpload(t, "upload.mkv")

	_, err := f.reconciler.Create(ctx, CreateRequest{SeasonID: f.season.ID, Order: 1, SourcePath: source})
	if err == nil {
		t.Fatal("Create succeeded despite thumbnail failure")
	}
	f.reconciler.Close()

	episodes, listErr := f.store.ListEpisodes(ctx, f.season.ID)
	if listErr != nil {
		t.Fatalf("ListEpisodes: %v", listErr)
	}
	if len(episodes) != 0 {
		t.Errorf("episode row written despite sync failure: %d rows", len(episodes))
	}
	if f.transcoder.calls != 0 {
		t.Error("transcode started despite sync failure")
	}
	if _, statErr := os.Stat(source); statErr != nil {
		t.Error("source upload should survive a sync failure")
	}
}

type failingSubtitleStore struct {
	*catalog.Store
}

func (s *failingSubtitleStore) InsertSubtitle(ctx context.Context, episodeID int64, src string) (*catalog.Subtitle, error) {
	return nil, errors.New("subtitles table unavailable")
}

func TestCreateSubtitleInsertFailureLeavesNoRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subs.tracks = []subtitles.Extracted{
		{Label: "(en)_English", RelPath: "subtitles/k/(en)_English.vtt"},
	}
	source := f.writeUpload(t, "upload.mkv")

	reconciler := New(Options{
		Store:      &failingSubtitleStore{Store: f.store},
		Prober:     f.prober,
		Planner:    &fakePlanner{plan: []renditions.Rung{{Width: 1920, Height: 1080}}},
		Thumbs:     f.thumbs,
		Subtitles:  f.subs,
		Transcoder: f.transcoder,
		Augmenter:  func(manifestPath string, audioTracks []probe.AudioTrack) error { return nil },
		StaticDir:  f.staticDir,
	})
	defer reconciler.Close()

	_, err := reconciler.Create(ctx, CreateRequest{SeasonID: f.season.ID, Order: 1, SourcePath: source})
	if err == nil {
		t.Fatal("Create succeeded despite subtitle insert failure")
	}

	episodes, listErr := f.store.ListEpisodes(ctx, f.season.ID)
	if listErr != nil {
		t.Fatalf("ListEpisodes: %v", listErr)
	}
	if len(episodes) != 0 {
		t.Errorf("episode row survived subtitle insert failure: %d rows", len(episodes))
	}
	if f.transcoder.calls != 0 {
		t.Error("transcode started despite sync failure")
	}
	if _, statErr := os.Stat(source); statErr != nil {
		t.Error("source upload should survive a sync failure")
	}
}

func TestDeleteRemovesArtifactsAndRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source := f.writeUpload(t, "upload.mkv")

	episode, err := f.reconciler.Create(ctx, CreateRequest{SeasonID: f.season.ID, Order: 1, SourcePath: source})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.reconciler.Close()

	dirs := f.reconciler.artifactDirs(episode.ArtifactKey)
	for _, dir := range dirs[:2] {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
		if err := os.WriteFile(filepath.Join(dir, "artifact"), []byte("x"), 0o644); err != nil {
			t.Fatalf("write artifact: %v", err)
		}
	}
	// The third directory is deliberately absent.

	if err := f.reconciler.Delete(ctx, episode.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("artifact dir %s survived delete", dir)
		}
	}
	if _, err := f.store.GetEpisode(ctx, episode.ID); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("GetEpisode after delete = %v, want ErrNotFound", err)
	}
}

func TestEditReconcilesSubtitles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keepRel := filepath.Join(subtitles.DirName, "fixed", "(en)_English.vtt")
	dropRel := filepath.Join(subtitles.DirName, "fixed", "(ru)_Russian.vtt")
	f.subs.tracks = []subtitles.Extracted{
		{Label: "(en)_English", RelPath: keepRel},
		{Label: "(ru)_Russian", RelPath: dropRel},
	}
	source := f.writeUpload(t, "upload.mkv")

	// Materialize the extracted subtitle files the fake extractor reports.
	if err := os.MkdirAll(filepath.Join(f.staticDir, subtitles.DirName, "fixed"), 0o755); err != nil {
		t.Fatalf("mkdir subtitles: %v", err)
	}
	for _, rel := range []string{keepRel, dropRel} {
		if err := os.WriteFile(filepath.Join(f.staticDir, rel), []byte("WEBVTT"), 0o644); err != nil {
			t.Fatalf("write subtitle: %v", err)
		}
	}

	episode, err := f.reconciler.Create(ctx, CreateRequest{SeasonID: f.season.ID, Order: 1, Title: "Pilot", SourcePath: source})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.reconciler.Close()

	subtitleDir := filepath.Join(f.staticDir, subtitles.DirName, episode.ArtifactKey)
	loaded, err := f.store.GetEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if len(loaded.Subtitles) != 2 {
		t.Fatalf("subtitles = %d, want 2", len(loaded.Subtitles))
	}
	var keepID, dropID int64
	for _, subtitle := range loaded.Subtitles {
		switch subtitle.Src {
		case keepRel:
			keepID = subtitle.ID
		case dropRel:
			dropID = subtitle.ID
		}
	}
	if keepID == 0 || dropID == 0 {
		t.Fatalf("subtitle rows missing expected paths: %+v", loaded.Subtitles)
	}

	newUpload := f.writeUpload(t, "(fr)_French.vtt")
	edited, err := f.reconciler.Edit(ctx, EditRequest{
		EpisodeID:        episode.ID,
		Order:            2,
		Title:            "Renamed",
		Width:            loaded.Width,
		Height:           loaded.Height,
		PosterPath:       loaded.PosterPath,
		KeepSubtitleIDs:  []int64{keepID},
		NewSubtitleFiles: []string{newUpload},
	})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}

	if edited.Title != "Renamed" || edited.Order != 2 {
		t.Errorf("metadata not updated: %+v", edited)
	}
	if len(edited.Subtitles) != 2 {
		t.Fatalf("subtitles after edit = %d, want 2 (kept + new)", len(edited.Subtitles))
	}
	for _, subtitle := range edited.Subtitles {
		if subtitle.ID == dropID {
			t.Error("dropped subtitle row survived edit")
		}
	}
	if _, err := os.Stat(filepath.Join(f.staticDir, dropRel)); !os.IsNotExist(err) {
		t.Error("dropped subtitle file survived edit")
	}
	if _, err := os.Stat(filepath.Join(f.staticDir, keepRel)); err != nil {
		t.Errorf("kept subtitle file removed by edit: %v", err)
	}
	moved := filepath.Join(subtitleDir, "(fr)_French.vtt")
	if _, err := os.Stat(moved); err != nil {
		t.Errorf("new subtitle upload not moved into place: %v", err)
	}
	if _, err := os.Stat(newUpload); !os.IsNotExist(err) {
		t.Error("new subtitle upload left behind in tmp")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.reconciler.Close()
	done := make(chan struct{})
	go func() {
		f.reconciler.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second Close did not return")
	}
}
