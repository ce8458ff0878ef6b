package episode

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"kinotek/internal/catalog"
	"kinotek/internal/logging"
	"kinotek/internal/media/hlsmanifest"
	"kinotek/internal/media/probe"
	"kinotek/internal/media/renditions"
	"kinotek/internal/media/subtitles"
	"kinotek/internal/media/thumbs"
	"kinotek/internal/media/transcode"
)

// Store is the persistence surface the reconciler needs from the catalog.
type Store interface {
	CreateEpisode(ctx context.Context, episode *catalog.Episode) error
	EpisodeExists(ctx context.Context, seasonID int64, order int) (bool, error)
	GetEpisode(ctx context.Context, id int64) (*catalog.Episode, error)
	GetEpisodeByOrder(ctx context.Context, seasonID int64, order int) (*catalog.Episode, error)
	ListEpisodes(ctx context.Context, seasonID int64) ([]*catalog.Episode, error)
	UpdateEpisode(ctx context.Context, episode *catalog.Episode) error
	MarkEpisodeReady(ctx context.Context, id int64, manifestPath string) error
	MarkEpisodeFailed(ctx context.Context, id int64, message string) error
	DeleteEpisode(ctx context.Context, id int64) error
	InsertSubtitle(ctx context.Context, episodeID int64, src string) (*catalog.Subtitle, error)
	DeleteSubtitle(ctx context.Context, id int64) error
}

// Planner derives the rendition ladder from a probed resolution.
type Planner interface {
	Plan(resolution probe.Resolution) ([]renditions.Rung, error)
}

// ThumbnailExtractor captures preview frames from a source file.
type ThumbnailExtractor interface {
	Extract(ctx context.Context, sourcePath string, durationSeconds int, artifactKey string) ([]string, error)
}

// SubtitleExtractor demuxes and converts embedded subtitle tracks.
type SubtitleExtractor interface {
	Extract(ctx context.Context, sourcePath string, tracks []probe.SubtitleTrack, artifactKey string) ([]subtitles.Extracted, error)
}

// Transcoder produces the adaptive streaming package for a source file.
type Transcoder interface {
	Transcode(ctx context.Context, sourcePath string, plan []renditions.Rung, audioTracks []probe.AudioTrack, artifactKey string) (string, error)
}

// Augmenter rewrites audio display names in a finished master manifest.
type Augmenter func(manifestPath string, audioTracks []probe.AudioTrack) error

// transcodeOutcome is the typed completion record a background encode chain
// sends back to the reconciler.
type transcodeOutcome struct {
	episodeID    int64
	artifactKey  string
	manifestPath string
	sourcePath   string
	err          error
}

// Options configures a Reconciler.
type Options struct {
	Store      Store
	Prober     probe.Prober
	Planner    Planner
	Thumbs     ThumbnailExtractor
	Subtitles  SubtitleExtractor
	Transcoder Transcoder
	// Augmenter defaults to hlsmanifest.Augment when nil.
	Augmenter Augmenter
	StaticDir string
	// LogDir, when set, receives one append-only json log file per background
	// encode chain. The chain outlives the originating command's output.
	LogDir string
	// LogLevel applies to the per-chain file logs.
	LogLevel string
	// IngestTimeout bounds the synchronous phase of Create. Zero disables
	// the bound.
	IngestTimeout time.Duration
	Logger        *slog.Logger
}

// Reconciler owns episode lifecycle: the synchronous ingest phase, the
// background transcode chain, edits, and deletion. Completion of background
// work flows through a single channel consumed by one goroutine, so
// ready/failed transitions for an episode happen exactly once.
type Reconciler struct {
	store      Store
	prober     probe.Prober
	planner    Planner
	thumbs     ThumbnailExtractor
	subtitles  SubtitleExtractor
	transcoder Transcoder
	augment    Augmenter

	staticDir     string
	logDir        string
	logLevel      string
	ingestTimeout time.Duration
	logger        *slog.Logger

	tasks    sync.WaitGroup
	outcomes chan transcodeOutcome
	done     chan struct{}
	closed   bool
	mu       sync.Mutex
}

// New builds a Reconciler and starts its completion consumer.
func New(opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	augment := opts.Augmenter
	if augment == nil {
		augment = hlsmanifest.Augment
	}
	r := &Reconciler{
		store:         opts.Store,
		prober:        opts.Prober,
		planner:       opts.Planner,
		thumbs:        opts.Thumbs,
		subtitles:     opts.Subtitles,
		transcoder:    opts.Transcoder,
		augment:       augment,
		staticDir:     opts.StaticDir,
		logDir:        opts.LogDir,
		logLevel:      opts.LogLevel,
		ingestTimeout: opts.IngestTimeout,
		logger:        logging.NewComponentLogger(logger, "episode"),
		outcomes:      make(chan transcodeOutcome),
		done:          make(chan struct{}),
	}
	go r.consumeOutcomes()
	return r
}

// Close waits for in-flight background chains to finish and their state
// transitions to be applied. Safe to call more than once.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.tasks.Wait()
	close(r.outcomes)
	<-r.done
}

// GetByID returns the episode with its subtitles.
func (r *Reconciler) GetByID(ctx context.Context, id int64) (*catalog.Episode, error) {
	return r.store.GetEpisode(ctx, id)
}

// GetByOrder returns the episode occupying a (season, order) slot.
func (r *Reconciler) GetByOrder(ctx context.Context, seasonID int64, order int) (*catalog.Episode, error) {
	return r.store.GetEpisodeByOrder(ctx, seasonID, order)
}

// List returns a season's episodes.
func (r *Reconciler) List(ctx context.Context, seasonID int64) ([]*catalog.Episode, error) {
	return r.store.ListEpisodes(ctx, seasonID)
}

// consumeOutcomes applies the terminal state transition for each finished
// background chain. Failures mark the episode failed rather than leaving it
// stuck in processing, and never affect other episodes.
func (r *Reconciler) consumeOutcomes() {
	defer close(r.done)
	for outcome := range r.outcomes {
		r.applyOutcome(outcome)
	}
}

func (r *Reconciler) applyOutcome(outcome transcodeOutcome) {
	ctx := context.Background()
	log := r.logger.With(
		logging.Int64(logging.FieldEpisodeID, outcome.episodeID),
		logging.String(logging.FieldArtifactKey, outcome.artifactKey),
	)

	// The source upload is consumed whether the chain succeeded or not.
	if outcome.sourcePath != "" {
		if err := os.Remove(outcome.sourcePath); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove source upload", logging.Error(err))
		}
	}

	if outcome.err != nil {
		log.Error("background transcode failed", logging.Error(outcome.err))
		if err := r.store.MarkEpisodeFailed(ctx, outcome.episodeID, outcome.err.Error()); err != nil {
			log.Error("failed to record episode failure", logging.Error(err))
		}
		return
	}

	if err := r.store.MarkEpisodeReady(ctx, outcome.episodeID, outcome.manifestPath); err != nil {
		log.Error("failed to mark episode ready", logging.Error(err))
		return
	}
	log.Info("episode ready", logging.String("manifest", outcome.manifestPath))
}

// artifactDirs returns the absolute per-episode artifact directories, in a
// fixed order.
func (r *Reconciler) artifactDirs(artifactKey string) []string {
	return []string{
		filepath.Join(r.staticDir, thumbs.DirName, artifactKey),
		filepath.Join(r.staticDir, transcode.DirName, artifactKey),
		filepath.Join(r.staticDir, subtitles.DirName, artifactKey),
	}
}

// removeArtifacts deletes the episode's artifact subtrees. Missing
// directories are not an error.
func (r *Reconciler) removeArtifacts(artifactKey string) error {
	for _, dir := range r.artifactDirs(artifactKey) {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}
