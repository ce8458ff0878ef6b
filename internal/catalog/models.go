package catalog

import "time"

// EpisodeStatus tracks an episode's pipeline lifecycle.
type EpisodeStatus string

const (
	// EpisodeProcessing marks an episode whose background transcode has not
	// finished yet.
	EpisodeProcessing EpisodeStatus = "processing"
	// EpisodeReady marks an episode whose streaming package is complete.
	EpisodeReady EpisodeStatus = "ready"
	// EpisodeFailed marks an episode whose background transcode failed.
	// Distinguishing this from processing keeps stuck episodes visible.
	EpisodeFailed EpisodeStatus = "failed"
)

// Series is a top-level show.
type Series struct {
	ID          int64
	Slug        string
	Title       string
	Description string
	CreatedAt   time.Time
}

// Season groups episodes within a series. Order is unique per series.
type Season struct {
	ID       int64
	SeriesID int64
	Order    int
	Title    string
}

// SkipRegion marks a start/end offset pair (seconds) players may skip.
// A nil pointer means no region of that kind.
type SkipRegion struct {
	Start int
	End   int
}

// Episode is the persisted record the reconciler owns. ArtifactKey names the
// episode's exclusive subtree under each artifact directory (thumbnails,
// video, subtitles).
type Episode struct {
	ID             int64
	SeasonID       int64
	Order          int
	Title          string
	Description    string
	ArtifactKey    string
	Duration       int
	Width          int
	Height         int
	PosterPath     string
	ThumbnailPaths []string
	ManifestPath   string
	Status         EpisodeStatus
	ErrorMessage   string
	SkipIntro      *SkipRegion
	SkipRecap      *SkipRegion
	SkipCredits    *SkipRegion
	ReleaseDate    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Subtitles      []Subtitle
}

// Subtitle is one stored subtitle track, extracted or uploaded.
type Subtitle struct {
	ID        int64
	EpisodeID int64
	Src       string
}
