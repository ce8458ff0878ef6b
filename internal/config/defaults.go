package config

const (
	defaultStaticDir            = "~/.local/share/kinotek/static"
	defaultTmpDir               = "~/.local/share/kinotek/tmp"
	defaultDataDir              = "~/.local/share/kinotek"
	defaultLogDir               = "~/.local/share/kinotek/logs"
	defaultMediainfoBinary      = "mediainfo"
	defaultFFmpegBinary         = "ffmpeg"
	defaultThumbnailCount       = 20
	defaultThumbnailWidth       = 320
	defaultHWAccel              = "cuda"
	defaultVideoCodec           = "h264_nvenc"
	defaultPreset               = "slow"
	defaultGopSize              = 48
	defaultSegmentSeconds       = 10
	defaultAudioChannels        = 2
	defaultAudioDefaultKbps     = 128
	defaultSubprocessLimit      = 8
	defaultIngestTimeoutMinutes = 30
	defaultLogLevel             = "info"
	defaultLogFormat            = "console"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StaticDir: defaultStaticDir,
			TmpDir:    defaultTmpDir,
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
		},
		Tools: Tools{
			Mediainfo: defaultMediainfoBinary,
			FFmpeg:    defaultFFmpegBinary,
		},
		Thumbnails: Thumbnails{
			Count: defaultThumbnailCount,
			Width: defaultThumbnailWidth,
		},
		Transcode: Transcode{
			HWAccel:              defaultHWAccel,
			VideoCodec:           defaultVideoCodec,
			Preset:               defaultPreset,
			GopSize:              defaultGopSize,
			SegmentSeconds:       defaultSegmentSeconds,
			AudioChannels:        defaultAudioChannels,
			AudioDefaultKbps:     defaultAudioDefaultKbps,
			SubprocessLimit:      defaultSubprocessLimit,
			IngestTimeoutMinutes: defaultIngestTimeoutMinutes,
		},
		Ladders:  DefaultLadders(),
		Bitrates: DefaultBitrates(),
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// DefaultLadders returns the built-in aspect-ratio buckets and their
// resolution ladders. Rungs are ordered ascending by width.
func DefaultLadders() []Ladder {
	return []Ladder{
		{
			Name:   "16:9",
			Ratios: []float64{1.77, 1.78},
			Rungs: [][]int{
				{426, 240},
				{640, 360},
				{854, 480},
				{1280, 720},
				{1920, 1080},
				{2560, 1440},
				{3840, 2160},
			},
		},
		{
			Name:   "2:1",
			Ratios: []float64{2.00},
			Rungs: [][]int{
				{480, 240},
				{720, 360},
				{960, 480},
				{1440, 720},
				{2160, 1080},
			},
		},
	}
}

// DefaultBitrates returns the built-in rung-height to video bitrate table.
func DefaultBitrates() []RenditionBitrate {
	return []RenditionBitrate{
		{Height: 240, Kbps: 200},
		{Height: 360, Kbps: 400},
		{Height: 480, Kbps: 550},
		{Height: 720, Kbps: 1500},
		{Height: 1080, Kbps: 3000},
		{Height: 1440, Kbps: 6000},
		{Height: 2160, Kbps: 12000},
	}
}
