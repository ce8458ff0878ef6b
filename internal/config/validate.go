package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateThumbnails(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateLadders(); err != nil {
		return err
	}
	if err := c.validateBitrates(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateThumbnails() error {
	if c.Thumbnails.Count <= 0 {
		return errors.New("thumbnails.count must be positive")
	}
	if c.Thumbnails.Width <= 0 {
		return errors.New("thumbnails.width must be positive")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.SegmentSeconds <= 0 {
		return errors.New("transcode.segment_seconds must be positive")
	}
	if c.Transcode.GopSize <= 0 {
		return errors.New("transcode.gop_size must be positive")
	}
	if c.Transcode.AudioChannels <= 0 {
		return errors.New("transcode.audio_channels must be positive")
	}
	if c.Transcode.AudioDefaultKbps <= 0 {
		return errors.New("transcode.audio_default_kbps must be positive")
	}
	if c.Transcode.SubprocessLimit < 0 {
		return errors.New("transcode.subprocess_limit must not be negative")
	}
	if c.Transcode.IngestTimeoutMinutes <= 0 {
		return errors.New("transcode.ingest_timeout_minutes must be positive")
	}
	return nil
}

func (c *Config) validateLadders() error {
	if len(c.Ladders) == 0 {
		return errors.New("at least one [[ladder]] must be configured")
	}
	for _, ladder := range c.Ladders {
		if ladder.Name == "" {
			return errors.New("ladder.name must be set")
		}
		if len(ladder.Ratios) == 0 {
			return fmt.Errorf("ladder %q: ratios must not be empty", ladder.Name)
		}
		if len(ladder.Rungs) == 0 {
			return fmt.Errorf("ladder %q: rungs must not be empty", ladder.Name)
		}
		prevWidth := 0
		for _, rung := range ladder.Rungs {
			if len(rung) != 2 {
				return fmt.Errorf("ladder %q: each rung must be a [width, height] pair", ladder.Name)
			}
			if rung[0] <= 0 || rung[1] <= 0 {
				return fmt.Errorf("ladder %q: rung %v dimensions must be positive", ladder.Name, rung)
			}
			if rung[0] <= prevWidth {
				return fmt.Errorf("ladder %q: rungs must be sorted ascending by width", ladder.Name)
			}
			prevWidth = rung[0]
		}
	}
	return nil
}

func (c *Config) validateBitrates() error {
	if len(c.Bitrates) == 0 {
		return errors.New("at least one [[rendition_bitrate]] must be configured")
	}
	seen := make(map[int]struct{}, len(c.Bitrates))
	for _, entry := range c.Bitrates {
		if entry.Height <= 0 || entry.Kbps <= 0 {
			return fmt.Errorf("rendition_bitrate %dp: height and kbps must be positive", entry.Height)
		}
		if _, dup := seen[entry.Height]; dup {
			return fmt.Errorf("rendition_bitrate %dp configured twice", entry.Height)
		}
		seen[entry.Height] = struct{}{}
	}
	// Every ladder rung needs a bitrate or the encode command cannot be built.
	for _, ladder := range c.Ladders {
		for _, rung := range ladder.Rungs {
			if len(rung) != 2 {
				continue
			}
			if _, ok := seen[rung[1]]; !ok {
				return fmt.Errorf("ladder %q rung %dx%d has no rendition_bitrate entry", ladder.Name, rung[0], rung[1])
			}
		}
	}
	return nil
}
