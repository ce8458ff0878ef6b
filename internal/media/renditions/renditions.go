// Package renditions derives the ABR encoding ladder for a probed source
// resolution. Planning is pure: the aspect-ratio buckets arrive as
// configuration and the planner performs no I/O.
package renditions

import (
	"errors"
	"fmt"
	"math"

	"kinotek/internal/media/probe"
)

// Rung is one target rendition resolution.
type Rung struct {
	Width  int
	Height int
}

// Label returns the conventional player-facing name for the rung.
func (r Rung) Label() string {
	return fmt.Sprintf("%dp", r.Height)
}

// Ladder associates aspect-ratio buckets with an ascending resolution ladder.
type Ladder struct {
	Name   string
	Ratios []float64
	Rungs  []Rung
}

// ErrUnsupportedAspectRatio reports a source whose aspect ratio matches no
// configured bucket.
var ErrUnsupportedAspectRatio = errors.New("unsupported aspect ratio")

// ratioTolerance absorbs float noise between the rounded source ratio and
// the configured bucket values.
const ratioTolerance = 0.005

// Planner selects and filters ladders for probed resolutions.
type Planner struct {
	ladders []Ladder
}

// NewPlanner builds a planner over the configured ladders.
func NewPlanner(ladders []Ladder) (*Planner, error) {
	if len(ladders) == 0 {
		return nil, errors.New("renditions: no ladders configured")
	}
	for _, ladder := range ladders {
		if len(ladder.Rungs) == 0 {
			return nil, fmt.Errorf("renditions: ladder %q has no rungs", ladder.Name)
		}
	}
	return &Planner{ladders: ladders}, nil
}

// Plan computes the rendition list for a source resolution: the ladder of
// the matching aspect-ratio bucket filtered to rungs not wider than the
// source, ascending by width. A source narrower than the smallest rung still
// receives that rung so every episode gets at least one rendition.
func (p *Planner) Plan(resolution probe.Resolution) ([]Rung, error) {
	if resolution.Width <= 0 || resolution.Height <= 0 {
		return nil, fmt.Errorf("renditions: invalid source resolution %dx%d", resolution.Width, resolution.Height)
	}

	ratio := RoundRatio(resolution.Width, resolution.Height)
	ladder, ok := p.match(ratio)
	if !ok {
		return nil, fmt.Errorf("%w: %dx%d (ratio %.2f)", ErrUnsupportedAspectRatio, resolution.Width, resolution.Height, ratio)
	}

	planned := make([]Rung, 0, len(ladder.Rungs))
	for _, rung := range ladder.Rungs {
		if rung.Width <= resolution.Width {
			planned = append(planned, rung)
		}
	}
	if len(planned) == 0 {
		planned = append(planned, ladder.Rungs[0])
	}
	return planned, nil
}

func (p *Planner) match(ratio float64) (Ladder, bool) {
	for _, ladder := range p.ladders {
		for _, bucket := range ladder.Ratios {
			if math.Abs(ratio-bucket) < ratioTolerance {
				return ladder, true
			}
		}
	}
	return Ladder{}, false
}

// RoundRatio computes width/height rounded to two decimal places, the form
// the bucket tables are keyed by.
func RoundRatio(width, height int) float64 {
	return math.Round(float64(width)/float64(height)*100) / 100
}
