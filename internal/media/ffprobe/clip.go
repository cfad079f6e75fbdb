package ffprobe

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"iomanager/internal/frames"
)

// ClipInfo is the timing and geometry of a movie clip.
type ClipInfo struct {
	StartTimecode  frames.Timecode
	HasTimecode    bool
	DurationFrames int
	FPS            float64
	Width          int
	Height         int
	ReelName       string
}

// EndTimecode returns the timecode of the last frame.
func (c ClipInfo) EndTimecode() frames.Timecode {
	if c.DurationFrames < 1 {
		return c.StartTimecode
	}
	return frames.TimecodeFromFrames(c.StartTimecode.Frames(c.FPS)+c.DurationFrames-1, c.FPS)
}

// Resolution renders the frame size as "WIDTH*HEIGHT".
func (c ClipInfo) Resolution() string {
	if c.Width == 0 || c.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%d*%d", c.Width, c.Height)
}

// ProbeClip inspects a movie and derives its clip timing.
func ProbeClip(ctx context.Context, binary, path string) (ClipInfo, error) {
	result, err := Inspect(ctx, binary, path)
	if err != nil {
		return ClipInfo{}, err
	}
	return ClipFromResult(result)
}

// ClipFromResult derives clip timing from parsed ffprobe output. The frame
// rate is rounded to three decimals and the duration to whole frames.
func ClipFromResult(result Result) (ClipInfo, error) {
	video, ok := result.VideoStream()
	if !ok {
		return ClipInfo{}, fmt.Errorf("ffprobe clip: no video stream in %s", result.Format.Filename)
	}
	fps, err := parseRate(video.RFrameRate)
	if err != nil {
		return ClipInfo{}, fmt.Errorf("ffprobe clip: %w", err)
	}
	info := ClipInfo{
		FPS:      fps,
		Width:    video.Width,
		Height:   video.Height,
		ReelName: result.Tag("reel_name"),
	}

	seconds := result.DurationSeconds()
	if seconds <= 0 || math.IsNaN(seconds) {
		seconds = parseFloat(video.Duration)
	}
	if seconds > 0 && !math.IsNaN(seconds) {
		info.DurationFrames = int(math.Round(seconds * fps))
	} else if n, err := strconv.Atoi(strings.TrimSpace(video.NBFrames)); err == nil {
		info.DurationFrames = n
	}
	if info.DurationFrames < 1 {
		return ClipInfo{}, fmt.Errorf("ffprobe clip: unknown duration for %s", result.Format.Filename)
	}

	if tc := result.Tag("timecode"); tc != "" {
		parsed, err := frames.ParseTimecode(tc)
		if err != nil {
			return ClipInfo{}, fmt.Errorf("ffprobe clip: %w", err)
		}
		info.StartTimecode = parsed
		info.HasTimecode = true
	}
	return info, nil
}

func parseRate(value string) (float64, error) {
	value = strings.TrimSpace(value)
	num, den, found := strings.Cut(value, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", value, err)
	}
	d := 1.0
	if found {
		if d, err = strconv.ParseFloat(den, 64); err != nil {
			return 0, fmt.Errorf("parse frame rate %q: %w", value, err)
		}
	}
	if d == 0 || n <= 0 {
		return 0, fmt.Errorf("parse frame rate %q: not positive", value)
	}
	return math.Round(n/d*1000) / 1000, nil
}
