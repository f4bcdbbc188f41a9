package capture

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pashonic/demoreel/src/videobuilder"
)

const max_video_frames = 20000

// screencastFrame is one image pushed by the browser. Chrome only sends a
// frame when the page repaints, so gaps between frames vary.
type screencastFrame struct {
	data []byte
	at   time.Time
}

// frameCounts returns how often each frame is repeated so that the sequence
// plays back at fps and lasts from the first frame until stop. Fractions of a
// frame carry over to the next one. frames must be sorted by time.
func frameCounts(frames []screencastFrame, stop time.Time, fps int) []int {
	counts := make([]int, len(frames))
	remaining := 0.0
	for i, frame := range frames {
		next := stop
		if i+1 < len(frames) {
			next = frames[i+1].at
		}
		dur := next.Sub(frame.at).Seconds()
		if dur < 0 {
			dur = 0
		}

		fc := dur*float64(fps) + remaining
		count := math.Floor(fc)
		counts[i] = int(count)
		remaining = fc - count
	}
	return counts
}

// writeFrames writes the resampled frame sequence to dir using the frame
// pattern the encoder reads. It returns the number of files written, which
// never exceeds max_video_frames.
func writeFrames(dir string, frames []screencastFrame, stop time.Time, fps int) (int, error) {
	if len(frames) == 0 {
		return 0, nil
	}
	sort.SliceStable(frames, func(i, j int) bool {
		return frames[i].at.Before(frames[j].at)
	})
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}

	total := 0
	for i, count := range frameCounts(frames, stop, fps) {
		for n := 0; n < count; n++ {
			if total >= max_video_frames {
				log.Warn("Recording truncated", "frames", total)
				return total, nil
			}
			path := filepath.Join(dir, fmt.Sprintf(videobuilder.FramePattern, total))
			if err := os.WriteFile(path, frames[i].data, 0644); err != nil {
				return total, err
			}
			total++
		}
	}
	return total, nil
}
