package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pashonic/demoreel/src/videobuilder"
)

func framesAt(start time.Time, offsets ...time.Duration) []screencastFrame {
	frames := []screencastFrame{}
	for i, offset := range offsets {
		frames = append(frames, screencastFrame{data: []byte{byte(i)}, at: start.Add(offset)})
	}
	return frames
}

func sum(counts []int) int {
	total := 0
	for _, count := range counts {
		total += count
	}
	return total
}

func TestFrameCounts(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("carries fractions", func(t *testing.T) {
		frames := framesAt(start, 0, 250*time.Millisecond, 500*time.Millisecond)
		counts := frameCounts(frames, start.Add(time.Second), 10)
		assert.Equal(t, []int{2, 3, 5}, counts)
	})

	t.Run("holds last frame until stop", func(t *testing.T) {
		frames := framesAt(start, 0, time.Second)
		counts := frameCounts(frames, start.Add(3*time.Second), 10)
		assert.Equal(t, []int{10, 20}, counts)
	})

	t.Run("static page keeps wall clock length", func(t *testing.T) {
		offsets := []time.Duration{}
		for i := 0; i < 60; i++ {
			offsets = append(offsets, time.Duration(i)*25*time.Millisecond)
		}
		counts := frameCounts(framesAt(start, offsets...), start.Add(30*time.Second), 30)
		assert.InDelta(t, 900, sum(counts), 1)
	})

	t.Run("same timestamp", func(t *testing.T) {
		frames := framesAt(start, 0, 0, 100*time.Millisecond)
		counts := frameCounts(frames, start.Add(200*time.Millisecond), 10)
		assert.Equal(t, []int{0, 1, 1}, counts)
	})

	t.Run("stop before last frame", func(t *testing.T) {
		frames := framesAt(start, 0, time.Second)
		counts := frameCounts(frames, start, 10)
		assert.Equal(t, []int{10, 0}, counts)
	})
}

func TestWriteFrames(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	dir := filepath.Join(t.TempDir(), "frames")

	// Out of order on purpose
	frames := []screencastFrame{
		{data: []byte("second"), at: start.Add(500 * time.Millisecond)},
		{data: []byte("first"), at: start},
	}
	count, err := writeFrames(dir, frames, start.Add(time.Second), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	for i, want := range []string{"first", "first", "second", "second"} {
		data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf(videobuilder.FramePattern, i)))
		require.NoError(t, err)
		assert.Equal(t, want, string(data), "frame %d", i)
	}
}

func TestWriteFramesLimit(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()

	frames := framesAt(start, 0)
	count, err := writeFrames(dir, frames, start.Add(20*time.Minute), 30)
	require.NoError(t, err)
	assert.Equal(t, max_video_frames, count)

	_, err = os.Stat(filepath.Join(dir, fmt.Sprintf(videobuilder.FramePattern, max_video_frames)))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteFramesEmpty(t *testing.T) {
	count, err := writeFrames(t.TempDir(), nil, time.Now(), 30)
	require.NoError(t, err)
	assert.Zero(t, count)
}
