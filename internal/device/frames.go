package device

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FrameSource cycles through base64 encoded camera frames.
type FrameSource struct {
	mu     sync.Mutex
	frames []string
	next   int
}

// LoadFrames reads every .jpg, .jpeg and .png file in dir in name order.
func LoadFrames(dir string) (*FrameSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no images in %s", dir)
	}
	sort.Strings(names)

	src := &FrameSource{}
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return nil, err
		}
		src.frames = append(src.frames, base64.StdEncoding.EncodeToString(b))
	}
	return src, nil
}

// PlaceholderFrames generates n small distinct PNG frames.
func PlaceholderFrames(n int) *FrameSource {
	if n < 1 {
		n = 1
	}
	src := &FrameSource{}
	for i := 0; i < n; i++ {
		img := image.NewGray(image.Rect(0, 0, 64, 48))
		shade := uint8(40 + i*200/n)
		for y := 0; y < 48; y++ {
			for x := 0; x < 64; x++ {
				img.SetGray(x, y, color.Gray{Y: shade + uint8(x/8)})
			}
		}
		var buf bytes.Buffer
		_ = png.Encode(&buf, img)
		src.frames = append(src.frames, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	return src
}

// Next returns the next frame, wrapping around.
func (s *FrameSource) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.frames[s.next]
	s.next = (s.next + 1) % len(s.frames)
	return f
}

// Len is the number of distinct frames.
func (s *FrameSource) Len() int { return len(s.frames) }
