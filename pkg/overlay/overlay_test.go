package overlay

import (
	"image"
	"sync"
	"testing"

	"github.com/teslashibe/go-smartbin/internal/log"
	"github.com/teslashibe/go-smartbin/pkg/camera"
	"github.com/teslashibe/go-smartbin/pkg/classifier"
	"github.com/teslashibe/go-smartbin/pkg/observe"
	"gocv.io/x/gocv"
)

func TestLayoutFor(t *testing.T) {
	tests := []struct {
		obs   classifier.Observation
		width int
		text  string
	}{
		{classifier.Observation{Label: "PET", Confidence: 0.957}, 130, "PET 95%"},
		{classifier.Observation{Label: "Aluminum", Confidence: 0.999}, 180, "Aluminum 99%"},
		{classifier.Observation{Label: "", Confidence: 0}, 100, " 0%"},
	}

	for _, tt := range tests {
		l := LayoutFor(tt.obs)
		if l.Box.Min != image.Pt(10, 10) {
			t.Errorf("%s: box origin %v", tt.obs.Label, l.Box.Min)
		}
		if l.Box.Dx() != tt.width || l.Box.Dy() != 30 {
			t.Errorf("%s: box %dx%d, want %dx30", tt.obs.Label, l.Box.Dx(), l.Box.Dy(), tt.width)
		}
		if l.Text != tt.text {
			t.Errorf("text = %q, want %q", l.Text, tt.text)
		}
		if l.TextPos != image.Pt(15, 30) {
			t.Errorf("text position %v", l.TextPos)
		}
	}
}

func jpegFrame(t *testing.T, w, h int) camera.Frame {
	t.Helper()
	img := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	defer img.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	defer buf.Close()
	return camera.Frame{Seq: 1, Data: append([]byte(nil), buf.GetBytes()...), Width: w, Height: h}
}

func TestDrawFillsBox(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 200, 240, gocv.MatTypeCV8UC3)
	defer img.Close()

	Draw(&img, &classifier.Observation{Label: "PET", Confidence: 0.95}, DefaultStyle())

	// Inside the box, right of the caption: cyan in BGR order
	v := img.GetVecbAt(12, 125)
	if v[0] != 255 || v[1] != 255 || v[2] != 0 {
		t.Errorf("Expected cyan fill, got %v", v)
	}
	// Outside the box stays black
	if v := img.GetVecbAt(100, 200); v[0] != 0 || v[1] != 0 || v[2] != 0 {
		t.Errorf("Expected untouched pixel, got %v", v)
	}
}

func TestDrawNilLeavesFrameClean(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 200, 240, gocv.MatTypeCV8UC3)
	defer img.Close()

	Draw(&img, nil, DefaultStyle())

	gray := img.Reshape(1, 0)
	defer gray.Close()
	if n := gocv.CountNonZero(gray); n != 0 {
		t.Errorf("Expected a clean frame, %d pixels changed", n)
	}
}

func TestText(t *testing.T) {
	if got := Text(classifier.Observation{Label: "Aluminum", Confidence: 0.919}); got != "Aluminum 91%" {
		t.Errorf("Text = %q", got)
	}
}

func TestRendererResizes(t *testing.T) {
	r := NewRenderer(camera.DefaultConfig())

	data, err := r.Render(jpegFrame(t, 380, 320), &classifier.Observation{Label: "PP", Confidence: 0.5})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Close()

	if img.Cols() != 240 || img.Rows() != 200 {
		t.Errorf("Expected 240x200, got %dx%d", img.Cols(), img.Rows())
	}
}

func TestRendererEmptyFrame(t *testing.T) {
	r := NewRenderer(camera.DefaultConfig())
	if _, err := r.Render(camera.Frame{}, nil); err != camera.ErrEmptyFrame {
		t.Errorf("Expected ErrEmptyFrame, got %v", err)
	}
}

type publisher struct {
	mu      sync.Mutex
	clients int
	frames  [][]byte
}

func (p *publisher) BroadcastBinary(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, data)
}

func (p *publisher) ClientCount() int { return p.clients }

func TestFeedSkipsWithoutClients(t *testing.T) {
	pub := &publisher{}
	feed := NewFeed(NewRenderer(camera.DefaultConfig()), pub, log.Discard())

	sample := observe.Sample{Frame: jpegFrame(t, 380, 320), Observation: classifier.Observation{Label: "PET", Confidence: 0.9}}
	feed.OnSample(sample)
	if len(pub.frames) != 0 {
		t.Error("Rendered with no clients")
	}

	pub.clients = 1
	feed.OnSample(sample)
	if len(pub.frames) != 1 {
		t.Errorf("Expected 1 frame, got %d", len(pub.frames))
	}
}
