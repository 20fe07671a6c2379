// Package banner rotates the hero slides shown above the catalog.
package banner

import (
	"bytes"
	"html/template"
	"os"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

// ErrOutOfRange is returned by Select for an index without a slide.
var ErrOutOfRange = errors.New("banner index out of range")

// Slide is one banner item. Caption holds sanitized HTML rendered from
// Markdown.
type Slide struct {
	Title   string
	Image   string
	Caption template.HTML
}

// SlideSpec is the on-disk representation of a slide; Caption is Markdown.
type SlideSpec struct {
	Title   string `yaml:"title"`
	Image   string `yaml:"image"`
	Caption string `yaml:"caption"`
}

// DefaultSlides is used when no banner file is configured.
var DefaultSlides = []SlideSpec{
	{Title: "Premium Roblox Pets", Caption: "Rare pets for **Grow A Garden**, delivered fast."},
	{Title: "Restocked every day", Caption: "Prices and stock refresh *automatically*."},
	{Title: "Order through WhatsApp", Caption: "Pick a pet, choose a payment method, and we confirm in chat."},
}

// Load reads slides from a YAML list. An empty path returns DefaultSlides.
func Load(path string) ([]Slide, error) {
	raw := DefaultSlides
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read banner file %s", path)
		}
		raw = nil
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrapf(err, "decode banner file %s", path)
		}
	}
	return Build(raw)
}

// Build renders Markdown captions and sanitizes the resulting HTML.
func Build(raw []SlideSpec) ([]Slide, error) {
	if len(raw) == 0 {
		return nil, errors.New("at least one banner slide is required")
	}
	md := goldmark.New()
	policy := bluemonday.UGCPolicy()

	slides := make([]Slide, len(raw))
	for i, r := range raw {
		var buf bytes.Buffer
		if err := md.Convert([]byte(r.Caption), &buf); err != nil {
			return nil, errors.Wrapf(err, "render caption of slide %d", i)
		}
		slides[i] = Slide{
			Title: r.Title,
			Image: r.Image,
			// #nosec G203 -- sanitized by bluemonday above.
			Caption: template.HTML(policy.SanitizeBytes(buf.Bytes())),
		}
	}
	return slides, nil
}

// Rotator tracks the active slide. Advance and Select may be called from
// different goroutines.
type Rotator struct {
	slides []Slide
	index  atomic.Int64
}

// NewRotator starts at slide 0.
func NewRotator(slides []Slide) *Rotator {
	return &Rotator{slides: slides}
}

// Advance moves to the next slide, wrapping around.
func (r *Rotator) Advance() int {
	n := int64(len(r.slides))
	if n == 0 {
		return 0
	}
	for {
		cur := r.index.Load()
		next := (cur + 1) % n
		if r.index.CompareAndSwap(cur, next) {
			return int(next)
		}
	}
}

// Select jumps to slide i. The auto-advance schedule is not reset.
func (r *Rotator) Select(i int) error {
	if i < 0 || i >= len(r.slides) {
		return ErrOutOfRange
	}
	r.index.Store(int64(i))
	return nil
}

// Current returns the active slide index.
func (r *Rotator) Current() int {
	return int(r.index.Load())
}

// Slides returns all slides in order.
func (r *Rotator) Slides() []Slide {
	return r.slides
}
