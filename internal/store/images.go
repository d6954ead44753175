// Package store keeps captured stills in memory behind opaque handles and
// tracks their lifetime: a handle stays valid until it is released.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or already released handles.
var ErrNotFound = errors.New("image not found")

// Handle is an opaque reference to a captured still.
type Handle struct {
	ID        uuid.UUID `json:"id"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"created_at"`
}

type entry struct {
	handle Handle
	img    image.Image
	png    []byte
}

// Images is a registry of captured stills, safe for concurrent use.
type Images struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
}

// NewImages creates an empty registry.
func NewImages() *Images {
	return &Images{entries: make(map[uuid.UUID]*entry)}
}

// Put encodes img as PNG (best compression, lossless) and registers it.
func (s *Images) Put(img image.Image) (Handle, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return Handle{}, fmt.Errorf("encode png: %w", err)
	}
	size := img.Bounds().Size()
	h := Handle{
		ID:        uuid.New(),
		Width:     size.X,
		Height:    size.Y,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.entries[h.ID] = &entry{handle: h, img: img, png: buf.Bytes()}
	s.mu.Unlock()
	return h, nil
}

// PNG returns the encoded still for id.
func (s *Images) PNG(id uuid.UUID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.png, nil
}

// Image returns the decoded still for id.
func (s *Images) Image(id uuid.UUID) (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.img, nil
}

// Release drops the given handles and returns how many were live.
func (s *Images) Release(handles ...Handle) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range handles {
		if _, ok := s.entries[h.ID]; ok {
			delete(s.entries, h.ID)
			n++
		}
	}
	return n
}

// Len returns the number of live handles.
func (s *Images) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
