// Package handlers exposes the segmentation service over HTTP.
package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	"image/png"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Ikomia-dev/infer-transunet/internal/pipeline"
	"github.com/Ikomia-dev/infer-transunet/internal/render"
	"github.com/Ikomia-dev/infer-transunet/internal/segment"
)

// SegmentResponse carries the three output images as base64-encoded PNG.
type SegmentResponse struct {
	Classes []string `json:"classes"`
	Mask    string   `json:"mask"`
	Overlay string   `json:"overlay"`
	Legend  string   `json:"legend"`
}

type Handler struct {
	service *segment.Service
}

func NewHandler(service *segment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (h *Handler) Segment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form (10MB max)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	log.Info().Str("file", header.Filename).Int64("size", header.Size).Msg("received image")

	img, format, err := image.Decode(file)
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG", http.StatusBadRequest)
		return
	}
	log.Debug().Str("format", format).Int("width", img.Bounds().Dx()).Int("height", img.Bounds().Dy()).Msg("decoded image")

	res, err := h.service.Run(img)
	if err != nil {
		log.Error().Err(err).Msg("segmentation failed")
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrInput) || errors.Is(err, render.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	resp := SegmentResponse{Classes: res.Classes}
	for _, out := range []struct {
		img image.Image
		dst *string
	}{
		{res.Mask, &resp.Mask},
		{res.Overlay, &resp.Overlay},
		{res.Legend, &resp.Legend},
	} {
		encoded, err := encodePNG(out.img)
		if err != nil {
			log.Error().Err(err).Msg("encoding output image")
			http.Error(w, "Failed to encode output", http.StatusInternalServerError)
			return
		}
		*out.dst = encoded
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Reload flags the service to reload config, weights and colors on the next
// run.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.service.Update()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "reload scheduled"})
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
