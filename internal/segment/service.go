// Package segment orchestrates one inference flow: configuration, model
// cache and color map live here, and a single mutex serializes the
// reload-and-infer sequence.
package segment

import (
	"image"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Ikomia-dev/infer-transunet/internal/config"
	"github.com/Ikomia-dev/infer-transunet/internal/model"
	"github.com/Ikomia-dev/infer-transunet/internal/pipeline"
	"github.com/Ikomia-dev/infer-transunet/internal/render"
)

// Result carries the three output images of one run.
type Result struct {
	Mask    *image.Gray
	Overlay *image.RGBA
	Legend  *image.RGBA
	Classes []string
}

// Service owns the loaded configuration, the model cache and the color map
// for one inference flow. Callers needing parallel inference run one
// Service per worker; a single Service serializes its runs.
type Service struct {
	mu         sync.Mutex
	configFile string
	modelFile  string
	update     bool

	cfg       *config.Config
	cache     *model.Cache
	colors    []render.Color
	colorsFor string // fingerprint of the config the colors were built from

	log zerolog.Logger
}

func NewService(configFile, modelFile string) *Service {
	return &Service{
		configFile: configFile,
		modelFile:  modelFile,
		cache:      model.NewCache(),
		log:        log.With().Str("component", "segment").Logger(),
	}
}

// SetParams rebinds the config and weight file paths. A changed config path
// forces a config reload on the next run.
func (s *Service) SetParams(configFile, modelFile string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if configFile != s.configFile {
		s.cfg = nil
	}
	s.configFile = configFile
	s.modelFile = modelFile
}

// Update flags the config, model and color map for rebuild on the next run.
func (s *Service) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update = true
}

// Run executes one synchronous inference over src and renders the mask,
// overlay and legend. A failed run leaves the previously cached state
// intact and produces no images.
func (s *Service) Run(src image.Image) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg == nil || s.update {
		cfg, err := config.Load(s.configFile)
		if err != nil {
			return nil, err
		}
		s.cfg = cfg
		s.log.Info().Str("config", s.configFile).Int("n_classes", cfg.NClasses).Msg("config loaded")
	}

	net, err := s.cache.Ensure(s.cfg, s.modelFile, s.update)
	if err != nil {
		return nil, err
	}
	// Colors are bound to a config the same way the model is: a stale map
	// would have the wrong length after a class-count change.
	if fp := s.cfg.Fingerprint(); s.colors == nil || s.update || s.colorsFor != fp {
		s.colors = render.BuildColorMap(s.cfg.NClasses, render.DefaultSeed)
		s.colorsFor = fp
	}
	s.update = false

	labels, err := pipeline.Infer(net, s.cfg, src)
	if err != nil {
		return nil, err
	}

	overlay, err := render.Overlay(src, labels, s.colors)
	if err != nil {
		return nil, err
	}
	legend, err := render.Legend(s.colors, s.cfg.ClassNames)
	if err != nil {
		return nil, err
	}

	return &Result{
		Mask:    render.LabelImage(labels),
		Overlay: overlay,
		Legend:  legend,
		Classes: s.cfg.ClassNames,
	}, nil
}

// Close releases the cached model.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Close()
}
