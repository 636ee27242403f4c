package model

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/Ikomia-dev/infer-transunet/internal/config"
)

// builder constructs a network for a config and weight file. Swapped out in
// tests to avoid touching the ONNX runtime.
type builder func(cfg *config.Config, weightPath string) (Network, error)

// Cache memoizes the one built network of a pipeline context. Rebuilding is
// expensive, so the network is kept until the config fingerprint or weight
// path changes, or a rebuild is forced. Not safe for concurrent use; the
// owning context serializes access.
type Cache struct {
	build       builder
	fingerprint string
	weightPath  string
	net         Network
}

func NewCache() *Cache {
	return &Cache{build: buildNetwork}
}

func buildNetwork(cfg *config.Config, weightPath string) (Network, error) {
	if _, err := os.Stat(weightPath); err != nil {
		// No trained weights yet. Legitimate during bring-up: run with
		// random initialization instead of failing.
		log.Warn().Str("weights", weightPath).Msg("weight file not found, using randomly initialized network")
		return newRandomNetwork(cfg.ImgSize, cfg.NClasses), nil
	}
	log.Info().Str("weights", weightPath).Int("img_size", cfg.ImgSize).Int("n_classes", cfg.NClasses).Msg("building model")
	net, err := newONNXNetwork(weightPath, cfg.ImgSize, cfg.NClasses, cfg.InputName, cfg.OutputName)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("model built")
	return net, nil
}

// Ensure returns the cached network when it is still bound to cfg and
// weightPath and no rebuild is forced, building a new one otherwise. A
// failed build leaves the previously cached network intact.
func (c *Cache) Ensure(cfg *config.Config, weightPath string, forceRebuild bool) (Network, error) {
	fp := cfg.Fingerprint()
	if c.net != nil && !forceRebuild && fp == c.fingerprint && weightPath == c.weightPath {
		return c.net, nil
	}

	net, err := c.build(cfg, weightPath)
	if err != nil {
		return nil, err
	}

	if c.net != nil {
		c.net.Close()
	}
	c.net = net
	c.fingerprint = fp
	c.weightPath = weightPath
	return net, nil
}

// Close drops the cached network, releasing its runtime resources.
func (c *Cache) Close() error {
	if c.net == nil {
		return nil
	}
	err := c.net.Close()
	c.net = nil
	c.fingerprint = ""
	c.weightPath = ""
	return err
}
