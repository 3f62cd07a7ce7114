// Package di wires the device, its backing store and the sync engine from
// a configuration
package di

import (
	"fmt"
	"os"

	"github.com/ssargent/bbsync/pkg/codec"
	"github.com/ssargent/bbsync/pkg/config"
	"github.com/ssargent/bbsync/pkg/desktop"
	"github.com/ssargent/bbsync/pkg/logging"
	"github.com/ssargent/bbsync/pkg/storage"
	"github.com/ssargent/bbsync/pkg/sync"
)

// Container holds all the dependencies for the application. The device and
// engine are built on first use so commands that never touch the device do
// not open the image.
type Container struct {
	cfg *config.Config
	log *logging.Logger

	image  *storage.Image
	device *desktop.Device
	engine *sync.Engine
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, log *logging.Logger) *Container {
	if log == nil {
		log = logging.Default()
	}
	return &Container{cfg: cfg, log: log}
}

// Config returns the configuration the container was built from
func (c *Container) Config() *config.Config { return c.cfg }

// Logger returns the application logger
func (c *Container) Logger() *logging.Logger { return c.log }

// Device returns the simulated device. It is backed by the pebble image at
// device.image_path, or by memory when the path is empty.
func (c *Container) Device() (*desktop.Device, error) {
	if c.device != nil {
		return c.device, nil
	}

	conv, err := codec.NewConverter(c.cfg.Charset)
	if err != nil {
		return nil, err
	}

	var store desktop.Store
	if path := c.cfg.Device.ImagePath; path != "" {
		img, err := storage.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open device image: %w", err)
		}
		c.image = img
		store = img
		c.log.Debug("device image opened", "path", path)
	} else {
		store = desktop.NewMemoryStore()
		c.log.Debug("using in-memory device")
	}

	dev, err := desktop.NewDevice(store, conv)
	if err != nil {
		return nil, err
	}
	c.device = dev
	return dev, nil
}

// Image returns the pebble image, or nil when the device is in memory or
// has not been opened yet
func (c *Container) Image() *storage.Image { return c.image }

// Engine returns the sync engine for the device, keeping its state files
// in state_dir
func (c *Container) Engine() (*sync.Engine, error) {
	if c.engine != nil {
		return c.engine, nil
	}
	dev, err := c.Device()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.cfg.StateDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	c.engine = sync.NewEngine(dev, c.cfg.StateDir, c.log)
	return c.engine, nil
}

// Close releases the device image
func (c *Container) Close() error {
	c.engine = nil
	c.device = nil
	if c.image == nil {
		return nil
	}
	err := c.image.Close()
	c.image = nil
	return err
}
