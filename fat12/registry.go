package fat12

import (
	"sync"

	"github.com/fat12img/fat12img/blockdev"
	fatErrors "github.com/fat12img/fat12img/errors"
)

// Driver is the typed registry's vtable substitute: the small set of
// entry points a filesystem implementation must provide to be mountable
// by name. spec.md allows either a literal function-pointer vtable or a
// strongly-typed stand-in; this repo takes the latter, the way disko's
// DriverImplementation registry does it.
type Driver interface {
	Format(dev *blockdev.Device, opts FormatOptions) error
	Mount(dev *blockdev.Device) (*FileSystem, error)
}

type fat12Driver struct{}

func (fat12Driver) Format(dev *blockdev.Device, opts FormatOptions) error {
	return Format(dev, opts)
}

func (fat12Driver) Mount(dev *blockdev.Device) (*FileSystem, error) {
	return Mount(dev)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Driver{}
)

func init() {
	Register("FAT12", fat12Driver{})
}

// Register makes a Driver available under a type name, e.g. "FAT12".
func Register(name string, driver Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = driver
}

// Open looks up a registered Driver by type name and mounts dev with it.
func Open(name string, dev *blockdev.Device) (*FileSystem, error) {
	registryMu.RLock()
	driver, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fatErrors.ErrInvalidArg.WithMessage("no filesystem driver registered as " + name)
	}
	return driver.Mount(dev)
}
