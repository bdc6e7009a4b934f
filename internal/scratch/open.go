package scratch

import (
	"context"
	"fmt"

	"github.com/couchcryptid/early-design-app/internal/config"
)

// Open builds the scratch store selected by SCRATCH_DRIVER.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch Driver(cfg.ScratchDriver) {
	case DriverFilesystem:
		return NewFSStore(cfg.ScratchDir)
	case DriverS3:
		return NewS3Store(ctx, S3Config{
			Bucket:    cfg.ScratchS3Bucket,
			Region:    cfg.ScratchS3Region,
			Endpoint:  cfg.ScratchS3Endpoint,
			PathStyle: cfg.ScratchS3PathStyle,
		})
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown scratch driver %q", cfg.ScratchDriver)
	}
}
