package setup

import (
	"context"
	"fmt"

	"github.com/codalotl/sampleverify/internal/container"
	"github.com/codalotl/sampleverify/internal/output"
)

// Run prepares the container runtime for verification: it checks the runtime is reachable
// and pulls every image that is not present yet (or every image when force is set).
func Run(ctx context.Context, printer *output.Printer, provider container.Provider, images []string, force bool) error {
	if provider == nil {
		return fmt.Errorf("no container provider configured")
	}
	if err := printer.App("Checking container runtime"); err != nil {
		return err
	}
	if err := provider.Available(ctx); err != nil {
		return err
	}
	for _, image := range images {
		if !force {
			present, err := provider.ImageExists(ctx, image)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", image, err)
			}
			if present {
				if err := printer.Appf("Image %s already present", image); err != nil {
					return err
				}
				continue
			}
		}
		if err := printer.Appf("Pulling %s", image); err != nil {
			return err
		}
		if err := provider.Pull(ctx, image); err != nil {
			return fmt.Errorf("pull %s: %w", image, err)
		}
	}
	return printer.App("Setup complete.")
}
