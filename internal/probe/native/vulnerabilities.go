package native

import (
	"context"
	"fmt"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/probe"
)

// The attack checks send malformed or out-of-order records, which crypto/tls
// cannot produce. Use the sslyze backend for them.

func (p *Prober) Heartbleed(context.Context, probe.Target) (bool, error) {
	return false, notTestable("heartbleed")
}

func (p *Prober) CCSInjection(context.Context, probe.Target) (bool, error) {
	return false, notTestable("openssl ccs injection")
}

func (p *Prober) Robot(context.Context, probe.Target) (observation.RobotVerdict, error) {
	return observation.RobotUnknown, notTestable("robot")
}

func notTestable(check string) error {
	return fmt.Errorf("%w: %s requires raw record crafting", probe.ErrNotTestable, check)
}
