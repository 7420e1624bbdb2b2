package host

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
)

const (
	HumanDelayOff     = "off"
	HumanDelayNatural = "natural"
	HumanDelayCustom  = "custom"

	naturalMinDelay = 800 * time.Millisecond
	naturalMaxDelay = 2500 * time.Millisecond
)

func ResolveHumanDelayConfig(cfg *config.HostConfig, agentID string) dto.HumanDelay {
	if cfg == nil {
		return dto.HumanDelay{Mode: HumanDelayOff}
	}
	delay := cfg.Agent.HumanDelay

	switch strings.ToLower(strings.TrimSpace(delay.Mode)) {
	case HumanDelayNatural:
		return dto.HumanDelay{Mode: HumanDelayNatural, Min: naturalMinDelay, Max: naturalMaxDelay}
	case HumanDelayCustom:
		minDelay := time.Duration(delay.MinMs) * time.Millisecond
		maxDelay := time.Duration(delay.MaxMs) * time.Millisecond
		if minDelay <= 0 {
			minDelay = naturalMinDelay
		}
		if maxDelay < minDelay {
			maxDelay = minDelay
		}
		return dto.HumanDelay{Mode: HumanDelayCustom, Min: minDelay, Max: maxDelay}
	default:
		return dto.HumanDelay{Mode: HumanDelayOff}
	}
}

func pickDelay(delay dto.HumanDelay) time.Duration {
	if delay.Mode == "" || delay.Mode == HumanDelayOff || delay.Max <= 0 {
		return 0
	}
	if delay.Max <= delay.Min {
		return delay.Min
	}
	return delay.Min + rand.N(delay.Max-delay.Min+1)
}
