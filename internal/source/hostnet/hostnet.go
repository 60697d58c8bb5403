// Package hostnet polls the operating system's network interfaces and reads
// the device summary shown in the header.
package hostnet

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	gnet "github.com/shirou/gopsutil/v4/net"

	"github.com/Dicklesworthstone/edgemon/internal/events"
	"github.com/Dicklesworthstone/edgemon/internal/model"
	"github.com/Dicklesworthstone/edgemon/internal/source/statusdoc"
)

// Name is the source name used for ownership and health.
const Name = "host"

// Kinds are the entity kinds this source owns.
var Kinds = []model.Kind{model.KindInterface}

// Lister returns the current interfaces.
type Lister func(ctx context.Context) (gnet.InterfaceStatList, error)

// Source polls interfaces on an interval.
type Source struct {
	interval time.Duration
	list     Lister
}

// New creates a poller. A nil lister uses gopsutil.
func New(interval time.Duration, list Lister) *Source {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if list == nil {
		list = gnet.InterfacesWithContext
	}
	return &Source{interval: interval, list: list}
}

// Name implements resilience.Source.
func (s *Source) Name() string { return Name }

// Run emits one resync per poll until ctx is cancelled or a poll fails.
func (s *Source) Run(ctx context.Context, emit events.Emitter) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		items, err := s.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("listing interfaces: %w", err)
		}
		emit(events.Resync(Name, Kinds, items))

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll reads every interface once.
func (s *Source) Poll(ctx context.Context) ([]events.Item, error) {
	list, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]events.Item, 0, len(list))
	for _, st := range list {
		iface := Convert(st)
		if iface.Name == "" {
			continue
		}
		items = append(items, events.Item{Key: iface.Name, Scope: Name, Payload: iface})
	}
	return items, nil
}

// Convert maps a gopsutil interface onto the model. Addresses that do not
// parse are dropped.
func Convert(st gnet.InterfaceStat) model.Interface {
	iface := model.Interface{
		Name:   st.Name,
		MAC:    strings.ToLower(st.HardwareAddr),
		MTU:    st.MTU,
		Flags:  st.Flags,
		Link:   model.LinkDown,
		Medium: MediumFor(st.Name, st.Flags),
	}
	for _, f := range st.Flags {
		if f == "up" {
			iface.Link = model.LinkUp
			break
		}
	}
	for _, a := range st.Addrs {
		p, err := statusdoc.ParseAddress(a.Addr)
		if err != nil {
			log.Printf("[hostnet] %s: %v", st.Name, err)
			continue
		}
		iface.Addresses = append(iface.Addresses, p)
	}
	return iface
}

// MediumFor guesses the medium from the loopback flag and common Linux
// interface name prefixes.
func MediumFor(name string, flags []string) model.Medium {
	for _, f := range flags {
		if f == "loopback" {
			return model.MediumLoopback
		}
	}
	switch {
	case strings.HasPrefix(name, "wl"), strings.HasPrefix(name, "ath"):
		return model.MediumWiFi
	case strings.HasPrefix(name, "wwan"), strings.HasPrefix(name, "ppp"), strings.HasPrefix(name, "rmnet"):
		return model.MediumCellular
	case strings.HasPrefix(name, "eth"), strings.HasPrefix(name, "en"):
		return model.MediumEthernet
	default:
		return model.MediumOther
	}
}

// Summary describes the device in the header.
type Summary struct {
	Hostname string
	OS       string
	Platform string
	Kernel   string
	Arch     string
	BootTime time.Time
}

// ReadSummary reads the host summary once.
func ReadSummary(ctx context.Context) (Summary, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return Summary{}, err
	}
	return summaryFrom(info), nil
}

func summaryFrom(info *host.InfoStat) Summary {
	s := Summary{
		Hostname: info.Hostname,
		OS:       info.OS,
		Platform: strings.TrimSpace(info.Platform + " " + info.PlatformVersion),
		Kernel:   info.KernelVersion,
		Arch:     info.KernelArch,
	}
	if info.BootTime > 0 {
		s.BootTime = time.Unix(int64(info.BootTime), 0)
	}
	return s
}

// Uptime is the time since boot, zero when unknown.
func (s Summary) Uptime(now time.Time) time.Duration {
	if s.BootTime.IsZero() {
		return 0
	}
	return now.Sub(s.BootTime)
}
