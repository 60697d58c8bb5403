package model

import (
	"errors"
	"fmt"
	"net/netip"
	"time"
)

// LinkState is the carrier state of an interface.
type LinkState string

const (
	LinkUnknown LinkState = "unknown"
	LinkUp      LinkState = "up"
	LinkDown    LinkState = "down"
)

// Medium is the physical interface type.
type Medium string

const (
	MediumEthernet Medium = "ethernet"
	MediumWiFi     Medium = "wifi"
	MediumCellular Medium = "cellular"
	MediumLoopback Medium = "loopback"
	MediumOther    Medium = "other"
)

// Interface is a network interface.
type Interface struct {
	Name      string
	MAC       string
	Addresses []netip.Prefix
	Link      LinkState
	MTU       int
	Medium    Medium
	Flags     []string
}

func (Interface) Kind() Kind { return KindInterface }

// Validate checks required fields.
func (i Interface) Validate() error {
	if i.Name == "" {
		return errors.New("interface: name is required")
	}
	switch i.Link {
	case LinkUnknown, LinkUp, LinkDown:
	default:
		return fmt.Errorf("interface %s: unknown link state %q", i.Name, i.Link)
	}
	return nil
}

// WorkloadState is the lifecycle state of an application instance.
type WorkloadState string

// Workload states in lifecycle order.
const (
	StateInitial       WorkloadState = "initial"
	StateResolvingTag  WorkloadState = "resolving_tag"
	StateResolvedTag   WorkloadState = "resolved_tag"
	StateDownloading   WorkloadState = "downloading"
	StateDownloaded    WorkloadState = "downloaded"
	StateVerifying     WorkloadState = "verifying"
	StateVerified      WorkloadState = "verified"
	StateLoading       WorkloadState = "loading"
	StateLoaded        WorkloadState = "loaded"
	StateCreatingVol   WorkloadState = "creating_volume"
	StateCreatedVol    WorkloadState = "created_volume"
	StateInstalled     WorkloadState = "installed"
	StateAwaitNetwork  WorkloadState = "await_network"
	StateStartDelayed  WorkloadState = "start_delayed"
	StateBooting       WorkloadState = "booting"
	StateRunning       WorkloadState = "running"
	StatePausing       WorkloadState = "pausing"
	StatePaused        WorkloadState = "paused"
	StateHalting       WorkloadState = "halting"
	StateHalted        WorkloadState = "halted"
	StateBroken        WorkloadState = "broken"
	StateUnknown       WorkloadState = "unknown"
	StatePending       WorkloadState = "pending"
	StateScheduling    WorkloadState = "scheduling"
	StateFailed        WorkloadState = "failed"
)

var workloadStates = map[WorkloadState]bool{
	StateInitial: true, StateResolvingTag: true, StateResolvedTag: true,
	StateDownloading: true, StateDownloaded: true, StateVerifying: true,
	StateVerified: true, StateLoading: true, StateLoaded: true,
	StateCreatingVol: true, StateCreatedVol: true, StateInstalled: true,
	StateAwaitNetwork: true, StateStartDelayed: true, StateBooting: true,
	StateRunning: true, StatePausing: true, StatePaused: true,
	StateHalting: true, StateHalted: true, StateBroken: true,
	StateUnknown: true, StatePending: true, StateScheduling: true,
	StateFailed: true,
}

// Known reports whether s is a recognised state.
func (s WorkloadState) Known() bool {
	return workloadStates[s]
}

// Severity groups states for display.
func (s WorkloadState) Severity() Severity {
	switch s {
	case StateRunning:
		return SevInfo
	case StateBroken, StateFailed:
		return SevErr
	case StateHalted, StateHalting, StateUnknown, StatePaused:
		return SevWarning
	default:
		return SevNotice
	}
}

// Health is a workload health summary.
type Health string

const (
	HealthUnknown  Health = "unknown"
	HealthOK       Health = "ok"
	HealthDegraded Health = "degraded"
	HealthError    Health = "error"
)

// Workload is a running application instance.
type Workload struct {
	ID      string
	Name    string
	State   WorkloadState
	Health  Health
	Version string
	Error   string
	Since   time.Time
}

func (Workload) Kind() Kind { return KindWorkload }

// Validate checks required fields.
func (w Workload) Validate() error {
	if w.ID == "" {
		return errors.New("workload: id is required")
	}
	if !w.State.Known() {
		return fmt.Errorf("workload %s: unknown state %q", w.ID, w.State)
	}
	switch w.Health {
	case HealthUnknown, HealthOK, HealthDegraded, HealthError:
	default:
		return fmt.Errorf("workload %s: unknown health %q", w.ID, w.Health)
	}
	return nil
}

// Certificate is an X.509 certificate found on disk.
type Certificate struct {
	Fingerprint string
	Path        string
	Subject     string
	Issuer      string
	Serial      string
	NotBefore   time.Time
	NotAfter    time.Time
	DNSNames    []string
	IsCA        bool
}

func (Certificate) Kind() Kind { return KindCertificate }

// Validate checks required fields.
func (c Certificate) Validate() error {
	if c.Fingerprint == "" {
		return errors.New("certificate: fingerprint is required")
	}
	if c.NotAfter.IsZero() {
		return fmt.Errorf("certificate %s: expiry is required", c.Fingerprint)
	}
	return nil
}

// Expired reports whether the certificate is outside its validity window.
func (c Certificate) Expired(now time.Time) bool {
	return now.After(c.NotAfter) || (!c.NotBefore.IsZero() && now.Before(c.NotBefore))
}

// Severity is a syslog severity level.
type Severity uint8

const (
	SevEmerg Severity = iota
	SevAlert
	SevCrit
	SevErr
	SevWarning
	SevNotice
	SevInfo
	SevDebug
)

var severityNames = [...]string{"emerg", "alert", "crit", "err", "warn", "notice", "info", "debug"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("sev(%d)", uint8(s))
}

// Origin says where a diagnostic came from.
type Origin string

const (
	OriginKernel  Origin = "kernel"
	OriginMonitor Origin = "monitor"
)

// Diagnostic is one kernel or monitor log record.
type Diagnostic struct {
	Seq       uint64
	Origin    Origin
	Facility  uint8
	Severity  Severity
	Timestamp time.Duration // kernel monotonic time, zero if unknown
	Time      time.Time     // wall clock when received
	Message   string
	Unparsed  bool // Message is raw text that did not match a known format
}

func (Diagnostic) Kind() Kind { return KindDiagnostic }

// Validate checks required fields.
func (d Diagnostic) Validate() error {
	if d.Origin == "" {
		return errors.New("diagnostic: origin is required")
	}
	if d.Severity > SevDebug {
		return fmt.Errorf("diagnostic: bad severity %d", d.Severity)
	}
	return nil
}

// Key returns the canonical diagnostic key. Unparsed records are numbered
// apart from the origin's own sequence and keyed under "<origin>/unparsed".
func (d Diagnostic) Key() string {
	if d.Unparsed {
		return fmt.Sprintf("%s/unparsed/%020d", d.Origin, d.Seq)
	}
	return fmt.Sprintf("%s/%020d", d.Origin, d.Seq)
}

// SourceState is the supervisor view of a source.
type SourceState string

const (
	SourceStarting  SourceState = "starting"
	SourceOK        SourceState = "ok"
	SourceRetrying  SourceState = "retrying"
	SourceResyncing SourceState = "resyncing"
	SourceDegraded  SourceState = "degraded"
	SourceStopped   SourceState = "stopped"
)

// SourceHealth reports the state of one source watcher.
type SourceHealth struct {
	Name      string
	State     SourceState
	Attempts  int
	LastError string
	Since     time.Time
}

func (SourceHealth) Kind() Kind { return KindSource }

// Validate checks required fields.
func (s SourceHealth) Validate() error {
	if s.Name == "" {
		return errors.New("source: name is required")
	}
	switch s.State {
	case SourceStarting, SourceOK, SourceRetrying, SourceResyncing, SourceDegraded, SourceStopped:
	default:
		return fmt.Errorf("source %s: unknown state %q", s.Name, s.State)
	}
	return nil
}
