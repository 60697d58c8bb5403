// Package statusdoc decodes the structured status documents and certificate
// files published by the device's management agent.
//
// Status documents are JSON (.json) or YAML (.yaml, .yml) with two optional
// top-level lists:
//
//	interfaces:
//	  - name: eth0            # required
//	    mac: "52:54:00:12:34:56"
//	    addresses: ["10.0.0.5/24"]
//	    link: up              # up, down, unknown
//	    mtu: 1500
//	    medium: ethernet      # ethernet, wifi, cellular, loopback, other
//	workloads:
//	  - id: 6f1c0d2e          # required
//	    name: nginx
//	    state: running        # required
//	    health: ok            # ok, degraded, error, unknown
//	    version: "1"
//	    error: ""
//	    since: 2026-01-02T15:04:05Z
//
// Unknown fields are ignored. A record with a missing required field or an
// unparseable value is skipped and reported in a RecordErrors; the rest of
// the document still applies. A document that does not parse is rejected.
package statusdoc

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/edgemon/internal/events"
	"github.com/Dicklesworthstone/edgemon/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format is a recognised file format.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatYAML
	FormatPEM
)

// FormatFor picks the decoder from the file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".pem", ".crt", ".cer":
		return FormatPEM
	default:
		return FormatUnknown
	}
}

// Document is the wire shape of a status document.
type Document struct {
	Interfaces []InterfaceRecord `json:"interfaces" yaml:"interfaces"`
	Workloads  []WorkloadRecord  `json:"workloads" yaml:"workloads"`
}

// InterfaceRecord is one interface entry.
type InterfaceRecord struct {
	Name      string   `json:"name" yaml:"name"`
	MAC       string   `json:"mac" yaml:"mac"`
	Addresses []string `json:"addresses" yaml:"addresses"`
	Link      string   `json:"link" yaml:"link"`
	MTU       int      `json:"mtu" yaml:"mtu"`
	Medium    string   `json:"medium" yaml:"medium"`
}

// WorkloadRecord is one workload entry.
type WorkloadRecord struct {
	ID      string    `json:"id" yaml:"id"`
	Name    string    `json:"name" yaml:"name"`
	State   string    `json:"state" yaml:"state"`
	Health  string    `json:"health" yaml:"health"`
	Version string    `json:"version" yaml:"version"`
	Error   string    `json:"error" yaml:"error"`
	Since   time.Time `json:"since" yaml:"since"`
}

// Decode parses data according to the extension of path and returns the
// items it contains. Errors wrap model.ErrMalformedInput. When only some
// records are invalid the error is a RecordErrors and the valid items are
// returned with it.
func Decode(path string, data []byte) ([]events.Item, error) {
	format := FormatFor(path)
	if format != FormatUnknown && len(bytes.TrimSpace(data)) == 0 {
		return nil, malformed(path, errors.New("empty document"))
	}
	switch format {
	case FormatJSON:
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, malformed(path, err)
		}
		return doc.items(path)
	case FormatYAML:
		var doc Document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, malformed(path, err)
		}
		return doc.items(path)
	case FormatPEM:
		return DecodeCertificates(path, data)
	default:
		return nil, malformed(path, errors.New("unsupported file type"))
	}
}

// RecordErrors lists the records Decode skipped. The items returned with it
// are the valid rest of the document.
type RecordErrors []error

func (e RecordErrors) Error() string { return errors.Join(e...).Error() }

func (e RecordErrors) Unwrap() []error { return e }

func malformed(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrMalformedInput, filepath.Base(path), err)
}

func (d Document) items(path string) ([]events.Item, error) {
	items := make([]events.Item, 0, len(d.Interfaces)+len(d.Workloads))
	var skipped RecordErrors
	for i, rec := range d.Interfaces {
		iface, err := rec.toModel()
		if err != nil {
			skipped = append(skipped, malformed(path, fmt.Errorf("interfaces[%d]: %w", i, err)))
			continue
		}
		items = append(items, events.Item{Path: path, Key: iface.Name, Payload: iface})
	}
	for i, rec := range d.Workloads {
		w, err := rec.toModel()
		if err != nil {
			skipped = append(skipped, malformed(path, fmt.Errorf("workloads[%d]: %w", i, err)))
			continue
		}
		items = append(items, events.Item{Path: path, Key: w.ID, Payload: w})
	}
	if len(skipped) > 0 {
		return items, skipped
	}
	return items, nil
}

func (r InterfaceRecord) toModel() (model.Interface, error) {
	iface := model.Interface{
		Name:   strings.TrimSpace(r.Name),
		MAC:    strings.ToLower(r.MAC),
		Link:   model.LinkState(strings.ToLower(r.Link)),
		MTU:    r.MTU,
		Medium: model.Medium(strings.ToLower(r.Medium)),
	}
	if iface.Link == "" {
		iface.Link = model.LinkUnknown
	}
	if iface.Medium == "" {
		iface.Medium = model.MediumOther
	}
	for _, a := range r.Addresses {
		p, err := ParseAddress(a)
		if err != nil {
			return iface, err
		}
		iface.Addresses = append(iface.Addresses, p)
	}
	return iface, iface.Validate()
}

// ParseAddress accepts CIDR notation or a bare address (treated as a host
// route).
func ParseAddress(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("address %q: %w", s, err)
		}
		return p, nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("address %q: %w", s, err)
	}
	return netip.PrefixFrom(a, a.BitLen()), nil
}

func (r WorkloadRecord) toModel() (model.Workload, error) {
	w := model.Workload{
		ID:      strings.TrimSpace(r.ID),
		Name:    r.Name,
		State:   model.WorkloadState(strings.ToLower(r.State)),
		Health:  model.Health(strings.ToLower(r.Health)),
		Version: r.Version,
		Error:   r.Error,
		Since:   r.Since,
	}
	if w.Health == "" {
		w.Health = model.HealthUnknown
	}
	if r.State == "" {
		return w, fmt.Errorf("workload %q: state is required", w.ID)
	}
	return w, w.Validate()
}
