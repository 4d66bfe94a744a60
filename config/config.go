// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the YAML-backed configuration for the netstackd
// daemon: which interface to bind, what address to assign it, and the TCP
// tunables of spec.md §6. Grounded on
// _examples/tinyrange-cc/cmd/ccapp/site_config.go's yaml.Unmarshal-plus-
// defaults loader, adapted from an optional desktop-app override file to a
// required daemon config.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coolheart77/netstack/tcp"
	"github.com/coolheart77/netstack/tcpip"
)

// TCPConfig mirrors tcp.Config with YAML tags and string durations, the
// on-disk shape; Config.ResolveTCP converts it to a tcp.Config.
type TCPConfig struct {
	MSS uint16 `yaml:"mss"`

	InitialRTO string `yaml:"initial_rto"`
	MaxRTO     string `yaml:"max_rto"`
	MaxRetries int    `yaml:"max_retries"`

	TimeWait   string `yaml:"time_wait"`
	DelayedACK string `yaml:"delayed_ack"`

	KeepAliveEnabled  bool   `yaml:"keepalive_enabled"`
	KeepAliveIdle     string `yaml:"keepalive_idle"`
	KeepAliveInterval string `yaml:"keepalive_interval"`
	KeepAliveCount    int    `yaml:"keepalive_count"`

	SendBufferSize int `yaml:"send_buffer_size"`
	RecvBufferSize int `yaml:"recv_buffer_size"`

	ARPWaitTimeout string `yaml:"arp_wait_timeout"`
}

// Config is the top-level on-disk shape of netstackd's configuration file.
type Config struct {
	Interface   string    `yaml:"interface"`
	Address     string    `yaml:"address"` // dotted-quad IPv4 address to assign the interface
	LogLevel    string    `yaml:"log_level"`
	ListenTCP   []uint16  `yaml:"listen_tcp"`
	TCPTunables TCPConfig `yaml:"tcp"`
}

// Default returns a Config with the same out-of-the-box tunables as
// tcp.DefaultConfig, rendered as their YAML string form.
func Default() Config {
	d := tcp.DefaultConfig()
	return Config{
		LogLevel: "info",
		TCPTunables: TCPConfig{
			MSS:               d.MSS,
			InitialRTO:        d.InitialRTO.String(),
			MaxRTO:            d.MaxRTO.String(),
			MaxRetries:        d.MaxRetries,
			TimeWait:          d.TimeWait.String(),
			DelayedACK:        d.DelayedACK.String(),
			KeepAliveEnabled:  d.KeepAliveEnabled,
			KeepAliveIdle:     d.KeepAliveIdle.String(),
			KeepAliveInterval: d.KeepAliveInterval.String(),
			KeepAliveCount:    d.KeepAliveCount,
			SendBufferSize:    d.SendBufferSize,
			RecvBufferSize:    d.RecvBufferSize,
			ARPWaitTimeout:    d.ARPWaitTimeout.String(),
		},
	}
}

// Load reads and parses a YAML config file, starting from Default and
// overlaying whatever the file sets.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the fields required to bind an interface and start
// the stack are present and well-formed.
func (c Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("config: interface must not be empty")
	}
	if c.Address == "" {
		return fmt.Errorf("config: address must not be empty")
	}
	if _, err := c.TCPTunables.resolve(); err != nil {
		return fmt.Errorf("config: tcp: %w", err)
	}
	return nil
}

// ProtocolAddress parses Address into a tagged IPv4 tcpip.Address.
func (c Config) ProtocolAddress() (tcpip.Address, error) {
	b, err := parseIPv4(c.Address)
	if err != nil {
		return tcpip.Address{}, fmt.Errorf("config: address %q: %w", c.Address, err)
	}
	return tcpip.NewAddress(tcpip.IPv4ProtocolNumber, b), nil
}

func parseIPv4(s string) ([]byte, error) {
	var a, b, cc, d int
	n, err := fmt.Sscanf(s, "%d.%d.%d.%d", &a, &b, &cc, &d)
	if err != nil || n != 4 {
		return nil, fmt.Errorf("not a dotted-quad IPv4 address")
	}
	for _, octet := range []int{a, b, cc, d} {
		if octet < 0 || octet > 255 {
			return nil, fmt.Errorf("octet %d out of range", octet)
		}
	}
	return []byte{byte(a), byte(b), byte(cc), byte(d)}, nil
}

// ResolveTCP converts the on-disk TCPConfig into a tcp.Config, per spec.md
// §6's tunables. If any duration field fails to parse, the whole result is
// tcp.DefaultConfig(), the other fields included; Validate reports that
// case as an error.
func (c Config) ResolveTCP() tcp.Config {
	cfg, _ := c.TCPTunables.resolve()
	return cfg
}

func (t TCPConfig) resolve() (tcp.Config, error) {
	d := tcp.DefaultConfig()
	cfg := d
	cfg.MSS = t.MSS
	cfg.MaxRetries = t.MaxRetries
	cfg.KeepAliveEnabled = t.KeepAliveEnabled
	cfg.KeepAliveCount = t.KeepAliveCount
	cfg.SendBufferSize = t.SendBufferSize
	cfg.RecvBufferSize = t.RecvBufferSize

	durations := []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"initial_rto", t.InitialRTO, &cfg.InitialRTO},
		{"max_rto", t.MaxRTO, &cfg.MaxRTO},
		{"time_wait", t.TimeWait, &cfg.TimeWait},
		{"delayed_ack", t.DelayedACK, &cfg.DelayedACK},
		{"keepalive_idle", t.KeepAliveIdle, &cfg.KeepAliveIdle},
		{"keepalive_interval", t.KeepAliveInterval, &cfg.KeepAliveInterval},
		{"arp_wait_timeout", t.ARPWaitTimeout, &cfg.ARPWaitTimeout},
	}
	for _, f := range durations {
		if f.src == "" {
			continue
		}
		v, err := time.ParseDuration(f.src)
		if err != nil {
			return d, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return cfg, nil
}
