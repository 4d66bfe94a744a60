// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	cfg.Interface = "eth0"
	cfg.Address = "10.0.0.1"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingInterface(t *testing.T) {
	cfg := Default()
	cfg.Address = "10.0.0.1"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingAddress(t *testing.T) {
	cfg := Default()
	cfg.Interface = "eth0"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadDuration(t *testing.T) {
	cfg := Default()
	cfg.Interface = "eth0"
	cfg.Address = "10.0.0.1"
	cfg.TCPTunables.InitialRTO = "not-a-duration"
	require.Error(t, cfg.Validate())
}

func TestProtocolAddressParsesDottedQuad(t *testing.T) {
	cfg := Default()
	cfg.Address = "192.168.1.42"
	addr, err := cfg.ProtocolAddress()
	require.NoError(t, err)
	require.Equal(t, "192.168.1.42", addr.String())
}

func TestProtocolAddressRejectsGarbage(t *testing.T) {
	cfg := Default()
	cfg.Address = "not-an-address"
	_, err := cfg.ProtocolAddress()
	require.Error(t, err)
}

func TestProtocolAddressRejectsOutOfRangeOctet(t *testing.T) {
	cfg := Default()
	cfg.Address = "10.0.0.300"
	_, err := cfg.ProtocolAddress()
	require.Error(t, err)
}

func TestResolveTCPOverlaysNonDurationFields(t *testing.T) {
	cfg := Default()
	cfg.TCPTunables.MSS = 1400
	cfg.TCPTunables.MaxRetries = 3
	cfg.TCPTunables.KeepAliveEnabled = true

	tcpCfg := cfg.ResolveTCP()
	require.EqualValues(t, 1400, tcpCfg.MSS)
	require.Equal(t, 3, tcpCfg.MaxRetries)
	require.True(t, tcpCfg.KeepAliveEnabled)
}

func TestResolveTCPParsesDurations(t *testing.T) {
	cfg := Default()
	cfg.TCPTunables.InitialRTO = "250ms"
	cfg.TCPTunables.MaxRTO = "30s"
	cfg.TCPTunables.TimeWait = "1m"

	tcpCfg := cfg.ResolveTCP()
	require.Equal(t, 250*time.Millisecond, tcpCfg.InitialRTO)
	require.Equal(t, 30*time.Second, tcpCfg.MaxRTO)
	require.Equal(t, time.Minute, tcpCfg.TimeWait)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "interface: eth1\naddress: 172.16.0.5\nlisten_tcp: [80, 443]\ntcp:\n  mss: 1460\n  initial_rto: 300ms\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "eth1", cfg.Interface)
	require.Equal(t, "172.16.0.5", cfg.Address)
	require.Equal(t, []uint16{80, 443}, cfg.ListenTCP)
	require.EqualValues(t, 1460, cfg.TCPTunables.MSS)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
