// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"net/netip"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/Thermoquad/webastostat/pkg/connection"
	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// maxDiscoveryHosts bounds a scan to a /22
const maxDiscoveryHosts = 1024

var (
	discoverySubnet  string
	discoveryTimeout int
	discoveryWorkers int
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Find controllers on a local subnet",
	Long: `Probe every address in a subnet for a controller listening on port 81.

Each address gets a short WebSocket probe (see 'probe'). Hosts that accept the
session are listed, along with their reply to GET_SETTINGS when they send one.

The default subnet is the controller's own access point network, which is
what a phone or laptop joins before the controller has Wi-Fi credentials.

Examples:
  # Scan the access point network
  webastostat discovery

  # Scan a home network
  webastostat discovery --subnet 192.168.1.0/24 --timeout 2

Exit codes:
  0 - Discovery successful (at least one controller found)
  1 - Discovery failed (no controllers)
  2 - Invalid subnet`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().StringVar(&discoverySubnet, "subnet", "192.168.4.0/24", "Subnet to scan (CIDR)")
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 1, "Timeout in seconds per address")
	discoveryCmd.Flags().IntVar(&discoveryWorkers, "workers", 32, "Addresses probed concurrently")
}

type discoveredDevice struct {
	addr  netip.Addr
	reply string
	rtt   time.Duration
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	hosts, err := subnetHosts(discoverySubnet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid subnet: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Webastostat - Controller Discovery\n")
	fmt.Printf("Subnet: %s (%d addresses)\n", discoverySubnet, len(hosts))
	fmt.Printf("Timeout: %d seconds per address\n\n", discoveryTimeout)

	timeout := time.Duration(discoveryTimeout) * time.Second
	opts := connection.ProbeOptions{ConnectTimeout: timeout, ReplyTimeout: timeout}

	var (
		mu      sync.Mutex
		devices []discoveredDevice
	)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(discoveryWorkers, 1))
	for _, addr := range hosts {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result, err := connection.Probe(ctx, addr.String(), opts)
			if err != nil {
				logger.WithError(err).WithField("addr", addr).Debug("No controller")
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			devices = append(devices, discoveredDevice{addr: addr, reply: result.Reply, rtt: result.RTT})
			fmt.Printf("Controller found: %s\n", connection.URL(addr.String()))
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(devices, func(a, b discoveredDevice) int { return a.addr.Compare(b.addr) })

	// Summary
	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Controllers found: %d\n", len(devices))
	for _, d := range devices {
		reply := "(no reply)"
		if d.reply != "" {
			reply = webasto.Abbreviate(d.reply, 50)
		}
		fmt.Printf("  %-15s rtt=%-8v %s\n", d.addr, d.rtt.Round(time.Millisecond), reply)
	}

	if len(devices) == 0 {
		fmt.Printf("No controllers discovered. Check the subnet and that the heater is powered.\n")
		os.Exit(1)
	}

	return nil
}

// subnetHosts lists the host addresses of an IPv4 prefix, skipping the
// network and broadcast addresses when the prefix has them
func subnetHosts(cidr string) ([]netip.Addr, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, err
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("%s: only IPv4 subnets are supported", cidr)
	}
	prefix = prefix.Masked()

	bits := 32 - prefix.Bits()
	if bits > 10 {
		return nil, fmt.Errorf("%s: more than %d addresses", cidr, maxDiscoveryHosts)
	}
	size := 1 << bits

	hosts := make([]netip.Addr, 0, size)
	addr := prefix.Addr()
	for i := 0; i < size; i++ {
		if size <= 2 || (i > 0 && i < size-1) {
			hosts = append(hosts, addr)
		}
		addr = addr.Next()
	}
	return hosts, nil
}
