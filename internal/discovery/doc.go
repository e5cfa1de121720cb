// Package discovery provides mDNS-based discovery of modbusreader services.
//
// The configuration service advertises itself as "_modbusreader._tcp" with
// TXT records carrying the reader serial number, product code and REST base
// path. The console browses for that service type to find readers without
// knowing their address.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	scanner.Timeout = 3 * time.Second
//	devices, err := scanner.ScanForDevices(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range devices {
//	    fmt.Printf("Found: %s (%s)\n", d, d.BaseURL())
//	}
//
// On the service side:
//
//	adv, err := discovery.Advertise("modbusreader-315260240", 8080,
//	    discovery.BuildTXT("315260240", "Ha-VIS RF-R350", deviceconfig.APIPrefix))
//	defer adv.Shutdown()
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Services must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
