// Package netalias implements the network alias manager (C8): it
// enumerates host network interfaces and adds/removes labeled secondary
// IPv4 addresses via the kernel's route-netlink interface, per
// spec.md §4.8.
package netalias

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/vishvananda/netlink"
	"github.com/vuuvv/errors"

	"github.com/Tachiguishi/iec61850-simulator/internal/logging"
)

// InterfaceInfo describes one host network interface, aggregating every
// IPv4 address bound to it, per spec.md §4.8.
type InterfaceInfo struct {
	Name        string
	Description string
	IsUp        bool
	Addresses   []string
}

// MaxLabelLen is the Linux IFNAMSIZ-derived limit on an address label
// (spec.md §3: "truncated to the OS label limit").
const MaxLabelLen = 15

// Label builds the ownership label this daemon stamps on every alias it
// adds, per spec.md §3: "<ifname>:iec<instance_id>", truncated to
// MaxLabelLen.
func Label(ifaceName, instanceID string) string {
	label := fmt.Sprintf("%s:iec%s", ifaceName, instanceID)
	if len(label) > MaxLabelLen {
		label = label[:MaxLabelLen]
	}
	return label
}

// GetNetworkInterfaces enumerates interfaces via the OS interface-
// address API, excluding loopback, per spec.md §4.8.
func GetNetworkInterfaces() ([]InterfaceInfo, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, errors.Wrap(err, "list interfaces")
	}

	infos := make([]InterfaceInfo, 0, len(ifaces))
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			logging.Warn(errors.Wrapf(err, "addresses for interface %q", iface.Name))
			continue
		}

		info := InterfaceInfo{
			Name:        iface.Name,
			Description: iface.Name,
			IsUp:        iface.Flags&net.FlagUp != 0,
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ipv4 := ipNet.IP.To4(); ipv4 != nil {
				info.Addresses = append(info.Addresses, ipv4.String())
			}
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// isNoOpAddress reports whether ip is one add_ip_address/remove_ip_address
// must silently no-op for, per spec.md §4.8.
func isNoOpAddress(ip string) bool {
	return ip == "0.0.0.0" || strings.HasPrefix(ip, "127.")
}

// AddIPAddress binds ip/prefixLen to iface labeled label via route-
// netlink, per spec.md §4.8. It returns true on success, on the
// wildcard/loopback no-op, and on an "already exists" failure (logged
// as a warning); it returns false only on other failures.
func AddIPAddress(iface, ip string, prefixLen int, label string) bool {
	if isNoOpAddress(ip) {
		return true
	}

	link, err := netlink.LinkByName(iface)
	if err != nil {
		logging.Warn(errors.Wrapf(err, "resolve interface %q", iface))
		return false
	}

	addr, err := netlink.ParseAddr(fmt.Sprintf("%s/%d", ip, prefixLen))
	if err != nil {
		logging.Warn(errors.Wrapf(err, "parse address %s/%d", ip, prefixLen))
		return false
	}
	if label != "" {
		addr.Label = label
	}

	if err := netlink.AddrAdd(link, addr); err != nil {
		if isExistsErr(err) {
			logging.Warn(errors.Wrapf(err, "address %s already present on %q", ip, iface))
			return true
		}
		logging.Warn(errors.Wrapf(err, "add address %s to %q", ip, iface))
		return false
	}
	return true
}

// RemoveIPAddress removes ip/prefixLen from iface, symmetric with
// AddIPAddress: tolerates "address not found" as success.
func RemoveIPAddress(iface, ip string, prefixLen int) bool {
	if isNoOpAddress(ip) {
		return true
	}

	link, err := netlink.LinkByName(iface)
	if err != nil {
		logging.Warn(errors.Wrapf(err, "resolve interface %q", iface))
		return false
	}

	addr, err := netlink.ParseAddr(fmt.Sprintf("%s/%d", ip, prefixLen))
	if err != nil {
		logging.Warn(errors.Wrapf(err, "parse address %s/%d", ip, prefixLen))
		return false
	}

	if err := netlink.AddrDel(link, addr); err != nil {
		if isNotFoundErr(err) {
			logging.Warn(errors.Wrapf(err, "address %s already absent on %q", ip, iface))
			return true
		}
		logging.Warn(errors.Wrapf(err, "remove address %s from %q", ip, iface))
		return false
	}
	return true
}

// RemoveByLabel walks iface's address cache and removes every address
// whose label equals label, per spec.md §4.8's bulk-removal-by-label
// contract. Individual removal failures are
// logged but never fail the overall call.
func RemoveByLabel(iface, label string) bool {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		logging.Warn(errors.Wrapf(err, "resolve interface %q", iface))
		return true
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		logging.Warn(errors.Wrapf(err, "list addresses on %q", iface))
		return true
	}

	for _, addr := range addrs {
		if addr.Label != label {
			continue
		}
		a := addr
		if err := netlink.AddrDel(link, &a); err != nil {
			logging.Warn(errors.Wrapf(err, "remove labeled address %s from %q", a.IP, iface))
		}
	}
	return true
}

func isExistsErr(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "exist")
}

func isNotFoundErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no such") || strings.Contains(msg, "cannot assign")
}
