package client

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
)

var (
	hwidOnce sync.Once
	hwid     string
)

// MachineHWID returns a stable identifier for this machine: the SHA-256 hex
// digest of host facts (architecture, machine id or hostname, first hardware
// address). The value is computed once per process.
func MachineHWID() string {
	hwidOnce.Do(func() {
		hwid = HashComponents(hostComponents()...)
	})
	return hwid
}

// HashComponents concatenates the non-empty components and returns the
// lowercase hex SHA-256 of the result.
func HashComponents(components ...string) string {
	var b strings.Builder
	for _, c := range components {
		b.WriteString(c)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func hostComponents() []string {
	return []string{runtime.GOARCH, machineID(), hardwareAddr()}
}

func machineID() string {
	for _, p := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if b, err := os.ReadFile(p); err == nil {
			if id := strings.TrimSpace(string(b)); id != "" {
				return id
			}
		}
	}
	name, _ := os.Hostname()
	return name
}

func hardwareAddr() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr.String()
	}
	return ""
}
