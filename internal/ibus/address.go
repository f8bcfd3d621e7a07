//go:build linux

package ibus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

// ErrNoAddress is returned when the IBus daemon address cannot be found.
var ErrNoAddress = errors.New("ibus address not found")

var machineIDFiles = []string{"/var/lib/dbus/machine-id", "/etc/machine-id"}

// Address returns the address of the running IBus daemon: IBUS_ADDRESS if
// set, otherwise the address recorded in the daemon's bus file.
func Address() (string, error) {
	if addr := os.Getenv("IBUS_ADDRESS"); addr != "" {
		return addr, nil
	}

	machineID, err := readMachineID()
	if err != nil {
		return "", err
	}
	path, err := busFilePath(os.Getenv, machineID)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoAddress, err)
	}
	defer f.Close()

	return parseBusFile(f, processAlive)
}

func readMachineID() (string, error) {
	for _, p := range machineIDFiles {
		data, err := os.ReadFile(p)
		if err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no machine id", ErrNoAddress)
}

// busFilePath returns ~/.config/ibus/bus/<machine-id>-<host>-<display>.
func busFilePath(getenv func(string) string, machineID string) (string, error) {
	host, display := "unix", ""

	if d := getenv("DISPLAY"); d != "" {
		h, rest, ok := strings.Cut(d, ":")
		if !ok {
			return "", fmt.Errorf("%w: bad DISPLAY %q", ErrNoAddress, d)
		}
		if h != "" {
			host = h
		}
		display, _, _ = strings.Cut(rest, ".")
	} else if w := getenv("WAYLAND_DISPLAY"); w != "" {
		display = w
	} else {
		display = "wayland-0"
	}
	if display == "" {
		return "", fmt.Errorf("%w: empty display", ErrNoAddress)
	}

	dir := getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home := getenv("HOME")
		if home == "" {
			return "", fmt.Errorf("%w: no home directory", ErrNoAddress)
		}
		dir = filepath.Join(home, ".config")
	}

	return filepath.Join(dir, "ibus", "bus", machineID+"-"+host+"-"+display), nil
}

// parseBusFile reads IBUS_ADDRESS and IBUS_DAEMON_PID from a bus file.
// The address is rejected when the daemon is gone.
func parseBusFile(r io.Reader, alive func(pid int) bool) (string, error) {
	var addr string
	pid := -1

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "IBUS_ADDRESS":
			addr = value
		case "IBUS_DAEMON_PID":
			if n, err := strconv.Atoi(value); err == nil {
				pid = n
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read bus file: %w", err)
	}

	if addr == "" {
		return "", fmt.Errorf("%w: bus file has no address", ErrNoAddress)
	}
	if pid <= 0 || !alive(pid) {
		return "", fmt.Errorf("%w: daemon %d is not running", ErrNoAddress, pid)
	}
	return addr, nil
}

func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Connect opens a private connection to the IBus daemon at addr.
func Connect(ctx context.Context, addr string) (*dbus.Conn, error) {
	conn, err := dbus.Connect(addr, dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to ibus at %s: %w", addr, err)
	}
	return conn, nil
}
