// Package sysinfo provides host and backend detection used by diagnostics.
package sysinfo

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Platform returns the host as "os/arch".
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// MemoryGB returns total system RAM in GB, or 0 if detection fails.
// Only Linux is supported; voice devices are Linux boards.
func MemoryGB() int {
	if runtime.GOOS != "linux" {
		return 0
	}
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}
	return parseMemTotal(string(data))
}

func parseMemTotal(meminfo string) int {
	for _, line := range strings.Split(meminfo, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			kb, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return 0
			}
			return int(kb / (1024 * 1024))
		}
	}
	return 0
}

// Reachable checks that something answers HTTP at url within two seconds.
// Any status counts; only connection failures are reported.
func Reachable(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("bad url %q: %w", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
