package hardware

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const defaultProcfsRoot = "/proc"

// readMeminfo parses MemTotal and MemAvailable (kB) from <root>/meminfo
// and returns both in MB.
func readMeminfo(root string) (totalMB, availableMB int, err error) {
	f, err := os.Open(root + "/meminfo")
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	var totalKB, availKB int64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			totalKB = parseMeminfoKB(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			availKB = parseMeminfoKB(line)
		}
		if totalKB > 0 && availKB > 0 {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return 0, 0, err
	}
	if totalKB == 0 {
		return 0, 0, fmt.Errorf("meminfo: MemTotal not found")
	}
	return int(totalKB / 1024), int(availKB / 1024), nil
}

func parseMeminfoKB(line string) int64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
