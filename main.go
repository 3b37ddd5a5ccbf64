package main

import (
	"TaxiGovExplorer/src/config"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Sends SIGHUP to a running explorer so it reopens its log file after
// external rotation. -stop sends SIGTERM instead.
func main() {
	configDir := flag.String("config", "./config", "config folder")
	stop := flag.Bool("stop", false, "stop the explorer instead of reopening its log")
	flag.Parse()

	cfg, _, err := config.LoadConfig(*configDir, "config.json", "dataconfig.json")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	pid, err := readPid(cfg.PidFile)
	if err != nil {
		log.Fatal("Failed to read pid file:", err)
	}

	sig := syscall.SIGHUP
	if *stop {
		sig = syscall.SIGTERM
	}
	if err := syscall.Kill(pid, sig); err != nil {
		log.Fatal("Failed to send "+sig.String()+":", err)
	}
	fmt.Printf("sent %s to %d\n", sig, pid)
}

func readPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s: %q", path, data)
	}
	return pid, nil
}
