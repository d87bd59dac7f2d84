package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/msageha/ookd/internal/config"
	"github.com/msageha/ookd/internal/daemon"
	"github.com/msageha/ookd/internal/picode"
	"github.com/msageha/ookd/internal/server"
	"github.com/msageha/ookd/internal/setup"
	"github.com/msageha/ookd/internal/txctl"
)

const version = "1.0.0"

const defaultConfigPath = "/etc/ookd/config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "init":
		runInit(os.Args[2:])
	case "send":
		runSend(os.Args[2:])
	case "check":
		runCheck(os.Args[2:])
	case "scan":
		runScan(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "version":
		fmt.Printf("ookd %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	var configPath string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configPath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: ookd serve [--config <path>]\n", args[i])
			os.Exit(1)
		}
	}

	cfg, path, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	d := daemon.New(path, cfg)
	if err := d.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "ookd: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) {
	var path string
	var force bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--force":
			force = true
		default:
			if strings.HasPrefix(args[i], "-") {
				fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: ookd init [--force] [path]\n", args[i])
				os.Exit(1)
			}
			if path != "" {
				fmt.Fprintln(os.Stderr, "usage: ookd init [--force] [path]")
				os.Exit(1)
			}
			path = args[i]
		}
	}
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := setup.Run(path, force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Initialized %s (driver %s, gpio %d, logs %s)\n",
		path, cfg.Driver.Kind, cfg.TX.Channel, cfg.Logging.Dir)
}

func runSend(args []string) {
	var configPath, socket, addr string
	var texts []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configPath = args[i]
		case "--socket":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--socket requires a value")
				os.Exit(1)
			}
			i++
			socket = args[i]
		case "--addr":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--addr requires a value")
				os.Exit(1)
			}
			i++
			addr = args[i]
		default:
			if strings.HasPrefix(args[i], "-") {
				fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: ookd send [--socket <path> | --addr <host:port>] <picode>...\n", args[i])
				os.Exit(1)
			}
			texts = append(texts, args[i])
		}
	}
	if len(texts) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ookd send [--socket <path> | --addr <host:port>] <picode>...")
		os.Exit(1)
	}

	base, client := apiTarget(configPath, socket, addr)
	for _, text := range texts {
		resp, err := client.Get(base + "/picode?picode=" + url.QueryEscape(text))
		if err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			os.Exit(1)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			fmt.Fprint(os.Stderr, string(body))
			os.Exit(1)
		}
		fmt.Print(string(body))
	}
}

func runCheck(args []string) {
	channel := config.Default().TX.Channel
	var texts []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--channel":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--channel requires a value")
				os.Exit(1)
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid --channel value: %s\n", args[i])
				os.Exit(1)
			}
			channel = n
		default:
			if strings.HasPrefix(args[i], "-") {
				fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: ookd check [--channel <gpio>] <picode>...\n", args[i])
				os.Exit(1)
			}
			texts = append(texts, args[i])
		}
	}
	if len(texts) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ookd check [--channel <gpio>] <picode>...")
		os.Exit(1)
	}

	failed := false
	for _, text := range texts {
		cmd, err := picode.Decode(text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", text, err)
			failed = true
			continue
		}
		train, err := picode.Compile(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", text, err)
			failed = true
			continue
		}
		repeats := cmd.Repeats
		if repeats == 0 {
			repeats = picode.DefaultRepeats
		}
		if err := txctl.Validate(channel, train, repeats); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", text, err)
			failed = true
			continue
		}
		if cmd.Seconds > 0 {
			fmt.Printf("%s: %d pulses, timed %ds\n", cmd, len(train), cmd.Seconds)
		} else {
			fmt.Printf("%s: %d pulses x%d, %s\n", cmd, len(train), repeats,
				train.Duration()*time.Duration(repeats))
		}
	}
	if failed {
		os.Exit(1)
	}
}

func runScan(args []string) {
	var path string

	for _, a := range args {
		if strings.HasPrefix(a, "-") && a != "-" {
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: ookd scan [file]\n", a)
			os.Exit(1)
		}
		if path != "" {
			fmt.Fprintln(os.Stderr, "usage: ookd scan [file]")
			os.Exit(1)
		}
		path = a
	}

	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan: %v\n", err)
		os.Exit(1)
	}

	found := 0
	for _, candidate := range picode.Scan(string(data)) {
		if _, err := picode.Decode(candidate); err != nil {
			continue
		}
		fmt.Println(candidate)
		found++
	}
	if found == 0 {
		fmt.Fprintln(os.Stderr, "no picodes found")
		os.Exit(1)
	}
}

func runStatus(args []string) {
	var configPath, socket, addr string
	var jsonOutput bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--json":
			jsonOutput = true
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configPath = args[i]
		case "--socket":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--socket requires a value")
				os.Exit(1)
			}
			i++
			socket = args[i]
		case "--addr":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--addr requires a value")
				os.Exit(1)
			}
			i++
			addr = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: ookd status [--json] [--socket <path> | --addr <host:port>]\n", args[i])
			os.Exit(1)
		}
	}

	base, client := apiTarget(configPath, socket, addr)
	resp, err := client.Get(base + "/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		os.Exit(1)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprint(os.Stderr, string(body))
		os.Exit(1)
	}

	if jsonOutput {
		fmt.Println(strings.TrimSpace(string(body)))
		return
	}

	var snap server.StatusSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		fmt.Fprintf(os.Stderr, "status: parse response: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("pid:       %d\n", snap.PID)
	fmt.Printf("uptime:    %s\n", snap.Uptime)
	fmt.Printf("tx count:  %d\n", snap.TXCount)
	fmt.Printf("last tx:   %s\n", snap.LastTX)
	fmt.Printf("digest:    %s\n", snap.Digest)
	fmt.Printf("logs:      %s\n", snap.LogsDir)
	fmt.Printf("affinity:  %s\n", snap.Affinity)
}

// loadConfig resolves the config file: the --config flag, then $OOKD_CONFIG,
// then /etc/ookd/config.yaml. Built-in defaults apply when nothing was
// named explicitly and the default path does not exist.
func loadConfig(flagPath string) (config.Config, string, error) {
	explicit := flagPath != ""
	path := flagPath
	if path == "" {
		path = os.Getenv("OOKD_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && os.IsNotExist(err) {
			return config.Default(), "", nil
		}
		return config.Config{}, "", err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, path, nil
}

// apiTarget picks how to reach the daemon: --addr beats --socket beats
// whatever the config file says.
func apiTarget(configPath, socket, addr string) (string, *http.Client) {
	if addr == "" && socket == "" {
		cfg, _, err := loadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		socket = cfg.Listen.Socket
		if socket == "" {
			addr = cfg.Listen.Addr
		}
	}

	// Timed transmissions hold the request open for up to 30s.
	timeout := 2 * time.Minute

	if addr != "" {
		if strings.HasPrefix(addr, ":") {
			addr = "127.0.0.1" + addr
		}
		return "http://" + addr, &http.Client{Timeout: timeout}
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var dialer net.Dialer
				return dialer.DialContext(ctx, "unix", socket)
			},
		},
	}
	return "http://ookd", client
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ookd %s — OOK pulse-train transmitter daemon

Usage: ookd <command> [options]

Daemon:
  serve [--config <path>]   Run the daemon
  init [--force] [path]     Write a default config (default %s)

Client (CLI → daemon):
  send <picode>...          Transmit picodes via the running daemon
  status [--json]           Show daemon status

Local:
  check <picode>...         Decode and validate picodes without transmitting
  scan [file]               Extract picodes from a file or stdin

  version                   Show version
  help                      Show this help

`, version, defaultConfigPath)
}
