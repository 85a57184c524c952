package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"

	"github.com/player-project/playerd/pkg/auth"
	"github.com/player-project/playerd/pkg/playerc"
	"github.com/player-project/playerd/pkg/wire"
)

var errNotConnected = errors.New("not connected (use 'connect <host:port>')")

// Console is the interactive client.
type Console struct {
	out     io.Writer
	timeout time.Duration
	port    uint16
	retry   playerc.RetryConfig
	client  *playerc.Client
	rl      *readline.Instance
	watch   atomic.Bool
}

func newConsole(out io.Writer, timeout time.Duration) *Console {
	return &Console{
		out:     out,
		timeout: timeout,
		port:    wire.DefaultPort,
		retry:   playerc.RetryConfig{Limit: 1},
	}
}

// attach connects the console to a terminal.
func (c *Console) attach() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "playerc> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("connect"),
			readline.PcItem("devlist"),
			readline.PcItem("info"),
			readline.PcItem("open"),
			readline.PcItem("close"),
			readline.PcItem("mode",
				readline.PcItem("push_new"), readline.PcItem("push_all"),
				readline.PcItem("pull_new"), readline.PcItem("pull_all"),
				readline.PcItem("async"),
			),
			readline.PcItem("freq"),
			readline.PcItem("pull"),
			readline.PcItem("read"),
			readline.PcItem("show"),
			readline.PcItem("watch"),
			readline.PcItem("vel"),
			readline.PcItem("auth"),
			readline.PcItem("ident"),
			readline.PcItem("name"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	c.rl = rl
	c.out = rl.Stdout()
	return nil
}

// Run reads commands until quit or EOF.
func (c *Console) Run(ctx context.Context) {
	defer c.rl.Close()
	defer c.disconnect()

	c.printHelp()
	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			return
		}
		if !c.exec(ctx, line) {
			return
		}
	}
}

// exec runs one command line and reports whether the console goes on.
func (c *Console) exec(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var err error
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "connect":
		err = c.cmdConnect(ctx, args)
	case "disconnect":
		c.disconnect()
	case "devlist", "ls":
		err = c.cmdDevlist(ctx)
	case "info":
		err = c.cmdInfo(ctx, args)
	case "open":
		err = c.cmdOpen(ctx, args)
	case "close":
		err = c.cmdClose(ctx, args)
	case "mode":
		err = c.cmdMode(ctx, args)
	case "freq":
		err = c.cmdFreq(ctx, args)
	case "pull":
		err = c.withClient(func(pc *playerc.Client) error { return pc.RequestData(ctx) })
	case "read":
		err = c.cmdRead(ctx, args)
	case "show":
		err = c.cmdShow(args)
	case "watch":
		err = c.cmdWatch(args)
	case "vel":
		err = c.cmdVel(args)
	case "auth":
		err = c.cmdAuth(ctx, args)
	case "ident":
		err = c.cmdIdent(ctx)
	case "name":
		err = c.cmdName(ctx, args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
playerc Commands:
  Connection:
    connect <host:port>     - Connect to a server
    disconnect              - Close the connection
    auth <key>              - Authenticate
    ident                   - Show the server banner
    name <robot>            - Resolve a robot name to its port

  Devices:
    devlist                 - List the server's devices
    info <dev>              - Show the driver behind a device
    open <dev> [r|w|a]      - Open a device (default: read)
    close <dev>             - Close a device

  Data:
    mode <mode>             - push_new, push_all, pull_new, pull_all, async
    freq <hz>               - Set the PUSH rate
    pull                    - Request one round (PULL modes)
    read [n]                - Wait for n rounds and show them (default 1)
    show <dev>              - Show the latest data of a device
    watch on|off            - Print every data message as it arrives
    vel <dev> <vx> <vy> <va> - Command a position2d velocity (m/s, m/s, deg/s)

  General:
    help                    - Show this help
    quit                    - Exit

  Devices are written interface:index, e.g. laser:0 or 6666:position2d:1.`)
}

func (c *Console) withClient(fn func(*playerc.Client) error) error {
	if c.client == nil {
		return errNotConnected
	}
	return fn(c.client)
}

func (c *Console) device(args []string) (wire.DeviceAddr, error) {
	if len(args) < 1 {
		return wire.DeviceAddr{}, errors.New("missing device argument")
	}
	_, addr, err := wire.ParseDeviceAddr(args[0], c.port)
	return addr, err
}

func (c *Console) cmdConnect(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: connect <host:port>")
	}
	address := args[0]
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		host, portStr = address, strconv.Itoa(wire.DefaultPort)
		address = net.JoinHostPort(host, portStr)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return fmt.Errorf("bad port %q", portStr)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout*time.Duration(max(c.retry.Limit, 1)))
	defer cancel()
	return c.connect(ctx, address, uint16(port))
}

func (c *Console) connect(ctx context.Context, address string, port uint16) error {
	c.disconnect()
	pc, err := playerc.DialRetry(ctx, address, playerc.Config{Timeout: c.timeout, Port: port}, c.retry)
	if err != nil {
		return err
	}
	pc.OnData(c.onData)
	c.client = pc
	c.port = port
	fmt.Fprintf(c.out, "Connected to %s (server %s)\n", address, pc.ServerVersion())
	return nil
}

func (c *Console) disconnect() {
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

func (c *Console) onData(d playerc.Data) {
	if c.watch.Load() {
		fmt.Fprintf(c.out, "[DATA] %s %s\n", d.Addr, describe(d.Addr, d.Sample))
	}
}

func (c *Console) cmdDevlist(ctx context.Context) error {
	return c.withClient(func(pc *playerc.Client) error {
		devs, err := pc.Devices(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DEVICE\tDRIVER")
		for _, d := range devs {
			name, err := pc.DriverName(ctx, d)
			if err != nil {
				name = "?"
			}
			fmt.Fprintf(w, "%s\t%s\n", d, name)
		}
		return w.Flush()
	})
}

func (c *Console) cmdInfo(ctx context.Context, args []string) error {
	addr, err := c.device(args)
	if err != nil {
		return err
	}
	return c.withClient(func(pc *playerc.Client) error {
		name, err := pc.DriverName(ctx, addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s: driver %s\n", addr, name)
		return nil
	})
}

func (c *Console) cmdOpen(ctx context.Context, args []string) error {
	addr, err := c.device(args)
	if err != nil {
		return err
	}
	access := wire.AccessRead
	if len(args) > 1 {
		var ok bool
		if access, ok = wire.ParseAccess(args[1]); !ok {
			return fmt.Errorf("bad access mode %q", args[1])
		}
	}
	return c.withClient(func(pc *playerc.Client) error {
		resp, err := pc.Open(ctx, addr, access)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s: granted %s (driver %s)\n", resp.Addr, resp.Access, resp.DriverName)
		return nil
	})
}

func (c *Console) cmdClose(ctx context.Context, args []string) error {
	addr, err := c.device(args)
	if err != nil {
		return err
	}
	return c.withClient(func(pc *playerc.Client) error {
		if err := pc.CloseDevice(ctx, addr); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s: closed\n", addr)
		return nil
	})
}

func (c *Console) cmdMode(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: mode <mode>")
	}
	mode, ok := wire.ParseDataMode(strings.ToLower(args[0]))
	if !ok {
		return fmt.Errorf("unknown mode %q", args[0])
	}
	return c.withClient(func(pc *playerc.Client) error { return pc.SetDataMode(ctx, mode) })
}

func (c *Console) cmdFreq(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: freq <hz>")
	}
	hz, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil || hz == 0 {
		return fmt.Errorf("bad frequency %q", args[0])
	}
	return c.withClient(func(pc *playerc.Client) error { return pc.SetFrequency(ctx, uint16(hz)) })
}

func (c *Console) cmdRead(ctx context.Context, args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return fmt.Errorf("bad count %q", args[0])
		}
		n = v
	}
	return c.withClient(func(pc *playerc.Client) error {
		for range n {
			if err := pc.WaitSynch(ctx); err != nil {
				return err
			}
		}
		devs, err := pc.Devices(ctx)
		if err != nil {
			return err
		}
		for _, d := range devs {
			if s, ok := pc.Latest(d); ok {
				fmt.Fprintf(c.out, "%s %s\n", d, describe(d, s))
			}
		}
		return nil
	})
}

func (c *Console) cmdShow(args []string) error {
	addr, err := c.device(args)
	if err != nil {
		return err
	}
	return c.withClient(func(pc *playerc.Client) error {
		s, ok := pc.Latest(addr)
		if !ok {
			return fmt.Errorf("no data for %s", addr)
		}
		fmt.Fprintf(c.out, "%s %s\n", addr, describe(addr, s))
		return nil
	})
}

func (c *Console) cmdWatch(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: watch on|off")
	}
	switch args[0] {
	case "on":
		c.watch.Store(true)
	case "off":
		c.watch.Store(false)
	default:
		return fmt.Errorf("usage: watch on|off")
	}
	return nil
}

func (c *Console) cmdVel(args []string) error {
	addr, err := c.device(args)
	if err != nil {
		return err
	}
	if addr.Interface != wire.InterfacePosition2D {
		return fmt.Errorf("%s is not a position2d device", addr)
	}
	if len(args) < 4 {
		return errors.New("usage: vel <dev> <vx> <vy> <va>")
	}
	var v [3]float64
	for i := range v {
		if v[i], err = strconv.ParseFloat(args[i+1], 64); err != nil {
			return fmt.Errorf("bad velocity %q", args[i+1])
		}
	}
	cmd := wire.Position2DCmd{Vel: wire.Pose{X: v[0], Y: v[1], Yaw: v[2] * math.Pi / 180}, State: true}
	return c.withClient(func(pc *playerc.Client) error {
		return pc.Command(addr, wire.Position2DCmdState, cmd)
	})
}

func (c *Console) cmdAuth(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: auth <key>")
	}
	return c.withClient(func(pc *playerc.Client) error {
		if err := pc.Authenticate(ctx, auth.ParseKey(args[0])); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Authenticated")
		return nil
	})
}

func (c *Console) cmdIdent(ctx context.Context) error {
	return c.withClient(func(pc *playerc.Client) error {
		id, err := pc.Ident(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s (version %s)\n", id.Ident, id.Version)
		return nil
	})
}

func (c *Console) cmdName(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: name <robot>")
	}
	return c.withClient(func(pc *playerc.Client) error {
		port, err := pc.LookupName(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s: port %d\n", args[0], port)
		return nil
	})
}

// describe renders a data sample of the bundled interfaces.
func describe(addr wire.DeviceAddr, s playerc.Sample) string {
	ts := s.Time.Format("15:04:05.000")
	switch addr.Interface {
	case wire.InterfaceLaser:
		scan, err := wire.Decode[wire.LaserScan](s.Data)
		if err != nil {
			break
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, r := range scan.Ranges {
			lo = math.Min(lo, r)
			hi = math.Max(hi, r)
		}
		return fmt.Sprintf("@%s scan #%d: %d ranges [%.2f, %.2f] m", ts, scan.ID, len(scan.Ranges), lo, hi)
	case wire.InterfacePosition2D:
		d, err := wire.Decode[wire.Position2DData](s.Data)
		if err != nil {
			break
		}
		return fmt.Sprintf("@%s pos (%.3f, %.3f, %.1f deg) vel (%.2f, %.2f, %.1f deg/s)", ts,
			d.Pos.X, d.Pos.Y, d.Pos.Yaw*180/math.Pi, d.Vel.X, d.Vel.Y, d.Vel.Yaw*180/math.Pi)
	case wire.InterfaceGPS:
		d, err := wire.Decode[wire.GPSData](s.Data)
		if err != nil {
			break
		}
		return fmt.Sprintf("@%s fix %.6f, %.6f alt %.1f m (%d sats, quality %d)", ts,
			d.Latitude, d.Longitude, d.Altitude, d.NumSats, d.Quality)
	}
	return fmt.Sprintf("@%s subtype %d, %d bytes", ts, s.Subtype, len(s.Data))
}
