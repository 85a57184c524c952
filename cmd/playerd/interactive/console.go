// Package interactive provides the operator console of playerd.
package interactive

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"

	"github.com/player-project/playerd/pkg/client"
	"github.com/player-project/playerd/pkg/device"
	"github.com/player-project/playerd/pkg/server"
)

// Server is the part of the running server the console inspects.
type Server interface {
	State() server.State
	Addr() net.Addr
	MonitorAddr() net.Addr
	ConnectionCount() int
	Table() *device.Table
	Manager() *client.Manager
}

// Console handles interactive mode for playerd.
type Console struct {
	srv     Server
	rl      *readline.Instance
	out     io.Writer
	started time.Time
}

// New creates a console reading commands from the terminal.
func New(srv Server) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "playerd> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("devices"),
			readline.PcItem("clients"),
			readline.PcItem("subs"),
			readline.PcItem("kick"),
			readline.PcItem("stats"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	c := newConsole(srv, rl.Stdout())
	c.rl = rl
	return c, nil
}

func newConsole(srv Server, out io.Writer) *Console {
	return &Console{srv: srv, out: out, started: time.Now()}
}

// Stdout returns a writer that coordinates with the prompt. Log output
// should go through it.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run reads commands until quit, EOF or ctx ends. Quitting calls cancel.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
		if !c.exec(line) {
			cancel()
			return
		}
	}
}

// exec runs one command line and reports whether the console goes on.
func (c *Console) exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "devices", "d":
		c.cmdDevices()
	case "clients", "c":
		c.cmdClients()
	case "subs", "s":
		c.cmdSubs(args)
	case "kick":
		c.cmdKick(args)
	case "stats":
		c.cmdStats()
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
playerd Commands:
  devices          - List registered devices
  clients          - List connected clients
  subs <client-id> - List the devices a client has open
  kick <client-id> - Disconnect a client
  stats            - Show server status
  help             - Show this help
  quit             - Stop the server`)
}

func (c *Console) cmdDevices() {
	table := c.srv.Table()
	if table == nil || table.Len() == 0 {
		fmt.Fprintln(c.out, "No devices.")
		return
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tDRIVER\tACCESS\tSUBSCRIPTIONS")
	for _, e := range table.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", e.Addr, e.DriverName, e.Access, e.Driver.Subscriptions())
	}
	w.Flush()
}

func (c *Console) cmdClients() {
	mgr := c.srv.Manager()
	if mgr == nil || mgr.Len() == 0 {
		fmt.Fprintln(c.out, "No clients connected.")
		return
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREMOTE\tMODE\tFREQ\tOPEN\tCONNECTED")
	for _, s := range mgr.Sessions() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			s.ID(), s.RemoteAddr(), s.Mode(), s.Frequency(), len(s.Subscriptions()),
			time.Since(s.Created()).Round(time.Second))
	}
	w.Flush()
}

func (c *Console) session(args []string) (*client.Session, bool) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: <command> <client-id>")
		return nil, false
	}
	mgr := c.srv.Manager()
	if mgr == nil {
		fmt.Fprintln(c.out, "Server not running.")
		return nil, false
	}
	s, ok := mgr.Session(args[0])
	if !ok {
		fmt.Fprintf(c.out, "Client not found: %s\n", args[0])
		return nil, false
	}
	return s, true
}

func (c *Console) cmdSubs(args []string) {
	s, ok := c.session(args)
	if !ok {
		return
	}
	subs := s.Subscriptions()
	if len(subs) == 0 {
		fmt.Fprintln(c.out, "No open devices.")
		return
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tACCESS\tDRIVER\tLAST SENT")
	for _, sub := range subs {
		last := "-"
		if !sub.LastSent.IsZero() {
			last = sub.LastSent.Format("15:04:05.000")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sub.Addr, sub.Access, sub.DriverName, last)
	}
	w.Flush()
}

func (c *Console) cmdKick(args []string) {
	s, ok := c.session(args)
	if !ok {
		return
	}
	if err := c.srv.Manager().Kick(s.ID()); err != nil {
		fmt.Fprintf(c.out, "Kick failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Disconnected %s (%s)\n", s.ID(), s.RemoteAddr())
}

func (c *Console) cmdStats() {
	fmt.Fprintf(c.out, "State:       %s\n", c.srv.State())
	if addr := c.srv.Addr(); addr != nil {
		fmt.Fprintf(c.out, "Listening:   %s\n", addr)
	}
	if addr := c.srv.MonitorAddr(); addr != nil {
		fmt.Fprintf(c.out, "Monitor:     http://%s/\n", addr)
	}
	fmt.Fprintf(c.out, "Uptime:      %s\n", time.Since(c.started).Round(time.Second))
	fmt.Fprintf(c.out, "Connections: %d\n", c.srv.ConnectionCount())
	if table := c.srv.Table(); table != nil {
		fmt.Fprintf(c.out, "Devices:     %d\n", table.Len())
	}
}
