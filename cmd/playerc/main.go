// Command playerc is an interactive client for playerd servers.
//
// Usage:
//
//	playerc [flags]
//
// Flags:
//
//	-host string     Server host (default "localhost")
//	-port int        Server port (default 6665)
//	-key string      Authenticate with this key after connecting
//	-timeout dur     Request timeout (default 5s)
//	-retry int       Connection attempts, 0 keeps trying until -timeout (default 1)
//	-e string        Run ';'-separated commands and exit
//	-no-connect      Start without connecting
//
// Examples:
//
//	# Open the laser and print one round of data
//	playerc -e 'open laser:0; read'
//
//	# Drive a robot from the console
//	playerc -host robot1.local
//	playerc> open position2d:0 a
//	playerc> vel position2d:0 0.2 0 0
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/player-project/playerd/pkg/playerc"
	"github.com/player-project/playerd/pkg/wire"
)

var (
	host      = flag.String("host", "localhost", "Server host")
	port      = flag.Int("port", wire.DefaultPort, "Server port")
	key       = flag.String("key", "", "Authenticate with this key after connecting")
	timeout   = flag.Duration("timeout", 5*time.Second, "Request timeout")
	retry     = flag.Int("retry", 1, "Connection attempts, 0 keeps trying until -timeout")
	script    = flag.String("e", "", "Run ';'-separated commands and exit")
	noConnect = flag.Bool("no-connect", false, "Start without connecting")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime)

	if *port <= 0 || *port > 65535 {
		log.Fatalf("port out of range: %d", *port)
	}

	ctx := context.Background()
	c := newConsole(os.Stdout, *timeout)
	c.retry = playerc.RetryConfig{Limit: max(*retry, 0)}

	if *script == "" {
		if err := c.attach(); err != nil {
			log.Fatal(err)
		}
	}

	if !*noConnect {
		address := net.JoinHostPort(*host, strconv.Itoa(*port))
		dctx, cancel := context.WithTimeout(ctx, *timeout*time.Duration(max(*retry, 1)))
		err := c.connect(dctx, address, uint16(*port))
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to %s: %v", address, err)
		}
		if *key != "" {
			c.exec(ctx, "auth "+*key)
		}
	}

	if *script != "" {
		defer c.disconnect()
		for _, line := range strings.Split(*script, ";") {
			if !c.exec(ctx, line) {
				return
			}
		}
		return
	}

	fmt.Fprintln(c.out, "playerc - type 'help' for commands")
	c.Run(ctx)
}
