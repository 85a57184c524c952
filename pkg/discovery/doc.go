// Package discovery announces servers over mDNS/DNS-SD and resolves robot
// names to ports.
//
// Each server registers one _player._tcp instance named after its robot.
// TXT records carry name (required), ver and dev (device count).
//
// The NAMESERVICE request uses a Resolver to map a robot name to the port
// of the server announcing it.
package discovery
