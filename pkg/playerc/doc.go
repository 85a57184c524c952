// Package playerc is a client for playerd servers.
//
// A Client issues one request at a time and waits for the reply whose
// interface, index and subtype match. A background reader caches the latest
// data per device and counts SYNCH messages, which close each round of data.
//
//	c, err := playerc.Dial(ctx, "localhost:6665", playerc.Config{})
//	defer c.Close()
//
//	laser := wire.DeviceAddr{Port: 6665, Interface: wire.InterfaceLaser}
//	if _, err := c.Open(ctx, laser, wire.AccessRead); err != nil {
//	    return err
//	}
//	if err := c.WaitSynch(ctx); err != nil {
//	    return err
//	}
//	sample, _ := c.Latest(laser)
//
// In the PULL modes Read requests a round and waits for its SYNCH.
package playerc
