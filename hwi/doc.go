// Package hwi contains the protocol core of a Lutron HomeWorks Interactive (HWI)
// processor client.
//
// A HomeWorks processor exposes a line-oriented command interface over a telnet-like
// TCP socket or an RS-232 port. The processor prints "LOGIN: " and expects a
// "user,password" line, then prints the idle prompt "LNET> " every time it is ready
// to accept exactly one command line terminated by CR LF. Monitoring output such as
// dimmer levels and keypad events is pushed asynchronously as plain lines.
//
// This package holds the pieces that don't own a socket:
//
//   - ConnState and ConnStateMgr, the session state machine.
//   - RequestMessage and ResponseMessage, the typed messages exchanged between the
//     domain layer and the connection.
//   - PacketBuffer and SplitLines, which turn raw reads into logical lines.
//   - Adapt, which classifies a line as a state update or as opaque server data.
//   - TaskManager, which runs the named goroutines of a connection.
//
// The connection runtime built on top of these types lives in package hwiconn.
package hwi
