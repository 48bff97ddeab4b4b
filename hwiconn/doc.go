// Package hwiconn implements the connection runtime of a HomeWorks processor client.
//
// A Coordinator owns the request and response queues (Transport), a retry supervisor
// and a response dispatcher. The supervisor dials the processor, performs the login
// handshake and serves a Session until the link fails, then reconnects with
// exponential backoff. After every successful login the monitoring-enable commands
// are enqueued ahead of every other request.
//
// The processor is half-duplex: the session writer sends at most one queued request
// per idle prompt, in priority order.
//
// Example:
//
//	cfg, err := hwiconn.NewConnectionConfig(hwiconn.WithMaxRetries(10))
//	if err != nil {
//	    return err
//	}
//
//	coord, err := hwiconn.NewCoordinator(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//
//	coord.SetResponseHandler(func(msg hwi.ResponseMessage) bool {
//	    fmt.Println(msg)
//	    return true
//	})
//
//	addr := hwi.ServerAddress{Host: "192.168.1.20", Port: hwi.DefaultPort}
//	if err := coord.Connect(ctx, addr, hwi.Credentials{Username: "lutron", Password: "integration"}); err != nil {
//	    return err
//	}
//	defer coord.Disconnect()
//
//	_ = coord.EnqueueCommand("FADEDIM", "75", "2", "0", "[01:01:00:01:01]")
package hwiconn
