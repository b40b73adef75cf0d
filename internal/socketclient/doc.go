// Package socketclient maintains the websocket connection to the MarketPulse
// query service.
//
// A Client owns exactly one transport connection to a fixed endpoint. It
// translates the transport lifecycle into a ConnectionState signal, retries
// unexpected losses with exponential backoff, and decodes inbound frames into
// protocol events. It knows nothing about what the events mean; folding them
// into a conversation is the job of the session package.
//
// Basic Usage
//
//	client, err := socketclient.New(socketclient.DefaultConfig(),
//	    socketclient.WithHandlers(socketclient.Handlers{
//	        OnState: func(s socketclient.ConnectionState) { fmt.Println("state:", s) },
//	        OnEvent: func(ev protocol.Event) { fmt.Printf("%#v\n", ev) },
//	    }))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.Connect()
//	defer client.Disconnect()
//
//	client.Send(protocol.NewQuestion("What is Bitcoin sentiment?"))
//
// # State Machine
//
// The client starts disconnected. Connect moves it to connecting (or
// reconnecting, when the attempt follows a failure), a successful dial moves it
// to connected and resets the retry counter. An unexpected close moves it to
// disconnected and, unless the retry budget is spent, schedules a retry and
// reports reconnecting while the timer is pending:
//
//	disconnected -> connecting -> connected -> disconnected -> reconnecting -> connected
//
// Disconnect is an intentional shutdown. It cancels a pending retry timer and
// an in-flight dial, closes the transport and forces disconnected from any
// state. Dials and read loops carry a generation number so that a dial which
// completes after Disconnect closes its connection without touching state.
//
// # Reconnection Behavior
//
// The n-th retry (0-based) waits min(BaseDelay*2^n, MaxDelay). After
// MaxRetries consecutive failed retries the client stays disconnected. A later
// explicit Connect starts a fresh cycle with the counter reset.
//
// # Delivery
//
// Handlers run one at a time, in the order the client produced them, and never
// while the client's lock is held, so a handler may call back into the client.
// Send is best effort: it writes a single frame when connected and reports
// false otherwise. Frames that do not decode are dropped; the OnDrop handler
// and Observer.PayloadDropped make drops visible without changing that policy.
package socketclient
