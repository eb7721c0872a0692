// Package transport broadcasts commit notifications to a fixed set of peers
// over TCP and delivers the notifications peers send back to a local
// event.Listener.
//
// A Transport is configured once, started, used to Broadcast any number of
// events and closed:
//
//  t := transport.New(listener)
//  if err := t.Configure(opts); err != nil { ... }
//  if err := t.Start(); err != nil { ... }
//  t.Broadcast(ev)
//  t.Close()
//
// Delivery is best effort. Broadcast never blocks on the network when
// workers are configured and never reports network errors; peers that fail
// are skipped until their recovery interval has passed.
//
// Transports in one process that are configured with the same port share a
// single listening socket through a netstack.Registry. A transport never
// receives its own packets, but the other transports on that port do.
package transport
