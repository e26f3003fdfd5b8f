// ABOUTME: Package stream moves live microphone PCM to a remote peer
// ABOUTME: Capture and transport adapters, send/receive pumps, lifecycle controller
//
// Package stream is the capture-to-network core of micstream.
//
// A Controller owns one Capture (hardware-clocked, blocking frame reads) and
// one Channel (ordered, reliable byte stream). Start runs the SendPump on the
// calling goroutine: read one frame, write it in full, repeat. There is a
// single FrameBuffer, so a slow network back-pressures capture and no frame
// is ever queued beyond the one in flight.
//
// When a Consumer is configured the Controller also runs a ReceivePump on a
// background goroutine, forwarding every payload the peer sends. The two
// pumps share nothing but their streaming flags.
//
// Stop is idempotent and may be called from any goroutine. Shutdown order is
// fixed: clear flags, let the send pump drain, cancel and join the receive
// pump, then close the Channel and the Capture.
//
// Basic usage:
//
//	ctrl, err := stream.NewController(stream.Options{
//		Config:  stream.DefaultConfig(),
//		Open:    capture.Opener(capture.BackendAuto, capture.Options{}),
//		Dial:    transport.Dialer(transport.KindTCP),
//		Address: "localhost:8080",
//	})
//	if err := ctrl.Initialize(ctx); err != nil {
//		return err
//	}
//	go func() { <-ctx.Done(); ctrl.Stop() }()
//	return ctrl.Start()
package stream
