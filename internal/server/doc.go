// Package server implements the modbusreader configuration service.
//
// The service fronts one reader (see package reader) with the REST API the
// console and the deviceconfig client speak:
//
//	GET  /health
//	GET  /rest/app/modbusreader/device/info
//	GET  /rest/app/modbusreader/runtime/configuration
//	PUT  /rest/app/modbusreader/runtime/configuration
//	GET  /rest/app/modbusreader/runtime
//	GET  /rest/app/modbusreader/runtime/export
//	GET  /rest/app/modbusreader/events
//
// PUT bodies are validated against the runtime configuration schema and must
// carry every field, and must describe a register map that fits the 16-bit
// address space. When Config.Username is set, PUT and the event stream
// require matching HTTP basic credentials. The other reads are always open.
//
// Reader failures answer 502 with the error text as body and reach only the
// caller. Each successful write is broadcast on the /events websocket as one
// JSON text message whose origin is the writer's X-Modbusreader-Client
// header; clients skip notifications of their own origin.
//
// # Usage Example
//
//	dev := reader.NewDevice(reader.DefaultConfig())
//	srv := server.New(&server.Config{Port: 8080, Advertise: true}, dev)
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
