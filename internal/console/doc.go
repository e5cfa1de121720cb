// Package console implements the full-screen operator console for
// modbusreader configuration services.
//
// The console is a Bubble Tea program with two screens:
//   - Discovery: browse for services over mDNS, pick a known reader from the
//     device registry, or type a URL
//   - Reader: three tabs (Device Info, Runtime Configuration, Runtime
//     Register) for one service
//
// Runtime configuration edits go through an editor.Session, so the screen
// never writes to the service until the operator saves. Session and service
// notifications arrive on a queue that the program drains one message at a
// time and show in the status line.
//
// # Usage Example
//
//	err := console.Run(ctx, console.Options{
//	    URL:      "http://192.168.1.50:8080",
//	    Username: "admin",
//	    Password: os.Getenv("MODBUSREADER_PASSWORD"),
//	    Registry: registry,
//	})
//
// Tests drive the models directly: construct a ReaderModel or AppModel with
// Options.Connect returning a fake API, feed key and result messages to
// Update, and inspect the exported fields.
package console
