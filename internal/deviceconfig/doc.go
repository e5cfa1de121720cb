// Package deviceconfig provides an HTTP client for the modbusreader
// configuration service.
//
// The service fronts an RFID reader that speaks Modbus. This package reads
// the device identification block, reads and writes the runtime
// configuration (memory selector plus per-bank lengths), lists the runtime
// register map and downloads it as a tab-separated export. It also
// subscribes to the service's notification stream over a websocket.
//
// # Usage Example
//
//	client := deviceconfig.NewClient("192.168.1.40", 8080)
//	client.SetAuth("admin", "secret")
//
//	shape, err := client.GetRuntimeConfig(ctx)
//	if err != nil {
//	    log.Fatal(deviceconfig.GetShortErrorMessage(err))
//	}
//
//	rc := runtimeconfig.New(shape)
//	rc.SetFlag(runtimeconfig.IncludeCRC, true)
//	rc.SetLength(runtimeconfig.EPCLength, 12)
//
//	result := client.UpdateAndVerify(ctx, rc.Flatten(), nil)
//	if !result.Success {
//	    log.Fatalf("Update failed: %v", result.Error)
//	}
//
// # Safe Updates with Rollback
//
// The RollbackManager snapshots the current configuration before a write
// and restores it when the read-back does not match:
//
//	rm := deviceconfig.NewRollbackManager(client)
//	result := rm.SafeUpdate(ctx, rc.Flatten(), nil, "enable CRC")
//	if result.RollbackAttempted {
//	    fmt.Println(result)
//	}
//
// # Errors
//
// Every error returned by the client is a *DeviceError. Use the Is* helpers
// to classify it and GetTroubleshootingHint for operator guidance.
// NotificationMessage returns the text the console shows in its
// notification area.
package deviceconfig
