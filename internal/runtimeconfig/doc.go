// Package runtimeconfig models the runtime configuration of the Modbus RFID
// reader and the bit layout of its memory selector register.
//
// # Memory Selector
//
// The reader packs five "include this field in a tag read" switches into the
// low bits of a single 16-bit holding register:
//
//	bit 0 (0b00001)  includeKillPwd
//	bit 1 (0b00010)  includeAccessPwd
//	bit 2 (0b00100)  includeCRC
//	bit 3 (0b01000)  includePC
//	bit 4 (0b10000)  includeXPC
//
// Bits 5-15 are reserved. They are carried through unchanged; flag updates
// only ever set or clear their own bit.
//
// # Value Object and Transfer Shape
//
// Shape is what the device configuration service sends and accepts: a flat,
// all-optional JSON object. RuntimeConfiguration is built from a Shape with
// New, edited in place with SetFlag and SetLength, and turned back into a
// Shape with Flatten before it is written:
//
//	rc := runtimeconfig.New(shape)
//	rc.SetFlag(runtimeconfig.IncludeXPC, true)
//	rc.SetLength(runtimeconfig.EPCLength, 12)
//	out := rc.Flatten()
//
// A RuntimeConfiguration belongs to a single editing context and is not safe
// for concurrent mutation.
package runtimeconfig
