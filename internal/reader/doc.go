// Package reader talks Modbus to the RFID reader.
//
// Device opens a connection per operation (Modbus TCP or RTU through
// goburrow/modbus), reads the identification block from the input
// registers and reads or writes the eight-word runtime configuration block
// in the holding registers. The runtime register map is derived from the
// runtime configuration by RuntimeRegisters and does not touch the device.
//
// Register layout:
//
//	input    0..15   vendor name (UTF-8, NUL padded)
//	input   16..31   product code
//	input   32..47   major.minor revision
//	input   48..51   serial number (int64, big endian)
//	input   52..67   hardware revision
//	input   68..83   base firmware
//	holding  0..7    tagsInField, memorySelector, epcLength, tidLength,
//	                 userLength, selectionMaskCount, selectionMaskMaxLength,
//	                 customOperationMaxLength
//
// Runtime registers start at 0x0100 in both tables.
package reader
