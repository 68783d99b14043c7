package modbus

import (
	"github.com/sigurn/crc16"
)

// crcTable is the lookup table for the Modbus CRC (polynomial 0xA001
// reflected, initial value 0xFFFF).
var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// crc computes the Modbus CRC of data.
func crc(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
