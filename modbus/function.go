package modbus

import (
	"fmt"
)

// FunctionCode describes a Modbus function code.
type FunctionCode uint8

// Function code constants for the supported functions.
const (
	FunctionReadCoils              FunctionCode = 0x01
	FunctionReadDiscreteInputs     FunctionCode = 0x02
	FunctionReadHoldingRegisters   FunctionCode = 0x03
	FunctionReadInputRegisters     FunctionCode = 0x04
	FunctionWriteSingleCoil        FunctionCode = 0x05
	FunctionWriteSingleRegister    FunctionCode = 0x06
	FunctionWriteMultipleRegisters FunctionCode = 0x10
)

// FunctionError is the bit in the function code which determines
// whether the function was successful or not.
const FunctionError FunctionCode = 0x80

// functionNames maps supported function codes to their names.
var functionNames = map[FunctionCode]string{
	FunctionReadCoils:              "read coils",
	FunctionReadDiscreteInputs:     "read discrete inputs",
	FunctionReadHoldingRegisters:   "read holding registers",
	FunctionReadInputRegisters:     "read input registers",
	FunctionWriteSingleCoil:        "write single coil",
	FunctionWriteSingleRegister:    "write single register",
	FunctionWriteMultipleRegisters: "write multiple registers",
}

// IsSupported determines whether requests with this function code can be
// encoded and decoded by this package.
func (fc FunctionCode) IsSupported() bool {
	_, ok := functionNames[fc]
	return ok
}

// IsError determines whether this function code is from an error
// response.
func (fc FunctionCode) IsError() bool {
	return fc&FunctionError != 0
}

// AsError returns this function code with the error response bit set.
func (fc FunctionCode) AsError() FunctionCode {
	return fc | FunctionError
}

// String renders this function code.
func (fc FunctionCode) String() string {
	if fc.IsError() {
		return fmt.Sprintf("%s error", fc&^FunctionError)
	}
	if s, ok := functionNames[fc]; ok {
		return s
	}
	return fmt.Sprintf("function %02X", uint8(fc))
}
