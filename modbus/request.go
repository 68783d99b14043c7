package modbus

// requestDecoders maps supported function codes to their request decoders.
var requestDecoders = map[FunctionCode]func([]byte) (Request, error){
	FunctionReadCoils: func(pdu []byte) (Request, error) {
		req, err := DecodeReadCoilsRequest(pdu)
		return req, err
	},
	FunctionReadDiscreteInputs: func(pdu []byte) (Request, error) {
		req, err := DecodeReadDiscreteInputsRequest(pdu)
		return req, err
	},
	FunctionReadHoldingRegisters: func(pdu []byte) (Request, error) {
		req, err := DecodeReadHoldingRegistersRequest(pdu)
		return req, err
	},
	FunctionReadInputRegisters: func(pdu []byte) (Request, error) {
		req, err := DecodeReadInputRegistersRequest(pdu)
		return req, err
	},
	FunctionWriteSingleCoil: func(pdu []byte) (Request, error) {
		req, err := DecodeWriteSingleCoilRequest(pdu)
		return req, err
	},
	FunctionWriteSingleRegister: func(pdu []byte) (Request, error) {
		req, err := DecodeWriteSingleRegisterRequest(pdu)
		return req, err
	},
	FunctionWriteMultipleRegisters: func(pdu []byte) (Request, error) {
		req, err := DecodeWriteMultipleRegistersRequest(pdu)
		return req, err
	},
}

// DecodeRequest decodes an incoming request PDU according to its function
// code. The dynamic type of the returned request is one of
// ReadCoilsRequest, ReadDiscreteInputsRequest, ReadHoldingRegistersRequest,
// ReadInputRegistersRequest, WriteSingleCoilRequest,
// WriteSingleRegisterRequest, or WriteMultipleRegistersRequest.
//
// On failure, the error is a *DispatchError. Unsupported function codes
// yield ErrInvalidData.
func DecodeRequest(pdu []byte) (Request, error) {
	if len(pdu) < 2 {
		var fc FunctionCode
		if len(pdu) == 1 {
			fc = FunctionCode(pdu[0])
		}
		return nil, &DispatchError{Function: fc, Err: ErrInvalidDataLength}
	}
	fc := FunctionCode(pdu[0])
	decode, ok := requestDecoders[fc]
	if !ok {
		return nil, &DispatchError{Function: fc, Err: ErrInvalidData}
	}
	req, err := decode(pdu)
	if err != nil {
		return nil, &DispatchError{Function: fc, Err: err}
	}
	return req, nil
}
