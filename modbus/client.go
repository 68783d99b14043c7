package modbus

// The functions in this file issue a single request and return the decoded
// values. They return nil values for broadcasts.

// ReadCoils reads quantity coils starting at address from dst.
func ReadCoils(t Transport, dst Dst, address, quantity uint16) ([]bool, error) {
	rsp, err := Exchange(t, dst, ReadCoilsRequest{
		Address:  address,
		Quantity: quantity,
	})
	if err != nil || rsp == nil {
		return nil, err
	}
	return rsp.(ReadCoilsResponse).Truncated(quantity), nil
}

// ReadDiscreteInputs reads quantity discrete inputs starting at address from
// dst.
func ReadDiscreteInputs(t Transport, dst Dst, address, quantity uint16) (
	[]bool, error,
) {
	rsp, err := Exchange(t, dst, ReadDiscreteInputsRequest{
		Address:  address,
		Quantity: quantity,
	})
	if err != nil || rsp == nil {
		return nil, err
	}
	return rsp.(ReadDiscreteInputsResponse).Truncated(quantity), nil
}

// ReadHoldingRegisters reads quantity holding registers starting at address
// from dst.
func ReadHoldingRegisters(t Transport, dst Dst, address, quantity uint16) (
	[]uint16, error,
) {
	rsp, err := Exchange(t, dst, ReadHoldingRegistersRequest{
		Address:  address,
		Quantity: quantity,
	})
	if err != nil || rsp == nil {
		return nil, err
	}
	return rsp.(ReadHoldingRegistersResponse).Registers, nil
}

// ReadInputRegisters reads quantity input registers starting at address
// from dst.
func ReadInputRegisters(t Transport, dst Dst, address, quantity uint16) (
	[]uint16, error,
) {
	rsp, err := Exchange(t, dst, ReadInputRegistersRequest{
		Address:  address,
		Quantity: quantity,
	})
	if err != nil || rsp == nil {
		return nil, err
	}
	return rsp.(ReadInputRegistersResponse).Registers, nil
}

// WriteSingleCoil sets the coil at address of dst.
func WriteSingleCoil(t Transport, dst Dst, address uint16, value bool) error {
	return ExchangeSetter(t, dst, WriteSingleCoilRequest{
		Address: address,
		Value:   value,
	})
}

// WriteSingleRegister sets the holding register at address of dst.
func WriteSingleRegister(t Transport, dst Dst, address, value uint16) error {
	return ExchangeSetter(t, dst, WriteSingleRegisterRequest{
		Address: address,
		Value:   value,
	})
}

// WriteMultipleRegisters writes values to the holding registers of dst
// starting at address.
func WriteMultipleRegisters(
	t Transport, dst Dst, address uint16, values []uint16,
) error {
	return ExchangeSetter(t, dst, WriteMultipleRegistersRequest{
		Address: address,
		Values:  values,
	})
}
