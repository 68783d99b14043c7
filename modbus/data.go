package modbus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/TheCount/go-multilocker/multilocker"
)

// DataType selects one of the four tables of the Modbus data model.
type DataType uint8

// The tables of the data model. Each has its own address space.
const (
	DataTypeDiscreteInputs DataType = iota
	DataTypeCoils
	DataTypeInputRegisters
	DataTypeHoldingRegisters
	numDataTypes = 4
)

// dataTypeFunctions lists the function codes accessing each table.
var dataTypeFunctions = [numDataTypes][]FunctionCode{
	DataTypeDiscreteInputs: {FunctionReadDiscreteInputs},
	DataTypeCoils:          {FunctionReadCoils, FunctionWriteSingleCoil},
	DataTypeInputRegisters: {FunctionReadInputRegisters},
	DataTypeHoldingRegisters: {
		FunctionReadHoldingRegisters,
		FunctionWriteSingleRegister,
		FunctionWriteMultipleRegisters,
	},
}

// IsBit reports whether the table holds single bits rather than registers.
func (dt DataType) IsBit() bool {
	return dt == DataTypeDiscreteInputs || dt == DataTypeCoils
}

// dataTypeNames are the table names, indexed by DataType.
var dataTypeNames = [numDataTypes]string{
	"discrete inputs",
	"coils",
	"input registers",
	"holding registers",
}

// String renders this data type as the table name.
func (dt DataType) String() string {
	if dt < numDataTypes {
		return dataTypeNames[dt]
	}
	return fmt.Sprintf("data type %d", uint8(dt))
}

// DataModel lists the address ranges backed by a Data.
type DataModel struct {
	// Ranges of the same type must not overlap. Adjacent ranges are allowed
	// and may be accessed by a single request.
	Ranges []DataRange
}

// DataRange is a contiguous run of addresses in one table.
type DataRange struct {
	// Type is the table the range belongs to.
	Type DataType

	// StartAddress is the zero based address of the first element.
	StartAddress uint16

	// Len is the number of elements, at least one.
	Len uint16
}

// Validate checks the type and the bounds of dr.
func (dr DataRange) Validate() error {
	switch {
	case dr.Type >= numDataTypes:
		return fmt.Errorf("%s: %w", dr.Type, ErrInvalidValue)
	case dr.Len == 0:
		return fmt.Errorf("empty range: %w", ErrInvalidValue)
	case int(dr.StartAddress)+int(dr.Len) > 1<<16:
		return fmt.Errorf("range %d+%d exceeds address space: %w",
			dr.StartAddress, dr.Len, ErrInvalidValue)
	}
	return nil
}

// dataBlock is the memory of a single data range.
type dataBlock struct {
	// mx synchronises access to this data block.
	mx sync.RWMutex

	// start is the address of values[0].
	start int

	// values holds one value per address. Bits are stored as 0 or 1.
	values []uint16
}

// end returns the address after the last address of this block.
func (b *dataBlock) end() int {
	return b.start + len(b.values)
}

// Data is a Modbus memory model. It answers the requests of a slave, with
// ExceptionIllegalDataAddress for addresses outside of its ranges.
// Requests spanning several ranges are served atomically.
type Data struct {
	// blocks holds the blocks of each data type, sorted by start address.
	blocks [numDataTypes][]*dataBlock
}

// NewData allocates zeroed memory for every range of model.
func NewData(model DataModel) (*Data, error) {
	d := &Data{}
	for i, dr := range model.Ranges {
		if err := dr.Validate(); err != nil {
			return nil, fmt.Errorf("data range %d: %w", i, err)
		}
		d.blocks[dr.Type] = append(d.blocks[dr.Type], &dataBlock{
			start:  int(dr.StartAddress),
			values: make([]uint16, dr.Len),
		})
	}
	for dt, blocks := range d.blocks {
		sort.Slice(blocks, func(j, k int) bool {
			return blocks[j].start < blocks[k].start
		})
		for j := 1; j < len(blocks); j++ {
			if blocks[j].start < blocks[j-1].end() {
				return nil, fmt.Errorf("%s range at %d overlaps range at %d: %w",
					DataType(dt), blocks[j].start, blocks[j-1].start,
					ErrInvalidValue)
			}
		}
	}
	return d, nil
}

// AddToServer registers d.Handle with srv for functions. Without functions,
// d.Handle is registered for every function accessing a table with at least
// one range.
func (d *Data) AddToServer(srv *Server, functions ...FunctionCode) error {
	if srv == nil {
		return fmt.Errorf("nil server: %w", ErrInvalidValue)
	}
	if len(functions) == 0 {
		for dt, blocks := range d.blocks {
			if len(blocks) > 0 {
				functions = append(functions, dataTypeFunctions[dt]...)
			}
		}
	}
	return srv.SetHandler(d.Handle, functions...)
}

// getBlocks returns the blocks covering n addresses of type dt starting at
// addr, without gaps.
func (d *Data) getBlocks(dt DataType, addr uint16, n int) (
	[]*dataBlock, error,
) {
	if dt >= numDataTypes {
		return nil, fmt.Errorf("%s: %w", dt, ErrInvalidValue)
	}
	blocks := d.blocks[dt]
	start, end := int(addr), int(addr)+n
	idx := sort.Search(len(blocks), func(i int) bool {
		return blocks[i].end() > start
	})
	if idx == len(blocks) || blocks[idx].start > start {
		return nil, ExceptionIllegalDataAddress
	}
	last := idx
	for blocks[last].end() < end {
		if last+1 == len(blocks) || blocks[last+1].start != blocks[last].end() {
			return nil, ExceptionIllegalDataAddress
		}
		last++
	}
	return blocks[idx : last+1], nil
}

// getReadLocker returns a locker which atomically read-locks all blocks.
func getReadLocker(blocks []*dataBlock) sync.Locker {
	lockers := make([]sync.Locker, len(blocks))
	for i, b := range blocks {
		lockers[i] = b.mx.RLocker()
	}
	return multilocker.New(lockers...)
}

// getWriteLocker returns a locker which atomically write-locks all blocks.
func getWriteLocker(blocks []*dataBlock) sync.Locker {
	lockers := make([]sync.Locker, len(blocks))
	for i, b := range blocks {
		lockers[i] = &b.mx
	}
	return multilocker.New(lockers...)
}

// read reads n values of type dt starting at addr.
func (d *Data) read(dt DataType, addr uint16, n int) ([]uint16, error) {
	blocks, err := d.getBlocks(dt, addr, n)
	if err != nil {
		return nil, err
	}
	ml := getReadLocker(blocks)
	ml.Lock()
	defer ml.Unlock()
	result := make([]uint16, 0, n)
	pos, end := int(addr), int(addr)+n
	for _, b := range blocks {
		stop := b.end()
		if stop > end {
			stop = end
		}
		result = append(result, b.values[pos-b.start:stop-b.start]...)
		pos = stop
	}
	return result, nil
}

// write writes values to type dt starting at addr.
func (d *Data) write(dt DataType, addr uint16, values []uint16) error {
	blocks, err := d.getBlocks(dt, addr, len(values))
	if err != nil {
		return err
	}
	ml := getWriteLocker(blocks)
	ml.Lock()
	defer ml.Unlock()
	pos := int(addr)
	for _, b := range blocks {
		n := copy(b.values[pos-b.start:], values)
		values = values[n:]
		pos += n
	}
	return nil
}

// readBits reads n bits of type dt starting at addr.
func (d *Data) readBits(dt DataType, addr uint16, n uint16) ([]bool, error) {
	values, err := d.read(dt, addr, int(n))
	if err != nil {
		return nil, err
	}
	bits := make([]bool, len(values))
	for i, v := range values {
		bits[i] = v != 0
	}
	return bits, nil
}

// Handle is the Handler serving requests from this data.
func (d *Data) Handle(ctx context.Context, req Request) (Response, error) {
	switch r := req.(type) {
	case ReadCoilsRequest:
		bits, err := d.readBits(DataTypeCoils, r.Address, r.Quantity)
		if err != nil {
			return nil, err
		}
		return ReadCoilsResponse{Coils: bits}, nil
	case ReadDiscreteInputsRequest:
		bits, err := d.readBits(DataTypeDiscreteInputs, r.Address, r.Quantity)
		if err != nil {
			return nil, err
		}
		return ReadDiscreteInputsResponse{Inputs: bits}, nil
	case ReadHoldingRegistersRequest:
		regs, err := d.read(DataTypeHoldingRegisters, r.Address,
			int(r.Quantity))
		if err != nil {
			return nil, err
		}
		return ReadHoldingRegistersResponse{Registers: regs}, nil
	case ReadInputRegistersRequest:
		regs, err := d.read(DataTypeInputRegisters, r.Address, int(r.Quantity))
		if err != nil {
			return nil, err
		}
		return ReadInputRegistersResponse{Registers: regs}, nil
	case WriteSingleCoilRequest:
		if err := d.SetBool(DataTypeCoils, r.Address, r.Value); err != nil {
			return nil, err
		}
		return r, nil
	case WriteSingleRegisterRequest:
		if err := d.write(
			DataTypeHoldingRegisters, r.Address, []uint16{r.Value},
		); err != nil {
			return nil, err
		}
		return r, nil
	case WriteMultipleRegistersRequest:
		if err := d.write(
			DataTypeHoldingRegisters, r.Address, r.Values,
		); err != nil {
			return nil, err
		}
		return r.ExpectedResponse(), nil
	default:
		return nil, ExceptionIllegalFunction
	}
}

// SetBool sets the bit of type dt at addr.
func (d *Data) SetBool(dt DataType, addr uint16, value bool) error {
	if !dt.IsBit() {
		return fmt.Errorf("%s is not a bit type: %w", dt, ErrInvalidValue)
	}
	var v uint16
	if value {
		v = 1
	}
	return d.write(dt, addr, []uint16{v})
}

// Bool returns the bit of type dt at addr.
func (d *Data) Bool(dt DataType, addr uint16) (bool, error) {
	if !dt.IsBit() {
		return false, fmt.Errorf("%s is not a bit type: %w", dt, ErrInvalidValue)
	}
	bits, err := d.readBits(dt, addr, 1)
	if err != nil {
		return false, err
	}
	return bits[0], nil
}

// SetUint16 sets the register of type dt at addr.
func (d *Data) SetUint16(dt DataType, addr uint16, value uint16) error {
	return d.SetUint16s(dt, addr, value)
}

// SetUint16s sets consecutive registers of type dt starting at addr
// atomically.
func (d *Data) SetUint16s(dt DataType, addr uint16, values ...uint16) error {
	if dt.IsBit() {
		return fmt.Errorf("%s is not a register type: %w", dt, ErrInvalidValue)
	}
	return d.write(dt, addr, values)
}

// Uint16 returns the register of type dt at addr.
func (d *Data) Uint16(dt DataType, addr uint16) (uint16, error) {
	if dt.IsBit() {
		return 0, fmt.Errorf("%s is not a register type: %w", dt, ErrInvalidValue)
	}
	values, err := d.read(dt, addr, 1)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}
