package modbus

// UnitID describes a Modbus unit identifier. The UnitID identifies a Modbus
// server device. On a serial line, a UnitID is a complete destination.
type UnitID uint8

// Unit identifier constants.
const (
	// UnitBroadcast is the unit identifier used for broadcasts. Broadcast
	// requests are never answered.
	UnitBroadcast UnitID = 0

	// UnitIndividualMin is the minimum valid unit ID for an individual
	// Modbus server.
	UnitIndividualMin UnitID = 1

	// UnitIndividualMax is the maximum valid unit ID for an individual
	// Modbus server. Higher IDs are reserved.
	UnitIndividualMax UnitID = 247

	// UnitTCP is the unit identifier conventionally addressing a Modbus/TCP
	// server itself.
	UnitTCP UnitID = 255
)

// IsValidSerial checks whether this unit identifier is valid for
// an individual Modbus server.
func (uid UnitID) IsValidSerial() bool {
	return uid >= UnitIndividualMin && uid <= UnitIndividualMax
}

// IsBroadcast checks whether this is the broadcast unit identifier.
func (uid UnitID) IsBroadcast() bool {
	return uid == UnitBroadcast
}

// Unit implements Dst.
func (uid UnitID) Unit() UnitID {
	return uid
}
