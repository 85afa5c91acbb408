package hardware

// INA3221 register addresses
const (
	RegINAConfig = 0x00 // Configuration
	RegINAShunt1 = 0x01 // Channel 1 shunt voltage
	RegINABus1   = 0x02 // Channel 1 bus voltage
	RegINAShunt2 = 0x03 // Channel 2 shunt voltage
	RegINABus2   = 0x04 // Channel 2 bus voltage
	RegINAShunt3 = 0x05 // Channel 3 shunt voltage
	RegINABus3   = 0x06 // Channel 3 bus voltage
	RegINAMfgID  = 0xFE // Manufacturer ID, reads "TI"
	RegINADieID  = 0xFF // Die ID
)

// INA3221 identification register contents
const (
	INAManufacturerTI = 0x5449 // "TI"
	INADieID          = 0x3220
)

// INA3221 configuration register (0x00) fields
const (
	INAConfigReset    = 1 << 15
	INAConfigAvgShift = 9
	INAConfigAvgMask  = 0b111 << INAConfigAvgShift
)

// INA3221 scaling. Both voltage registers hold a signed value in bits 15..3.
const (
	INAShuntLSB   = 40e-6 // V
	INABusLSB     = 8e-3  // V
	INAValueShift = 3
)

// DefaultINA3221Addr is the address with A0 tied to GND.
const DefaultINA3221Addr = 0x40

// TMP100 register addresses
const (
	RegTMPTemp   = 0x00 // Temperature, 12 bit left justified
	RegTMPConfig = 0x01 // Configuration
)

// TMP100Config12Bit selects 12 bit resolution (R1 and R0 set) in continuous conversion.
const TMP100Config12Bit = 0x60

// DefaultTMP100Addr is the address with ADD0 and ADD1 tied to GND.
const DefaultTMP100Addr = 0x48

// inaAverages lists the sample counts selectable in the AVG field, indexed by field value.
var inaAverages = []int{1, 4, 16, 64, 128, 256, 512, 1024}
