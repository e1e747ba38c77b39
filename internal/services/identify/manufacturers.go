package identify

// Bluetooth SIG company identifiers for vendors this package decodes.
const (
	ManufacturerApple   uint16 = 0x004C
	ManufacturerSamsung uint16 = 0x0075
	ManufacturerTile    uint16 = 0x00ED
	ManufacturerChipolo uint16 = 0x033E
)

// manufacturerNames resolves company identifiers to display names.
var manufacturerNames = map[uint16]string{
	0x0006:              "Microsoft",
	0x000F:              "Broadcom",
	0x004C:              "Apple",
	0x0075:              "Samsung Electronics",
	0x00E0:              "Google",
	0x0087:              "Garmin",
	0x0157:              "Anhui Huami",
	0x038F:              "Xiaomi",
	ManufacturerTile:    "Tile",
	ManufacturerChipolo: "Chipolo",
}

// siliconVendors are chipset/module makers whose identifiers say nothing
// about the finished product. Matches against them are suppressed from the
// displayed manufacturer name.
var siliconVendors = map[uint16]struct{}{
	0x000D: {}, // Texas Instruments
	0x0030: {}, // STMicroelectronics
	0x0059: {}, // Nordic Semiconductor
	0x005D: {}, // Realtek Semiconductor
	0x00D2: {}, // Dialog Semiconductor
	0x0131: {}, // Cypress Semiconductor
	0x0211: {}, // Telink Semiconductor
	0x02E5: {}, // Espressif
}

// ManufacturerName resolves a company identifier for display. Silicon
// vendors resolve to the empty string regardless of a table match.
func ManufacturerName(id uint16) string {
	if _, denied := siliconVendors[id]; denied {
		return ""
	}
	return manufacturerNames[id]
}
