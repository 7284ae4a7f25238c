package canbus

// fdLens maps a 4-bit data length code to the CAN FD payload length.
var fdLens = [16]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

// DLCToLen returns the CAN FD payload length for a data length code.
// Codes above 15 are truncated to their low nibble as the controller would.
func DLCToLen(dlc uint8) uint8 {
	return fdLens[dlc&0x0F]
}

// LenToDLC returns the smallest data length code able to carry n bytes.
// Lengths above 64 map to code 15.
func LenToDLC(n uint8) uint8 {
	for dlc, l := range fdLens {
		if n <= l {
			return uint8(dlc)
		}
	}
	return 15
}

// ValidLen reports whether n is an exact payload length for the frame kind.
func ValidLen(n uint8, fd bool) bool {
	if n <= MaxLen {
		return true
	}
	if !fd {
		return false
	}
	return DLCToLen(LenToDLC(n)) == n
}
