package canbus

import "strconv"

// InterfaceOptions controls CAN interface bit timing applied through the
// system `ip` tool (iproute2). Zero fields are left unchanged.
type InterfaceOptions struct {
	// Bitrate is the nominal (arbitration) bit-rate in bits per second.
	Bitrate uint32
	// DataBitrate is the CAN FD data-phase bit-rate. Only used when FD is set.
	DataBitrate uint32
	// FD enables CAN FD on the controller.
	FD bool
	// RestartMs sets automatic bus-off recovery delay in milliseconds.
	RestartMs uint32
	// TxQueueLen sets the transmit queue length (number of packets).
	TxQueueLen int
}

// linkArgs builds the `ip link set` arguments for the CAN type options.
// FD is always set explicitly, so a controller left in FD mode by an earlier
// run is switched back for classical framing.
func (o InterfaceOptions) linkArgs(name string) []string {
	var args []string
	if o.Bitrate != 0 {
		args = append(args, "bitrate", strconv.FormatUint(uint64(o.Bitrate), 10))
	}
	if o.FD {
		if o.DataBitrate != 0 {
			args = append(args, "dbitrate", strconv.FormatUint(uint64(o.DataBitrate), 10))
		}
		args = append(args, "fd", "on")
	} else {
		args = append(args, "fd", "off")
	}
	if o.RestartMs != 0 {
		args = append(args, "restart-ms", strconv.FormatUint(uint64(o.RestartMs), 10))
	}
	return append([]string{"link", "set", "dev", name, "type", "can"}, args...)
}
