package canbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterfaceOptions_LinkArgs(t *testing.T) {
	cases := []struct {
		name string
		opts InterfaceOptions
		want []string
	}{
		{
			"nothing set still switches fd off",
			InterfaceOptions{TxQueueLen: 100},
			[]string{"link", "set", "dev", "can1", "type", "can", "fd", "off"},
		},
		{
			"classic bitrate",
			InterfaceOptions{Bitrate: 500000},
			[]string{"link", "set", "dev", "can1", "type", "can", "bitrate", "500000", "fd", "off"},
		},
		{
			"classic restart",
			InterfaceOptions{RestartMs: 100},
			[]string{"link", "set", "dev", "can1", "type", "can", "fd", "off", "restart-ms", "100"},
		},
		{
			"fd with data bitrate and restart",
			InterfaceOptions{Bitrate: 500000, DataBitrate: 2000000, FD: true, RestartMs: 100},
			[]string{"link", "set", "dev", "can1", "type", "can",
				"bitrate", "500000", "dbitrate", "2000000", "fd", "on", "restart-ms", "100"},
		},
		{
			"data bitrate ignored without fd",
			InterfaceOptions{Bitrate: 250000, DataBitrate: 1000000},
			[]string{"link", "set", "dev", "can1", "type", "can", "bitrate", "250000", "fd", "off"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.opts.linkArgs("can1"))
		})
	}
}
