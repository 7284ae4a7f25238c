// Package config loads the node's YAML configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/notnil/canfdnode/canbus"
	"github.com/notnil/canfdnode/console"
	"github.com/notnil/canfdnode/node"
)

// Configuration contains everything the executable needs to start a node.
type Configuration struct {
	Node    NodeConf    `yaml:"node"`
	Bus     BusConf     `yaml:"bus"`
	Board   BoardConf   `yaml:"board"`
	Console ConsoleConf `yaml:"console"`
}

// NodeConf selects the node role and framing.
type NodeConf struct {
	Role          string       `yaml:"role"`
	Mode          string       `yaml:"mode"`
	Channel       int          `yaml:"channel"`
	BufferIndex   uint8        `yaml:"buffer_index"`
	DataLength    uint8        `yaml:"data_length"`
	BitrateSwitch *bool        `yaml:"bitrate_switch"`
	RxFIFO        []FilterConf `yaml:"rx_fifo"`
	EventQueue    int          `yaml:"event_queue"`
}

// FilterConf is one receive FIFO acceptance filter: a frame is accepted when
// (frame.ID & Mask) == (ID & Mask). A zero mask compares all 29 bits.
type FilterConf struct {
	ID   uint32 `yaml:"id"`
	Mask uint32 `yaml:"mask"`
}

// BusConf describes the SocketCAN interface.
type BusConf struct {
	// Interface overrides the default "can<channel>" name.
	Interface string `yaml:"interface"`
	// Configure applies the bit timing below before opening the socket.
	Configure   bool   `yaml:"configure"`
	Bitrate     uint32 `yaml:"bitrate"`
	DataBitrate uint32 `yaml:"data_bitrate"`
	RestartMs   uint32 `yaml:"restart_ms"`
	TxQueueLen  int    `yaml:"txqueuelen"`
	// OpenRetries is how many times opening the interface is retried.
	OpenRetries uint64 `yaml:"open_retries"`
	// LogFrames logs every frame sent and received at debug level.
	LogFrames bool `yaml:"log_frames"`
}

// BoardConf names the GPIO lines.
type BoardConf struct {
	Button string `yaml:"button"`
	LED    string `yaml:"led"`
}

// ConsoleConf selects the console output. An empty port means stdout.
type ConsoleConf struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// Default returns the configuration used for fields a file leaves out.
func Default() Configuration {
	d := node.DefaultConfig()
	brs := d.BitrateSwitch
	return Configuration{
		Node: NodeConf{
			Role:          d.Role.String(),
			Mode:          d.Mode.String(),
			Channel:       d.Channel,
			BufferIndex:   d.BufferIndex,
			DataLength:    d.DataLength,
			BitrateSwitch: &brs,
			EventQueue:    d.EventQueue,
		},
		Bus: BusConf{
			Bitrate:     500000,
			DataBitrate: 2000000,
		},
		Board: BoardConf{
			Button: "GPIO17",
			LED:    "GPIO27",
		},
		Console: ConsoleConf{
			Baud: console.DefaultBaud,
		},
	}
}

// Load loads the configuration file at path on top of the defaults and
// validates it.
func Load(path string) (Configuration, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, fmt.Errorf("read configuration file %s: %w", path, err)
	}
	return Parse(contents)
}

// Parse decodes YAML configuration contents on top of the defaults and
// validates the result.
func Parse(contents []byte) (Configuration, error) {
	conf := Default()
	if err := yaml.UnmarshalStrict(contents, &conf); err != nil {
		return Configuration{}, fmt.Errorf("unmarshal configuration contents: %w", err)
	}
	if _, err := conf.NodeConfig(); err != nil {
		return Configuration{}, err
	}
	return conf, nil
}

// NodeConfig resolves the node section into a typed node configuration.
func (c Configuration) NodeConfig() (node.Config, error) {
	role, err := node.ParseRole(c.Node.Role)
	if err != nil {
		return node.Config{}, err
	}
	mode, err := node.ParseMode(c.Node.Mode)
	if err != nil {
		return node.Config{}, err
	}
	cfg := node.Config{
		Role:        role,
		Mode:        mode,
		Channel:     c.Node.Channel,
		BufferIndex: c.Node.BufferIndex,
		DataLength:  c.Node.DataLength,
		EventQueue:  c.Node.EventQueue,
	}
	if c.Node.BitrateSwitch != nil {
		cfg.BitrateSwitch = *c.Node.BitrateSwitch
	}
	var filters []canbus.FrameFilter
	for _, f := range c.Node.RxFIFO {
		mask := f.Mask
		if mask == 0 {
			mask = 0x1FFFFFFF
		}
		filters = append(filters, canbus.ByMask(f.ID, mask))
	}
	cfg.Accept = canbus.Any(filters...)
	if err := cfg.Validate(); err != nil {
		return node.Config{}, err
	}
	return cfg, nil
}

// InterfaceName returns the SocketCAN interface for the node.
func (c Configuration) InterfaceName() string {
	if c.Bus.Interface != "" {
		return c.Bus.Interface
	}
	return fmt.Sprintf("can%d", c.Node.Channel)
}

// InterfaceOptions returns the bit timing to apply when Bus.Configure is set.
func (c Configuration) InterfaceOptions() canbus.InterfaceOptions {
	mode, _ := node.ParseMode(c.Node.Mode)
	return canbus.InterfaceOptions{
		Bitrate:     c.Bus.Bitrate,
		DataBitrate: c.Bus.DataBitrate,
		FD:          mode == node.FD,
		RestartMs:   c.Bus.RestartMs,
		TxQueueLen:  c.Bus.TxQueueLen,
	}
}
