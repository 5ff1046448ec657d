package profile

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/calvinmclean/motiondriver"
)

// Profile describes the servo configuration of one board build. It is applied with CFG commands
// after every power cycle since the board keeps no settings
type Profile struct {
	Name           string           `yaml:"name"`
	DefaultChannel *int             `yaml:"default_channel"`
	Channels       []ChannelProfile `yaml:"channels"`
}

// ChannelProfile overrides the range and sweep step of one channel. Zero values leave the board default
type ChannelProfile struct {
	Channel    int    `yaml:"channel"`
	MinUs      uint16 `yaml:"min_us"`
	MaxUs      uint16 `yaml:"max_us"`
	StepUs     uint16 `yaml:"step_us"`
	IntervalMs uint32 `yaml:"interval_ms"`
}

// Configurer receives the settings of a profile
type Configurer interface {
	SetDefaultChannel(channel int)
	ConfigureRange(channel int, minPulseUs, maxPulseUs uint16)
	ConfigureStep(channel int, stepUs uint16, intervalMs uint32)
}

// Load reads a profile from a YAML file
func Load(filename string) (Profile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Profile{}, fmt.Errorf("error reading profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML profile
func Parse(data []byte) (Profile, error) {
	var p Profile
	err := yaml.UnmarshalStrict(data, &p)
	if err != nil {
		return Profile{}, fmt.Errorf("error parsing profile: %w", err)
	}

	err = p.Validate()
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks every channel index and that ranges are complete
func (p Profile) Validate() error {
	var errs []error
	if p.DefaultChannel != nil && !validChannel(*p.DefaultChannel) {
		errs = append(errs, fmt.Errorf("invalid default channel %d", *p.DefaultChannel))
	}

	for i, ch := range p.Channels {
		if !validChannel(ch.Channel) {
			errs = append(errs, fmt.Errorf("channels[%d]: invalid channel %d", i, ch.Channel))
		}
		if (ch.MinUs == 0) != (ch.MaxUs == 0) {
			errs = append(errs, fmt.Errorf("channels[%d]: min_us and max_us must be set together", i))
		}
		if ch.StepUs == 0 && ch.IntervalMs != 0 {
			errs = append(errs, fmt.Errorf("channels[%d]: interval_ms requires step_us", i))
		}
	}
	return errors.Join(errs...)
}

// Commands renders the profile as the CFG lines that apply it, without terminators
func (p Profile) Commands() []string {
	var cmds []string
	for _, ch := range p.Channels {
		if ch.MaxUs != 0 {
			cmds = append(cmds, fmt.Sprintf("CFG RANGE %d %d %d", ch.Channel, ch.MinUs, ch.MaxUs))
		}
		if ch.StepUs != 0 {
			cmds = append(cmds, fmt.Sprintf("CFG STEP %d %d %d", ch.Channel, ch.StepUs, ch.IntervalMs))
		}
	}
	if p.DefaultChannel != nil {
		cmds = append(cmds, fmt.Sprintf("CFG CHANNEL %d", *p.DefaultChannel))
	}
	return cmds
}

// ApplyTo sets the profile directly on an engine, in the same order as Commands
func (p Profile) ApplyTo(c Configurer) {
	for _, ch := range p.Channels {
		if ch.MaxUs != 0 {
			c.ConfigureRange(ch.Channel, ch.MinUs, ch.MaxUs)
		}
		if ch.StepUs != 0 {
			c.ConfigureStep(ch.Channel, ch.StepUs, ch.IntervalMs)
		}
	}
	if p.DefaultChannel != nil {
		c.SetDefaultChannel(*p.DefaultChannel)
	}
}

func validChannel(ch int) bool {
	return ch >= 0 && ch < motiondriver.ServoChannelCount
}
