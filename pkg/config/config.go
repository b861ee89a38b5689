// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/rtc-session/pkg/rtc/types"
)

const (
	generatedCLIFlagUsage = "generated"
	envPrefix             = "RTCSESSION_"
)

var (
	ErrInvalidPortRange  = errors.New("rtc.port_range_start must not exceed rtc.port_range_end")
	ErrInvalidDimensions = errors.New("subscriber.throttled_dimension must not exceed subscriber.default_dimension")
)

type Config struct {
	SFU            SFUConfig        `yaml:"sfu,omitempty"`
	RTC            RTCConfig        `yaml:"rtc,omitempty"`
	Publisher      PublisherConfig  `yaml:"publisher,omitempty"`
	Subscriber     SubscriberConfig `yaml:"subscriber,omitempty"`
	PrometheusPort uint32           `yaml:"prometheus_port,omitempty"`
	Logging        LoggingConfig    `yaml:"logging,omitempty"`

	Development bool `yaml:"development,omitempty"`
}

type SFUConfig struct {
	URL string `yaml:"url,omitempty"`
	// bearer token sent with every request
	Token          string        `yaml:"token,omitempty"`
	TokenFile      string        `yaml:"token_file,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
}

type RTCConfig struct {
	STUNServers       []string `yaml:"stun_servers,omitempty"`
	ICEPortRangeStart uint16   `yaml:"port_range_start,omitempty"`
	ICEPortRangeEnd   uint16   `yaml:"port_range_end,omitempty"`
	NodeIP            string   `yaml:"node_ip,omitempty"`
	UseExternalIP     bool     `yaml:"use_external_ip,omitempty"`
	// disable mDNS host candidates
	DisableMDNS      bool          `yaml:"disable_mdns,omitempty"`
	NegotiationDelay time.Duration `yaml:"negotiation_delay,omitempty"`
}

type CaptureFormatConfig struct {
	Width  uint32 `yaml:"width,omitempty"`
	Height uint32 `yaml:"height,omitempty"`
	Fps    uint32 `yaml:"fps,omitempty"`
}

type PublisherConfig struct {
	Camera      CaptureFormatConfig `yaml:"camera,omitempty"`
	ScreenShare CaptureFormatConfig `yaml:"screen_share,omitempty"`
	StereoAudio bool                `yaml:"stereo_audio,omitempty"`
}

type DimensionConfig struct {
	Width  uint32 `yaml:"width,omitempty"`
	Height uint32 `yaml:"height,omitempty"`
}

func (c CaptureFormatConfig) ToCaptureFormat() types.CaptureFormat {
	return types.CaptureFormat{Width: c.Width, Height: c.Height, Fps: c.Fps}
}

func (d DimensionConfig) ToVideoDimension() types.VideoDimension {
	return types.VideoDimension{Width: d.Width, Height: d.Height}
}

type SubscriberConfig struct {
	DefaultDimension        DimensionConfig `yaml:"default_dimension,omitempty"`
	ThrottledDimension      DimensionConfig `yaml:"throttled_dimension,omitempty"`
	MaxDefaultSubscriptions int             `yaml:"max_default_subscriptions,omitempty"`
	SubscriptionDelay       time.Duration   `yaml:"subscription_delay,omitempty"`
	TrackOwnerCacheSize     int             `yaml:"track_owner_cache_size,omitempty"`
	EnableStereo            bool            `yaml:"enable_stereo,omitempty"`
}

type LoggingConfig struct {
	logger.Config `yaml:",inline"`
	PionLevel     string `yaml:"pion_level,omitempty"`
}

var DefaultStunServers = []string{
	"stun.l.google.com:19302",
	"stun1.l.google.com:19302",
}

var DefaultConfig = Config{
	SFU: SFUConfig{
		RequestTimeout: 10 * time.Second,
	},
	RTC: RTCConfig{
		STUNServers:      DefaultStunServers,
		NegotiationDelay: 500 * time.Millisecond,
	},
	Publisher: PublisherConfig{
		Camera:      CaptureFormatConfig{Width: 1280, Height: 720, Fps: 30},
		ScreenShare: CaptureFormatConfig{Width: 1920, Height: 1080, Fps: 15},
	},
	Subscriber: SubscriberConfig{
		DefaultDimension:        DimensionConfig{Width: 720, Height: 1280},
		ThrottledDimension:      DimensionConfig{Width: 180, Height: 320},
		MaxDefaultSubscriptions: 5,
		SubscriptionDelay:       300 * time.Millisecond,
		TrackOwnerCacheSize:     1000,
		EnableStereo:            true,
	},
	Logging: LoggingConfig{
		PionLevel: "error",
	},
}

func NewConfig(confString string, strictMode bool, c *cli.Context, baseFlags []cli.Flag) (*Config, error) {
	// start with defaults
	marshalled, err := yaml.Marshal(&DefaultConfig)
	if err != nil {
		return nil, err
	}

	var conf Config
	err = yaml.Unmarshal(marshalled, &conf)
	if err != nil {
		return nil, err
	}

	if confString != "" {
		decoder := yaml.NewDecoder(strings.NewReader(confString))
		decoder.KnownFields(strictMode)
		if err := decoder.Decode(&conf); err != nil {
			return nil, fmt.Errorf("could not parse config: %v", err)
		}
	}

	if c != nil {
		if err := conf.updateFromCLI(c, baseFlags); err != nil {
			return nil, err
		}
	}

	// expand env vars in filenames
	file, err := homedir.Expand(os.ExpandEnv(conf.SFU.TokenFile))
	if err != nil {
		return nil, err
	}
	conf.SFU.TokenFile = file

	if conf.Logging.Level == "" && conf.Development {
		conf.Logging.Level = "debug"
	}
	if conf.Logging.PionLevel != "" {
		if conf.Logging.ComponentLevels == nil {
			conf.Logging.ComponentLevels = map[string]string{}
		}
		conf.Logging.ComponentLevels["pion"] = conf.Logging.PionLevel
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate checks the settings that cannot be defaulted.
func (conf *Config) Validate() error {
	if conf.RTC.ICEPortRangeStart != 0 && conf.RTC.ICEPortRangeEnd != 0 &&
		conf.RTC.ICEPortRangeStart > conf.RTC.ICEPortRangeEnd {
		return ErrInvalidPortRange
	}
	d, th := conf.Subscriber.DefaultDimension, conf.Subscriber.ThrottledDimension
	if th.Width > d.Width || th.Height > d.Height {
		return ErrInvalidDimensions
	}
	return nil
}

// ResolveToken returns the configured token, reading token_file when no inline token is set.
func (conf *Config) ResolveToken() (string, error) {
	if conf.SFU.Token != "" || conf.SFU.TokenFile == "" {
		return conf.SFU.Token, nil
	}
	b, err := os.ReadFile(conf.SFU.TokenFile)
	if err != nil {
		return "", errors.Wrap(err, "could not read token file")
	}
	return strings.TrimSpace(string(b)), nil
}

type configNode struct {
	TypeNode  reflect.Value
	TagPrefix string
}

func (conf *Config) ToCLIFlagNames(existingFlags []cli.Flag) map[string]reflect.Value {
	existingFlagNames := map[string]bool{}
	for _, flag := range existingFlags {
		for _, flagName := range flag.Names() {
			existingFlagNames[flagName] = true
		}
	}

	flagNames := map[string]reflect.Value{}
	var currNode configNode
	nodes := []configNode{{reflect.ValueOf(conf).Elem(), ""}}
	for len(nodes) > 0 {
		currNode, nodes = nodes[0], nodes[1:]
		for i := 0; i < currNode.TypeNode.NumField(); i++ {
			// inspect yaml tag from struct field to get path
			field := currNode.TypeNode.Type().Field(i)
			yamlTagArray := strings.SplitN(field.Tag.Get("yaml"), ",", 2)
			yamlTag := yamlTagArray[0]
			isInline := len(yamlTagArray) > 1 && yamlTagArray[1] == "inline"
			if (yamlTag == "" && (!isInline || currNode.TagPrefix == "")) || yamlTag == "-" {
				continue
			}
			yamlPath := yamlTag
			if currNode.TagPrefix != "" {
				if isInline {
					yamlPath = currNode.TagPrefix
				} else {
					yamlPath = fmt.Sprintf("%s.%s", currNode.TagPrefix, yamlTag)
				}
			}
			if existingFlagNames[yamlPath] {
				continue
			}

			value := currNode.TypeNode.Field(i)
			if value.Kind() == reflect.Struct {
				nodes = append(nodes, configNode{value, yamlPath})
			} else {
				flagNames[yamlPath] = value
			}
		}
	}

	return flagNames
}

// GenerateCLIFlags derives one flag per scalar config field, named by its yaml path.
func GenerateCLIFlags(existingFlags []cli.Flag, hidden bool) ([]cli.Flag, error) {
	blankConfig := &Config{}
	flags := make([]cli.Flag, 0)
	for name, value := range blankConfig.ToCLIFlagNames(existingFlags) {
		kind := value.Kind()
		if kind == reflect.Ptr {
			kind = value.Type().Elem().Kind()
		}

		var flag cli.Flag
		envVar := envPrefix + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))

		switch {
		case value.Type() == reflect.TypeOf(time.Duration(0)):
			flag = &cli.DurationFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Bool:
			flag = &cli.BoolFlag{
				Name:   name,
				Usage:  generatedCLIFlagUsage,
				Hidden: hidden,
			}
		case kind == reflect.String:
			flag = &cli.StringFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Int, kind == reflect.Int32, kind == reflect.Int64:
			flag = &cli.Int64Flag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Uint8, kind == reflect.Uint16, kind == reflect.Uint32, kind == reflect.Uint64:
			flag = &cli.Uint64Flag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Float32, kind == reflect.Float64:
			flag = &cli.Float64Flag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Slice:
			flag = &cli.StringSliceFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Map, kind == reflect.Struct:
			continue
		default:
			return flags, fmt.Errorf("cli flag generation unsupported for config type: %s is a %s", name, kind.String())
		}

		flags = append(flags, flag)
	}

	return flags, nil
}

func (conf *Config) updateFromCLI(c *cli.Context, baseFlags []cli.Flag) error {
	generatedFlagNames := conf.ToCLIFlagNames(baseFlags)
	for _, flag := range c.App.Flags {
		flagName := flag.Names()[0]

		// c.IsSet is always false in unit tests
		if !c.IsSet(flagName) && c.App.Name != "test" {
			continue
		}

		configValue, ok := generatedFlagNames[flagName]
		if !ok {
			continue
		}

		if configValue.Type() == reflect.TypeOf(time.Duration(0)) {
			configValue.SetInt(int64(c.Duration(flagName)))
			continue
		}

		kind := configValue.Kind()
		if kind == reflect.Ptr {
			configValue.Set(reflect.New(configValue.Type().Elem()))

			kind = configValue.Type().Elem().Kind()
			configValue = configValue.Elem()
		}

		switch kind {
		case reflect.Bool:
			configValue.SetBool(c.Bool(flagName))
		case reflect.String:
			configValue.SetString(c.String(flagName))
		case reflect.Int, reflect.Int32, reflect.Int64:
			configValue.SetInt(c.Int64(flagName))
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			configValue.SetUint(c.Uint64(flagName))
		case reflect.Float32, reflect.Float64:
			configValue.SetFloat(c.Float64(flagName))
		case reflect.Slice:
			if configValue.Type().Elem().Kind() != reflect.String {
				return fmt.Errorf("unsupported generated cli flag type for config: %s is a %s", flagName, configValue.Type())
			}
			configValue.Set(reflect.ValueOf(c.StringSlice(flagName)))
		default:
			return fmt.Errorf("unsupported generated cli flag type for config: %s is a %s", flagName, kind.String())
		}
	}

	if c.IsSet("dev") {
		conf.Development = c.Bool("dev")
	}
	if c.IsSet("url") {
		conf.SFU.URL = c.String("url")
	}
	if c.IsSet("token") {
		conf.SFU.Token = c.String("token")
	}
	if c.IsSet("node-ip") {
		conf.RTC.NodeIP = c.String("node-ip")
	}
	return nil
}
