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

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/rtc-session/cmd/cli/commands"
	"github.com/livekit/rtc-session/pkg/config"
	serverlogger "github.com/livekit/rtc-session/pkg/logger"
)

var baseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Usage: "path to config file",
	},
	&cli.StringFlag{
		Name:    "config-body",
		Usage:   "config in YAML, typically passed in as an environment var in a container",
		EnvVars: []string{"RTCSESSION_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "url",
		Usage:   "base URL of the SFU signal service",
		EnvVars: []string{"SFU_URL"},
	},
	&cli.StringFlag{
		Name:    "token",
		Usage:   "access token sent to the SFU",
		EnvVars: []string{"SFU_TOKEN"},
	},
	&cli.StringFlag{
		Name:    "node-ip",
		Usage:   "IP address advertised in ICE candidates. Automatically determined when use_external_ip is set",
		EnvVars: []string{"NODE_IP"},
	},
	&cli.BoolFlag{
		Name:  "dev",
		Usage: "sets log-level to debug and console formatter",
	},
	&cli.BoolFlag{
		Name:   "disable-strict-config",
		Usage:  "disables strict config parsing",
		Hidden: true,
	},
}

func main() {
	generatedFlags, err := config.GenerateCLIFlags(baseFlags, true)
	if err != nil {
		fmt.Println(err)
	}

	app := &cli.App{
		Name:  "rtc-session",
		Usage: "publish media to an SFU and inspect publish settings",
		Flags: append(baseFlags, generatedFlags...),
		Commands: []*cli.Command{
			{
				Name:   "publish",
				Usage:  "publish ivf, ogg or h264 files until interrupted",
				Flags:  commands.PublishFlags,
				Action: withConfig(commands.Publish),
			},
			{
				Name:   "layers",
				Usage:  "print the encodings a video track would be published with",
				Flags:  commands.LayersFlags,
				Action: withConfig(commands.PrintLayers),
			},
			{
				Name:   "config",
				Usage:  "print the effective configuration",
				Flags:  []cli.Flag{commands.JSONFlag},
				Action: withConfig(commands.PrintConfig),
			},
			{
				Name:   "help-verbose",
				Usage:  "prints app help, including all generated configuration flags",
				Action: helpVerbose,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func withConfig(action func(*cli.Context, *config.Config) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		conf, err := getConfig(c)
		if err != nil {
			return err
		}
		return action(c, conf)
	}
}

func getConfig(c *cli.Context) (*config.Config, error) {
	confString, err := getConfigString(c.String("config"), c.String("config-body"))
	if err != nil {
		return nil, err
	}

	strictMode := true
	if c.Bool("disable-strict-config") {
		strictMode = false
	}

	conf, err := config.NewConfig(confString, strictMode, c, baseFlags)
	if err != nil {
		return nil, err
	}
	serverlogger.InitFromConfig(&conf.Logging, "rtc-session")

	if conf.Development {
		logger.Infow("starting in development mode")
	}
	return conf, nil
}

func helpVerbose(c *cli.Context) error {
	generatedFlags, err := config.GenerateCLIFlags(baseFlags, false)
	if err != nil {
		return err
	}

	c.App.Flags = append(baseFlags, generatedFlags...)
	return cli.ShowAppHelp(c)
}

func getConfigString(configFile string, inConfigBody string) (string, error) {
	if inConfigBody != "" || configFile == "" {
		return inConfigBody, nil
	}

	outConfigBody, err := os.ReadFile(configFile)
	if err != nil {
		return "", err
	}

	return string(outConfigBody), nil
}
