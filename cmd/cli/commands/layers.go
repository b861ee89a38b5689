package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/livekit/rtc-session/pkg/config"
	"github.com/livekit/rtc-session/pkg/rtc/layers"
	"github.com/livekit/rtc-session/pkg/rtc/types"
)

var (
	JSONFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "print as JSON",
	}

	LayersFlags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "screenshare",
			Usage: "plan a screen share track instead of a camera",
		},
		&cli.StringFlag{
			Name:  "codec",
			Usage: "codec name, e.g. VP8, VP9, H264 or AV1",
			Value: "VP8",
		},
		&cli.UintFlag{
			Name:  "width",
			Usage: "capture width, defaults to the configured capture format",
		},
		&cli.UintFlag{
			Name:  "height",
			Usage: "capture height, defaults to the configured capture format",
		},
		&cli.UintFlag{
			Name:  "fps",
			Usage: "target frame rate",
		},
		&cli.UintFlag{
			Name:  "bitrate",
			Usage: "max bitrate in bps for the highest layer",
		},
		&cli.UintFlag{
			Name:  "spatial-layers",
			Value: layers.MaxSpatialLayers,
		},
		&cli.UintFlag{
			Name:  "temporal-layers",
			Value: layers.DefaultMaxTemporalLayer,
		},
		&cli.StringFlag{
			Name:  "target",
			Usage: "dimension the bitrate is meant for, as WIDTHxHEIGHT",
		},
		JSONFlag,
	}
)

func PrintLayers(c *cli.Context, conf *config.Config) error {
	trackType := types.TrackTypeVideo
	format := conf.Publisher.Camera.ToCaptureFormat()
	if c.Bool("screenshare") {
		trackType = types.TrackTypeScreenShare
		format = conf.Publisher.ScreenShare.ToCaptureFormat()
	}
	if c.IsSet("width") {
		format.Width = uint32(c.Uint("width"))
	}
	if c.IsSet("height") {
		format.Height = uint32(c.Uint("height"))
	}

	option := types.PublishOption{
		TrackType:         trackType,
		Codec:             &types.Codec{Name: strings.ToUpper(c.String("codec"))},
		Bitrate:           uint32(c.Uint("bitrate")),
		Fps:               uint32(c.Uint("fps")),
		MaxSpatialLayers:  uint32(c.Uint("spatial-layers")),
		MaxTemporalLayers: uint32(c.Uint("temporal-layers")),
	}
	if target := c.String("target"); target != "" {
		dimension, err := parseDimension(target)
		if err != nil {
			return err
		}
		option.VideoDimension = &dimension
	}

	encodings := layers.ComputeLayers(format, option)
	if c.Bool("json") {
		PrintJSON(encodings)
		return nil
	}

	rows := make([][]string, 0, len(encodings))
	for _, e := range encodings {
		rows = append(rows, []string{
			e.Rid,
			layers.RidToVideoQuality(e.Rid).String(),
			fmt.Sprintf("%dx%d", e.Width, e.Height),
			strconv.FormatFloat(e.ScaleResolutionDownBy, 'f', -1, 64),
			humanize.SIWithDigits(float64(e.MaxBitrateBps), 2, "bps"),
			strconv.Itoa(int(e.MaxFramerate)),
			e.ScalabilityMode,
		})
	}
	printTable([]string{"RID", "Quality", "Resolution", "Scale", "Bitrate", "FPS", "Scalability"}, rows)
	return nil
}

func PrintConfig(c *cli.Context, conf *config.Config) error {
	if c.Bool("json") {
		PrintJSON(conf)
		return nil
	}
	return PrintYAML(conf)
}

func parseDimension(s string) (types.VideoDimension, error) {
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return types.VideoDimension{}, fmt.Errorf("invalid dimension %q, expected WIDTHxHEIGHT", s)
	}
	width, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return types.VideoDimension{}, fmt.Errorf("invalid width in %q: %w", s, err)
	}
	height, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return types.VideoDimension{}, fmt.Errorf("invalid height in %q: %w", s, err)
	}
	return types.VideoDimension{Width: uint32(width), Height: uint32(height)}, nil
}
