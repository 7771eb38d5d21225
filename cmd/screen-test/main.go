// Command screen-test drives a screen driver through its whole surface:
// mode enumeration, buffer init, then an endless fill animation that
// cycles rotation and inversion.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	periphhost "periph.io/x/host/v3"

	"github.com/BeatGlow/screen"
	"github.com/BeatGlow/screen/host"
	"github.com/BeatGlow/screen/kernel"
	"github.com/BeatGlow/screen/sim"
)

const bufferSize = 10 * 1024

func main() {
	addrFlag := flag.String("addr", "localhost:9021", "Kernel address for tcp connections")
	portFlag := flag.String("port", "", "SPI port (default: first available)")
	hzFlag := flag.Int("hz", 0, "SPI clock override")
	dcPinFlag := flag.String("dc", host.DefaultConfig.DC, "Data/Command GPIO pin (DC)")
	resetPinFlag := flag.String("reset", host.DefaultConfig.Reset, "Reset GPIO pin")
	blPinFlag := flag.String("bl", "", "Backlight GPIO pin")
	widthFlag := flag.Int("width", 0, "Panel width")
	heightFlag := flag.Int("height", 0, "Panel height")
	rotateFlag := flag.String("rotate", "", "Panel rotation")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <sim|tcp|spi> [driver]\n", os.Args[0])
		os.Exit(1)
	}

	var rotation screen.Rotation
	switch *rotateFlag {
	case "", "no", "0":
		rotation = screen.NoRotation
	case "90", "right", "cw":
		rotation = screen.Rotate90
	case "180", "flip":
		rotation = screen.Rotate180
	case "270", "left", "ccw":
		rotation = screen.Rotate270
	default:
		fatal(fmt.Errorf("invalid rotation %q specified", *rotateFlag))
	}

	var (
		conn kernel.Conn
		err  error
	)
	switch connType := flag.Arg(0); connType {
	case "sim":
		conn = sim.New(&sim.Config{Latency: 2 * time.Millisecond})
	case "tcp":
		conn, err = kernel.Dial(*addrFlag)
	case "spi":
		if _, err = periphhost.Init(); err != nil {
			break
		}
		config := &host.Config{
			Port:      *portFlag,
			Hz:        *hzFlag,
			DC:        *dcPinFlag,
			Reset:     *resetPinFlag,
			Backlight: *blPinFlag,
			Width:     *widthFlag,
			Height:    *heightFlag,
			Rotation:  rotation,
		}
		switch driver := strings.ToLower(flag.Arg(1)); driver {
		case "st7735":
			conn, err = host.OpenST7735(config)
		case "ssd1306":
			conn, err = host.OpenSSD1306(config)
		default:
			err = fmt.Errorf("unsupported driver %q", driver)
		}
	default:
		err = fmt.Errorf("unsupported connection type %q", connType)
	}
	if err != nil {
		fatal(err)
	}
	defer conn.Close()
	if s, ok := conn.(fmt.Stringer); ok {
		fmt.Printf("using driver: %s\n", s)
	}

	ctx := context.Background()
	d := screen.New(conn)

	fmt.Println("available resolutions")
	resolutions, err := d.SupportedResolutions(ctx)
	if err != nil {
		fatal(err)
	}
	for idx := 0; idx < resolutions; idx++ {
		width, height, err := d.SupportedResolution(ctx, idx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("  %d x %d\n", width, height)
	}

	fmt.Println("available colors depths")
	formats, err := d.SupportedPixelFormats(ctx)
	if err != nil {
		fatal(err)
	}
	for idx := 0; idx < formats; idx++ {
		format, err := d.SupportedPixelFormat(ctx, idx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("  %d bpp\n", format.BitsPerPixel())
	}

	if err := d.Init(bufferSize); err != nil {
		fmt.Println("buffer allocation failed")
		fatal(err)
	}
	fmt.Println("screen init")

	if err := d.SetBrightness(ctx, 100); err != nil {
		fatal(err)
	}
	width, height, err := d.Resolution(ctx)
	if err != nil {
		fatal(err)
	}
	if err := d.SetFrame(ctx, 0, 0, width, height); err != nil {
		fatal(err)
	}
	if err := d.Fill(ctx, 0); err != nil {
		fatal(err)
	}

	fmt.Println("hit control-c to stop...")
	invert := false
	for i := 0; ; i++ {
		if i%4 == 3 {
			invert = !invert
			if err := d.SetInvert(ctx, invert); err != nil {
				fatal(err)
			}
		}
		// Panels that cannot rotate reject some angles; the animation
		// carries on unrotated.
		_ = d.SetRotation(ctx, screen.Rotation(i%4))

		squares(ctx, d, 0xF800, 0x0000)
		squares(ctx, d, 0x0000, 0x07F0)

		if err := d.SetFrame(ctx, 0, 0, width, height); err != nil {
			fatal(err)
		}
		if err := d.Fill(ctx, 0x0000); err != nil {
			fatal(err)
		}
	}
}

// squares paints the two 30x30 squares and holds them for a second.
func squares(ctx context.Context, d *screen.Device, left, right uint16) {
	if err := d.SetFrame(ctx, 10, 20, 30, 30); err != nil {
		fatal(err)
	}
	if err := d.Fill(ctx, left); err != nil {
		fatal(err)
	}
	if err := d.SetFrame(ctx, 88, 20, 30, 30); err != nil {
		fatal(err)
	}
	if err := d.Fill(ctx, right); err != nil {
		fatal(err)
	}
	time.Sleep(time.Second)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "fatal: "+err.Error())
	os.Exit(1)
}
