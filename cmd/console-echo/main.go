// Command console-echo reads characters from the kernel console driver
// and echoes them back, one read per character. Without -addr it runs
// against an in-process simulated kernel fed from standard input.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/BeatGlow/screen/console"
	"github.com/BeatGlow/screen/kernel"
	"github.com/BeatGlow/screen/sim"
)

func main() {
	addrFlag := flag.String("addr", "", "Kernel address (default: in-process simulator reading stdin)")
	flag.Parse()

	var (
		conn kernel.Conn
		err  error
	)
	if *addrFlag != "" {
		conn, err = kernel.Dial(*addrFlag)
	} else {
		conn = sim.New(&sim.Config{Console: os.Stdin})
	}
	if err != nil {
		fatal(err)
	}
	defer conn.Close()

	if err := run(context.Background(), console.New(conn), os.Stdout); err != nil {
		os.Exit(1)
	}
}

// run echoes characters until a read fails or ctx is done. A failed read
// is reported on out; cancellation is a clean stop.
func run(ctx context.Context, d *console.Device, out io.Writer) error {
	for {
		c, err := d.Getch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			fmt.Fprint(out, "\ngetch() failed!\r\n")
			return err
		}
		fmt.Fprintf(out, "Got character: '%c'\r\n", c)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "fatal: "+err.Error())
	os.Exit(1)
}
