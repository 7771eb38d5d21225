// Command screen-sim puts a simulated kernel behind a terminal UI. The
// virtual panel renders as half-block cells, two pixels per terminal
// row, and every keystroke that is not a control key feeds the console
// driver. With -listen the kernel also accepts remote clients, so
// screen-test and console-echo can run against it over TCP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BeatGlow/screen"
	"github.com/BeatGlow/screen/draw"
	"github.com/BeatGlow/screen/kernel"
	"github.com/BeatGlow/screen/pixel"
	"github.com/BeatGlow/screen/sim"
)

const refreshInterval = 50 * time.Millisecond

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder())
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("238")).Padding(0, 1)
)

type keyMap struct {
	Quit key.Binding
	Feed key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Feed: key.NewBinding(key.WithHelp("other keys", "console input")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Feed, k.Quit}
}

type model struct {
	kernel  *sim.Kernel
	input   *keyBuffer
	keys    keyMap
	demoCtx context.Context // non-nil while the built-in painter runs
	cancel  context.CancelFunc
	status  string
	width   int
	height  int
}

type tickMsg time.Time

type painterDoneMsg struct{ err error }

func main() {
	widthFlag := flag.Int("width", 96, "Panel width")
	heightFlag := flag.Int("height", 64, "Panel height")
	latencyFlag := flag.Duration("latency", time.Millisecond, "Simulated completion latency")
	listenFlag := flag.String("listen", "", "Serve the kernel to remote clients on this address")
	demoFlag := flag.Bool("demo", true, "Animate the panel with a built-in client (turn off when a remote client draws)")
	flag.Parse()

	input := newKeyBuffer()
	defer input.Close()
	k := sim.New(&sim.Config{
		Resolutions: []image.Point{image.Pt(*widthFlag, *heightFlag)},
		Latency:     *latencyFlag,
		Console:     input,
	})
	defer k.Close()

	m := model{kernel: k, input: input, keys: newKeyMap()}
	if *listenFlag != "" {
		l, err := net.Listen("tcp", *listenFlag)
		if err != nil {
			fatal(err)
		}
		defer l.Close()
		go func() { _ = kernel.Serve(l, k) }()
		m.status = fmt.Sprintf("serving %s", l.Addr())
	}
	if *demoFlag {
		m.demoCtx, m.cancel = context.WithCancel(context.Background())
		defer m.cancel()
	}

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fatal(err)
	}
}

func (m model) Init() tea.Cmd {
	if m.demoCtx == nil {
		return tick()
	}
	return tea.Batch(tick(), paintCmd(m.demoCtx, m.kernel))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tick()
	case painterDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("painter stopped: %v", msg.err)
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		in := keyBytes(msg)
		if len(in) == 0 {
			return m, nil
		}
		if n := m.input.Push(in); n < len(in) {
			m.status = fmt.Sprintf("console queue full, dropped %q", in[n:])
		} else {
			m.status = fmt.Sprintf("sent %q to the console driver", in)
		}
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	img := m.kernel.Panel()
	size := img.Bounds().Size()

	view := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("virtual panel %dx%d", size.X, size.Y)),
		panelStyle.Render(halfBlocks(img)),
		statusStyle.Render(m.status),
		footerStyle.Render(renderHelp(m.keys.ShortHelp())),
	)
	if m.width == 0 {
		return view
	}
	return lipgloss.Place(m.width, lipgloss.Height(view), lipgloss.Center, lipgloss.Top, view)
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// paintCmd runs the built-in painter as a command, so an otherwise idle
// panel has something to show.
func paintCmd(ctx context.Context, conn kernel.Conn) tea.Cmd {
	return func() tea.Msg {
		return painterDoneMsg{err: paint(ctx, conn)}
	}
}

// paint bounces a disc over a labeled frame until ctx is canceled.
func paint(ctx context.Context, conn kernel.Conn) error {
	d := screen.New(conn)
	width, height, err := d.Resolution(ctx)
	if err != nil {
		return err
	}
	format, err := d.PixelFormat(ctx)
	if err != nil {
		return err
	}
	size := format.BufferSize(width, height)
	if err := d.Init(size); err != nil {
		return err
	}
	if err := d.SetFrame(ctx, 0, 0, width, height); err != nil {
		return err
	}
	img, err := d.Image(ctx)
	if err != nil {
		return err
	}

	label := "BeatGlow"
	labelAt := image.Pt((width-draw.TextWidth(draw.Face7x13, label))/2, height-8)
	radius := height / 8
	if radius < 2 {
		radius = 2
	}
	pos := image.Pt(width/3, height/3)
	dir := image.Pt(1, 1)

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		img.Clear()
		draw.Box(img, img.Bounds(), pixel.On)
		draw.Text(img, labelAt, label, draw.Face7x13, pixel.On)
		draw.Disc(img, pos, radius, color.RGBA{G: 0xFF, A: 0xFF})
		if err := d.Write(ctx, size); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		pos = pos.Add(dir)
		if pos.X-radius <= 0 || pos.X+radius >= width-1 {
			dir.X = -dir.X
		}
		if pos.Y-radius <= 0 || pos.Y+radius >= height-1 {
			dir.Y = -dir.Y
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

// halfBlocks renders img two rows per line using the upper half block,
// the even row on the foreground and the odd row on the background.
func halfBlocks(img image.Image) string {
	b := img.Bounds()
	var sb strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		if y > b.Min.Y {
			sb.WriteByte('\n')
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			cell := lipgloss.NewStyle().Foreground(termColor(img.At(x, y)))
			if y+1 < b.Max.Y {
				cell = cell.Background(termColor(img.At(x, y+1)))
			}
			sb.WriteString(cell.Render("▀"))
		}
	}
	return sb.String()
}

func termColor(c color.Color) lipgloss.Color {
	r, g, b, _ := c.RGBA()
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", uint8(r>>8), uint8(g>>8), uint8(b>>8)))
}

func renderHelp(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		if help.Key == "" && help.Desc == "" {
			continue
		}
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return strings.Join(parts, "  ")
}

// keyBytes translates a key event into console input. Control keys the
// UI does not own map onto their terminal bytes.
func keyBytes(msg tea.KeyMsg) []byte {
	switch msg.Type {
	case tea.KeyRunes:
		return []byte(string(msg.Runes))
	case tea.KeySpace:
		return []byte{' '}
	case tea.KeyEnter:
		return []byte{'\r'}
	case tea.KeyTab:
		return []byte{'\t'}
	case tea.KeyBackspace:
		return []byte{0x7F}
	case tea.KeyEscape:
		return []byte{0x1B}
	}
	return nil
}

// keyBuffer queues keystrokes for the console capsule. Reads block like
// a real input device; pushes never block the UI loop and drop once the
// queue is full.
type keyBuffer struct {
	ch     chan byte
	closer sync.Once
}

func newKeyBuffer() *keyBuffer {
	return &keyBuffer{ch: make(chan byte, 64)}
}

func (b *keyBuffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	c, ok := <-b.ch
	if !ok {
		return 0, io.EOF
	}
	p[0] = c
	n := 1
	for n < len(p) {
		select {
		case c, ok = <-b.ch:
			if !ok {
				return n, nil
			}
			p[n] = c
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

// Push queues as much of p as fits, reporting how many bytes made it.
func (b *keyBuffer) Push(p []byte) int {
	for i, c := range p {
		select {
		case b.ch <- c:
		default:
			return i
		}
	}
	return len(p)
}

func (b *keyBuffer) Close() error {
	b.closer.Do(func() { close(b.ch) })
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "fatal: "+err.Error())
	os.Exit(1)
}
