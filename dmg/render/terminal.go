// Package render draws a running console to a terminal using tcell,
// encoding each pair of Game Boy scanlines as one row of half-block
// characters.
package render

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/arlojames/dmgcore/dmg"
	"github.com/arlojames/dmgcore/dmg/memory"
	"github.com/arlojames/dmgcore/dmg/video"
)

const (
	width     = video.FramebufferWidth
	height    = video.FramebufferHeight
	frameTime = time.Second / 60

	minTermWidth  = width + 2
	minTermHeight = height/2 + 3
)

// holdFrames is how long a terminal keypress stays "held" on the joypad.
// Terminals only deliver key-down events, so each press is released again
// after a few frames unless the key repeats first.
const holdFrames = 6

// TerminalRenderer drives a Console at 60Hz and displays its framebuffer
// in a terminal window, forwarding keyboard input to the joypad. All
// console access happens on the frame loop goroutine: tcell events are
// funneled through a channel and injected between frames.
type TerminalRenderer struct {
	screen  tcell.Screen
	console *dmg.Console

	keys chan memory.JoypadKey
	quit chan struct{}
	held map[memory.JoypadKey]int
}

func NewTerminalRenderer(console *dmg.Console) (*TerminalRenderer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}

	return &TerminalRenderer{
		screen:  screen,
		console: console,
		keys:    make(chan memory.JoypadKey, 16),
		quit:    make(chan struct{}),
		held:    make(map[memory.JoypadKey]int),
	}, nil
}

func (t *TerminalRenderer) Run() error {
	defer t.screen.Fini()

	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.Clear()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)

	go t.pollEvents()

	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.injectInput()
			t.console.RunUntilFrame()
			t.render()
			t.screen.Show()
		case <-t.quit:
			return nil
		case <-signals:
			slog.Info("received signal, stopping")
			return nil
		}
	}
}

// pollEvents runs on its own goroutine: tcell's PollEvent blocks, so the
// events are handed to the frame loop through the keys channel rather than
// touching the console from here.
func (t *TerminalRenderer) pollEvents() {
	for {
		ev := t.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
				close(t.quit)
				return
			}
			if key, ok := mapKey(ev); ok {
				select {
				case t.keys <- key:
				default: // drop input rather than block the poller
				}
			}
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}
}

// injectInput drains pending key events into the joypad and releases keys
// whose hold window expired, all between console frames.
func (t *TerminalRenderer) injectInput() {
	for {
		select {
		case key := <-t.keys:
			if t.held[key] == 0 {
				t.console.HandleKeyPress(key)
			}
			t.held[key] = holdFrames
		default:
			for key, frames := range t.held {
				if frames--; frames == 0 {
					t.console.HandleKeyRelease(key)
					delete(t.held, key)
				} else {
					t.held[key] = frames
				}
			}
			return
		}
	}
}

func mapKey(ev *tcell.EventKey) (memory.JoypadKey, bool) {
	switch ev.Key() {
	case tcell.KeyEnter:
		return memory.JoypadStart, true
	case tcell.KeyRight:
		return memory.JoypadRight, true
	case tcell.KeyLeft:
		return memory.JoypadLeft, true
	case tcell.KeyUp:
		return memory.JoypadUp, true
	case tcell.KeyDown:
		return memory.JoypadDown, true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'a':
			return memory.JoypadA, true
		case 's':
			return memory.JoypadB, true
		case 'q':
			return memory.JoypadSelect, true
		}
	}
	return 0, false
}

func (t *TerminalRenderer) render() {
	termWidth, termHeight := t.screen.Size()
	if termWidth < minTermWidth || termHeight < minTermHeight {
		t.screen.Clear()
		style := tcell.StyleDefault.Foreground(tcell.ColorRed)
		msg := fmt.Sprintf("Terminal too small! Need at least %dx%d", minTermWidth, minTermHeight)
		for i, ch := range msg {
			t.screen.SetContent(i, termHeight/2, ch, nil, style)
		}
		return
	}

	t.screen.Clear()

	fb := t.console.GetCurrentFrame()
	lines := RenderFrameToHalfBlocks(fb.ToSlice(), width, height)
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	for y, line := range lines {
		for x, ch := range line {
			t.screen.SetContent(x, y+1, ch, nil, style)
		}
	}

	title := " Game Boy "
	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	for i, ch := range title {
		t.screen.SetContent(1+i, 0, ch, nil, titleStyle)
	}
}
