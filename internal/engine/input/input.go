// Package input turns SDL2 events into viewer events, each with the
// binding name scripts are attached to ("key.p", "mouse.motion", ...).
package input

import (
	"strings"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/Faultbox/orbis/internal/script"
)

// EventType classifies an Event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventKeyUp
	EventMouseMove
	EventMouseDown
	EventMouseUp
	EventMouseWheel
)

// Event is one processed input event.
type Event struct {
	Type   EventType
	Key    sdl.Scancode
	Repeat bool
	Width  int
	Height int
	MouseX int
	MouseY int
	// DX and DY are relative motion for mouse moves and scroll amounts for
	// the wheel.
	DX, DY int
	Button uint8
}

// Input collects the events of one frame.
type Input struct {
	events []Event
}

// New creates an input handler.
func New() *Input {
	return &Input{
		events: make([]Event, 0, 16),
	}
}

// Update polls SDL events. It returns true when the viewer should quit.
func (i *Input) Update() bool {
	i.events = i.events[:0]

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			i.events = append(i.events, Event{Type: EventQuit})
			return true

		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_RESIZED || e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				i.events = append(i.events, Event{
					Type:   EventWindowResize,
					Width:  int(e.Data1),
					Height: int(e.Data2),
				})
			}

		case *sdl.KeyboardEvent:
			t := EventKeyDown
			if e.Type == sdl.KEYUP {
				t = EventKeyUp
			}
			i.events = append(i.events, Event{
				Type:   t,
				Key:    e.Keysym.Scancode,
				Repeat: e.Repeat != 0,
			})

		case *sdl.MouseMotionEvent:
			i.events = append(i.events, Event{
				Type:   EventMouseMove,
				MouseX: int(e.X),
				MouseY: int(e.Y),
				DX:     int(e.XRel),
				DY:     int(e.YRel),
			})

		case *sdl.MouseButtonEvent:
			t := EventMouseDown
			if e.Type == sdl.MOUSEBUTTONUP {
				t = EventMouseUp
			}
			i.events = append(i.events, Event{
				Type:   t,
				MouseX: int(e.X),
				MouseY: int(e.Y),
				Button: e.Button,
			})

		case *sdl.MouseWheelEvent:
			i.events = append(i.events, Event{
				Type: EventMouseWheel,
				DX:   int(e.X),
				DY:   int(e.Y),
			})
		}
	}
	return false
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event {
	return i.events
}

// IsKeyPressed reports whether scancode went down this frame.
func (i *Input) IsKeyPressed(scancode sdl.Scancode) bool {
	for _, e := range i.events {
		if e.Type == EventKeyDown && e.Key == scancode {
			return true
		}
	}
	return false
}

// Binding returns the binding name of e and the script environment its
// bound call sees. Events that cannot be bound return "".
//
// Keys are named after their SDL scancode name, lower case with spaces as
// underscores: "key.p", "key.left", "key.left_shift". Both presses and
// releases fire, with pressed set accordingly; auto-repeats do not.
func Binding(e Event) (string, script.Env) {
	switch e.Type {
	case EventKeyDown, EventKeyUp:
		if e.Repeat {
			return "", nil
		}
		name := KeyName(e.Key)
		if name == "" {
			return "", nil
		}
		return "key." + name, script.Env{"pressed": script.Bool(e.Type == EventKeyDown)}
	case EventMouseMove:
		return "mouse.motion", script.Env{"dx": script.Int(int64(e.DX)), "dy": script.Int(int64(e.DY))}
	case EventMouseWheel:
		return "mouse.wheel", script.Env{"dx": script.Int(int64(e.DX)), "dy": script.Int(int64(e.DY))}
	case EventMouseDown, EventMouseUp:
		return "mouse.button" + string(rune('0'+e.Button)), script.Env{"pressed": script.Bool(e.Type == EventMouseDown)}
	}
	return "", nil
}

// KeyName returns the binding name of a scancode.
func KeyName(code sdl.Scancode) string {
	return normaliseKeyName(sdl.GetScancodeName(code))
}

func normaliseKeyName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
