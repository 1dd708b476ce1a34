package app

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.design/x/hotkey"
)

// StdinTrigger emits one activation per line read from its input. It is the
// fallback interaction mode for terminals and headless sessions.
type StdinTrigger struct {
	ch   chan struct{}
	done chan struct{}
	once sync.Once
}

var _ Trigger = (*StdinTrigger)(nil)

// NewStdinTrigger starts reading r (typically os.Stdin) in a background
// goroutine. Events is closed when r reaches EOF.
func NewStdinTrigger(r io.Reader) *StdinTrigger {
	t := &StdinTrigger{
		ch:   make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(t.ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case t.ch <- struct{}{}:
			case <-t.done:
				return
			}
		}
	}()
	return t
}

func (t *StdinTrigger) Events() <-chan struct{} { return t.ch }

func (t *StdinTrigger) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}

// HotkeyTrigger emits one activation per press of a global hotkey.
type HotkeyTrigger struct {
	hk   *hotkey.Hotkey
	ch   chan struct{}
	done chan struct{}
	once sync.Once
}

var _ Trigger = (*HotkeyTrigger)(nil)

// NewHotkeyTrigger registers a system-wide hotkey described by spec, e.g.
// "space", "f9", or "ctrl+shift+v".
func NewHotkeyTrigger(spec string) (*HotkeyTrigger, error) {
	mods, key, err := parseHotkey(spec)
	if err != nil {
		return nil, err
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return nil, fmt.Errorf("app: register hotkey %q: %w", spec, err)
	}

	t := &HotkeyTrigger{
		hk:   hk,
		ch:   make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(t.ch)
		for {
			select {
			case <-t.done:
				return
			case <-hk.Keydown():
				select {
				case t.ch <- struct{}{}:
				case <-t.done:
					return
				}
			}
		}
	}()
	return t, nil
}

func (t *HotkeyTrigger) Events() <-chan struct{} { return t.ch }

func (t *HotkeyTrigger) Close() error {
	t.once.Do(func() { close(t.done) })
	return t.hk.Unregister()
}

// parseHotkey turns a spec like "ctrl+shift+v" into hotkey modifiers and a
// key. The final part is the key; everything before it must be a modifier.
func parseHotkey(spec string) ([]hotkey.Modifier, hotkey.Key, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(spec)), "+")
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return nil, 0, fmt.Errorf("app: empty hotkey spec %q", spec)
	}

	var mods []hotkey.Modifier
	for _, p := range parts[:len(parts)-1] {
		switch p {
		case "ctrl", "control":
			mods = append(mods, hotkey.ModCtrl)
		case "shift":
			mods = append(mods, hotkey.ModShift)
		default:
			return nil, 0, fmt.Errorf("app: unsupported hotkey modifier %q", p)
		}
	}

	key, err := keyFor(parts[len(parts)-1])
	if err != nil {
		return nil, 0, err
	}
	return mods, key, nil
}

// namedKeys maps key names to hotkey keys. Key codes are platform specific,
// so every key is listed explicitly rather than computed.
var namedKeys = map[string]hotkey.Key{
	"space": hotkey.KeySpace, "enter": hotkey.KeyReturn,
	"return": hotkey.KeyReturn, "tab": hotkey.KeyTab,
	"escape": hotkey.KeyEscape, "esc": hotkey.KeyEscape,

	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3,
	"f4": hotkey.KeyF4, "f5": hotkey.KeyF5, "f6": hotkey.KeyF6,
	"f7": hotkey.KeyF7, "f8": hotkey.KeyF8, "f9": hotkey.KeyF9,
	"f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,

	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2,
	"3": hotkey.Key3, "4": hotkey.Key4, "5": hotkey.Key5,
	"6": hotkey.Key6, "7": hotkey.Key7, "8": hotkey.Key8,
	"9": hotkey.Key9,

	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC,
	"d": hotkey.KeyD, "e": hotkey.KeyE, "f": hotkey.KeyF,
	"g": hotkey.KeyG, "h": hotkey.KeyH, "i": hotkey.KeyI,
	"j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO,
	"p": hotkey.KeyP, "q": hotkey.KeyQ, "r": hotkey.KeyR,
	"s": hotkey.KeyS, "t": hotkey.KeyT, "u": hotkey.KeyU,
	"v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
}

func keyFor(name string) (hotkey.Key, error) {
	if k, ok := namedKeys[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("app: unsupported hotkey %q", name)
}
