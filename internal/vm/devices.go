package vm

// devices.go implements the memory-mapped peripherals attached to the bus:
// RAM, a write-only console framebuffer pointer, and a read-only keyboard
// FIFO.

import (
	"fmt"
	"io"
	"sync"
)

// Default memory map.
const (
	RAMMin      Word = 0x0000
	RAMMax      Word = 0xEFFF
	ConsoleMin  Word = 0xF000
	ConsoleMax  Word = 0xF001
	KeyboardMin Word = 0xF002
	KeyboardMax Word = 0xF003

	// StackLow and StackHigh bound the region SP is constrained to by its
	// |= 0xE000 wrap.
	StackLow  Word = 0xE000
	StackHigh Word = 0xFFFF
)

// MemoryDevice is a linear byte array occupying an address window.
type MemoryDevice struct {
	min, max Word
	bytes    []byte
	readOnly bool
}

// NewMemoryDevice creates a RAM device spanning [min, max] inclusive.
func NewMemoryDevice(min, max Word, readOnly bool) *MemoryDevice {
	return &MemoryDevice{
		min: min, max: max,
		bytes:    make([]byte, int(max)-int(min)+1),
		readOnly: readOnly,
	}
}

func (m *MemoryDevice) Range() (Word, Word) { return m.min, m.max }

func (m *MemoryDevice) IOType() IOType {
	if m.readOnly {
		return ReadOnly
	}

	return ReadWrite
}

func (m *MemoryDevice) ReadByte(addr Word) (byte, error) {
	return m.bytes[addr-m.min], nil
}

func (m *MemoryDevice) WriteByte(addr Word, val byte) error {
	m.bytes[addr-m.min] = val
	return nil
}

func (m *MemoryDevice) Tick(uint64) error { return nil }

// LoadProgram copies bytes into the device starting at base, which is an
// absolute address within the device's window. It is the loader's entry
// point for placing an assembled image into RAM.
func (m *MemoryDevice) LoadProgram(bytes []byte, base Word) error {
	if base < m.min || int(base)-int(m.min)+len(bytes) > len(m.bytes) {
		return fmt.Errorf("vm: program of %d bytes at %s does not fit device [%s, %s]",
			len(bytes), base, m.min, m.max)
	}

	copy(m.bytes[base-m.min:], bytes)

	return nil
}

// ConsoleDevice is a write-only pair of bytes holding a 16-bit base address
// into memory. On Tick it drains WIDTH x HEIGHT bytes starting at that base
// address and renders them as a character grid.
type ConsoleDevice struct {
	min, max Word
	base     Word

	width, height int
	refreshRate   int // Ticks per refresh; a tick is one CPU device-tick.
	ticks         int
	out           io.Writer

	read func(Word) (byte, error) // Supplied after the bus is assembled.
}

const (
	ConsoleWidth       = 80
	ConsoleHeight      = 25
	DefaultRefreshRate = 4 // Redraw every 4th device tick.
)

// NewConsoleDevice creates a console device spanning [min, max], writing
// rendered frames to out.
func NewConsoleDevice(min, max Word, out io.Writer) *ConsoleDevice {
	return &ConsoleDevice{
		min: min, max: max,
		width: ConsoleWidth, height: ConsoleHeight,
		refreshRate: DefaultRefreshRate,
		out:         out,
	}
}

// Bind gives the console a way to read the framebuffer memory it does not
// own itself, since that memory range is resolved only after the bus is
// assembled.
func (c *ConsoleDevice) Bind(read func(Word) (byte, error)) {
	c.read = read
}

func (c *ConsoleDevice) Range() (Word, Word) { return c.min, c.max }

func (c *ConsoleDevice) IOType() IOType { return WriteOnly }

func (c *ConsoleDevice) ReadByte(Word) (byte, error) {
	return 0, fmt.Errorf("console is write-only")
}

func (c *ConsoleDevice) WriteByte(addr Word, val byte) error {
	if addr == c.min {
		c.base = c.base&0x00ff | Word(val)<<8
	} else {
		c.base = c.base&0xff00 | Word(val)
	}

	return nil
}

// Tick drains the framebuffer into a text surface once every refreshRate
// ticks.
func (c *ConsoleDevice) Tick(uint64) error {
	c.ticks++
	if c.ticks%c.refreshRate != 0 {
		return nil
	}

	if c.read == nil {
		return nil
	}

	grid := make([]byte, 0, c.width*c.height+c.height)

	for row := 0; row < c.height; row++ {
		for col := 0; col < c.width; col++ {
			b, err := c.read(c.base + Word(row*c.width+col))
			if err != nil {
				return err
			}

			if b < 0x20 {
				b = ' '
			}

			grid = append(grid, b)
		}

		grid = append(grid, '\n')
	}

	_, err := c.out.Write(grid)

	return err
}

// Status bits for the keyboard's STATUS register.
const (
	KeyboardDataReady byte = 0x01
)

// KeyboardDevice is a two-byte read-only window: DATA (dequeues the next
// byte) and STATUS (bit 0 is DATA_READY).
type KeyboardDevice struct {
	min, max Word

	mu    sync.Mutex
	fifo  []byte
	poll  func() (byte, bool) // Optional non-blocking poll, used by Tick.
}

// NewKeyboardDevice creates a keyboard device spanning [min, max]. DATA is
// at min, STATUS at min+1.
func NewKeyboardDevice(min, max Word) *KeyboardDevice {
	return &KeyboardDevice{min: min, max: max}
}

// SetPoll installs a non-blocking poll function, called once per Tick, for
// hosts that support it. Hosts that cannot poll reliably instead push
// directly via Push from a dedicated producer goroutine.
func (k *KeyboardDevice) SetPoll(poll func() (byte, bool)) {
	k.poll = poll
}

// Push enqueues a byte from the host input source. Safe to call
// concurrently with CPU execution; it is the only entry point the keyboard
// producer thread uses.
func (k *KeyboardDevice) Push(b byte) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.fifo = append(k.fifo, b)
}

// PushExtended enqueues an extended (multi-byte) key code as the 0xE0 escape
// followed by the scan code.
func (k *KeyboardDevice) PushExtended(scan byte) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.fifo = append(k.fifo, 0xE0, scan)
}

func (k *KeyboardDevice) Range() (Word, Word) { return k.min, k.max }

func (k *KeyboardDevice) IOType() IOType { return ReadOnly }

func (k *KeyboardDevice) ReadByte(addr Word) (byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if addr == k.min {
		if len(k.fifo) == 0 {
			return 0, nil
		}

		b := k.fifo[0]
		k.fifo = k.fifo[1:]

		return b, nil
	}

	// STATUS register.
	if len(k.fifo) > 0 {
		return KeyboardDataReady, nil
	}

	return 0, nil
}

func (k *KeyboardDevice) WriteByte(Word, byte) error {
	return fmt.Errorf("keyboard is read-only")
}

// Tick polls the host input source, if one was installed with SetPoll, and
// enqueues whatever byte it returns.
func (k *KeyboardDevice) Tick(uint64) error {
	if k.poll == nil {
		return nil
	}

	if b, ok := k.poll(); ok {
		k.Push(b)
	}

	return nil
}
