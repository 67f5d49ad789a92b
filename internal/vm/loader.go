package vm

// loader.go loads an assembled binary image into a memory device, the
// bridge between the assembler's output and the CPU's address space.

// LoadImage copies an assembled image into mem starting at base (tmvm
// passes RAMMin, 0x0000).
func LoadImage(mem *MemoryDevice, image []byte, base Word) error {
	return mem.LoadProgram(image, base)
}

// NewDefaultBus assembles the default memory map: RAM from
// 0x0000 to 0xEFFF, a console at 0xF000..0xF001, and a keyboard at
// 0xF002..0xF003.
func NewDefaultBus(ram *MemoryDevice, console *ConsoleDevice, kbd *KeyboardDevice) *Bus {
	bus := NewBus()

	bus.Attach(ram)
	bus.Attach(console)
	bus.Attach(kbd)

	console.Bind(bus.ReadByte)

	return bus
}
