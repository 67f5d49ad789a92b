package vm

// cpu.go defines the CPU struct and its lifecycle: construction via
// functional options, architectural reset, and the run loop.

import (
	"github.com/smoynes/elsie/internal/log"
)

// Default cadence, in instructions, at which attached devices are ticked.
const DefaultDeviceTickRate = 100

// CPU is the target machine's processor: registers, flags, a cycle counter,
// and a bus to the outside world.
type CPU struct {
	Reg   RegisterFile
	Flags Flags
	Bus   *Bus

	Cycles  uint64
	Halted  bool

	DeviceTickRate uint64 // Tick devices every Nth instruction; 0 disables.
	MaxCycles      uint64 // 0 means unlimited.

	log *log.Logger
}

// OptionFn configures a CPU at construction time.
type OptionFn func(*CPU)

// WithBus attaches the device bus the CPU fetches and stores through.
func WithBus(bus *Bus) OptionFn {
	return func(cpu *CPU) { cpu.Bus = bus }
}

// WithDeviceTickRate overrides the cadence, in instructions, at which
// devices are ticked.
func WithDeviceTickRate(n uint64) OptionFn {
	return func(cpu *CPU) { cpu.DeviceTickRate = n }
}

// WithMaxCycles sets a cycle budget; Run returns ErrCycleLimit once it is
// exceeded without the program halting.
func WithMaxCycles(n uint64) OptionFn {
	return func(cpu *CPU) { cpu.MaxCycles = n }
}

// WithLogger overrides the CPU's logger.
func WithLogger(l *log.Logger) OptionFn {
	return func(cpu *CPU) { cpu.log = l }
}

// New creates a CPU, resets its architectural state, and applies opts.
func New(opts ...OptionFn) *CPU {
	cpu := &CPU{
		DeviceTickRate: DefaultDeviceTickRate,
		log:            log.DefaultLogger(),
	}
	cpu.Reset()

	for _, fn := range opts {
		fn(cpu)
	}

	if cpu.Bus == nil {
		cpu.Bus = NewBus()
	}

	return cpu
}

// Reset restores the architectural reset state: GPRs zero, SP at 0xEFFF
// (the top of RAM), PC at zero, flags clear, cycle counter zero, not
// halted.
func (cpu *CPU) Reset() {
	cpu.Reg = RegisterFile{}
	cpu.Reg[SP] = 0xEFFF // top of RAM, below the MMIO page
	cpu.Reg[PC] = 0x0000
	cpu.Flags = Flags{}
	cpu.Cycles = 0
	cpu.Halted = false
}

// Run executes instructions until the CPU halts, the step count is
// exhausted, or the cycle limit (if set) is exceeded. steps is the number of
// instructions to execute; a negative value runs unbounded.
func (cpu *CPU) Run(steps int) error {
	executed := 0

	for steps < 0 || executed < steps {
		if cpu.Halted {
			return nil
		}

		if cpu.MaxCycles > 0 && cpu.Cycles >= cpu.MaxCycles {
			return ErrCycleLimit
		}

		instr, err := cpu.fetch()
		if err != nil {
			return err
		}

		cpu.log.Debug("fetch", "instr", instr, "pc", cpu.Reg[PC])

		if err := cpu.execute(instr); err != nil {
			return err
		}

		executed++

		if cpu.DeviceTickRate > 0 && cpu.Cycles%cpu.DeviceTickRate == 0 {
			if err := cpu.Bus.TickAll(cpu.Cycles); err != nil {
				return err
			}
		}

		if cpu.Halted {
			return nil
		}
	}

	return nil
}

// fetch reads the instruction word at PC, advances PC by two, and counts
// one cycle.
func (cpu *CPU) fetch() (Instruction, error) {
	addr := cpu.Reg[PC]

	word, err := cpu.Bus.ReadWord(addr)
	if err != nil {
		return 0, err
	}

	cpu.Reg[PC] = addr + 2
	cpu.Cycles++

	return Instruction(word), nil
}

// fetchByte reads one trailing operand byte at PC and advances PC by one.
func (cpu *CPU) fetchByte() (byte, error) {
	b, err := cpu.Bus.ReadByte(cpu.Reg[PC])
	if err != nil {
		return 0, err
	}

	cpu.Reg[PC]++

	return b, nil
}

// fetchWord reads one trailing operand word at PC and advances PC by two.
func (cpu *CPU) fetchWord() (Word, error) {
	w, err := cpu.Bus.ReadWord(cpu.Reg[PC])
	if err != nil {
		return 0, err
	}

	cpu.Reg[PC] += 2

	return w, nil
}
