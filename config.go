package modbus

import "time"

// Scheduler arms one-shot deadlines for the transaction registry. It is
// injected so tests can replace the timers with a fake; the registry
// still reads time.Now() directly to compute deadlines and to time
// inbound RTU bytes.
type Scheduler interface {
	// Schedule arranges for fn to run once, no sooner than deadline. It
	// returns a Cancellable that, if invoked before fn runs, prevents fn
	// from running at all.
	Schedule(deadline time.Time, fn func()) Cancellable
}

// Cancellable stops a scheduled callback from firing, if it hasn't
// already.
type Cancellable interface {
	Cancel()
}

// timeScheduler is the default Scheduler, backed by time.AfterFunc. The
// core takes its collaborators explicitly, but a ready-to-use default
// keeps simple programs simple.
type timeScheduler struct{}

// NewTimeScheduler returns the time.AfterFunc-backed default Scheduler.
func NewTimeScheduler() Scheduler { return timeScheduler{} }

func (timeScheduler) Schedule(deadline time.Time, fn func()) Cancellable {
	t := time.AfterFunc(time.Until(deadline), fn)
	return timerCancellable{t}
}

type timerCancellable struct{ t *time.Timer }

func (c timerCancellable) Cancel() { c.t.Stop() }

// ClientConfig carries the core's explicit, named options: there is no
// builder and no mutable scratch object; every recognized knob is a
// field here.
type ClientConfig struct {
	// RequestTimeout is the deadline duration from send to completion
	// that the Client applies to every request; a deadline on the
	// caller's context applies in addition.
	RequestTimeout time.Duration

	// RequestSerializer and ResponseSerializer encode requests and decode
	// responses. They default to EncodeRequest/Decode; a caller can
	// substitute them to support vendor function-code extensions without
	// touching the registry (carried over from the original's
	// per-client ModbusPduSerializer pair).
	RequestSerializer  func(fc uint8, req any) ([]byte, error)
	ResponseSerializer func(pdu []byte, role Role) (any, error)

	// TimeoutScheduler arms each transaction's deadline timer. Defaults to
	// NewTimeScheduler() when nil.
	TimeoutScheduler Scheduler

	// Logger receives the registry's and its framers'/transport's
	// diagnostic output (connection loss, frame errors, discarded RTU
	// frames). A nil Logger discards everything.
	Logger *SimpleLogger
}

// DefaultClientConfig returns the configuration a plain Client is built
// with if none is supplied.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RequestTimeout:     5 * time.Second,
		RequestSerializer:  EncodeRequest,
		ResponseSerializer: Decode,
		TimeoutScheduler:   NewTimeScheduler(),
	}
}

func (c *ClientConfig) setDefaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
	if c.RequestSerializer == nil {
		c.RequestSerializer = EncodeRequest
	}
	if c.ResponseSerializer == nil {
		c.ResponseSerializer = Decode
	}
	if c.TimeoutScheduler == nil {
		c.TimeoutScheduler = NewTimeScheduler()
	}
}

// SerialConfig carries the line parameters an RTU transport needs to open
// and configure a serial port. RTUFramer only consumes BaudRate, to
// derive CharTime/T1.5/T3.5; the rest is passed straight through to the
// serial driver.
type SerialConfig struct {
	Port     string // OS device path, e.g. "/dev/ttyUSB0" or "COM4"
	BaudRate int
	DataBits int
	StopBits int
	Parity   string // "N", "E", or "O"

	// RS485Mode enables RTS-pin transmit/receive direction signaling for
	// half-duplex RS-485 lines, a serial-line concern distinct from
	// Modbus framing itself.
	RS485Mode bool
}

// DefaultSerialConfig returns the line parameters conventional for Modbus
// RTU when the device's documentation doesn't say otherwise.
func DefaultSerialConfig(port string) SerialConfig {
	return SerialConfig{
		Port:     port,
		BaudRate: 9600,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
	}
}
