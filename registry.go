package modbus

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/run"
)

// TransportMode selects which addressing and outstanding-request policy
// the registry applies: TCP keys pending requests by transaction
// identifier and allows many outstanding at once; RTU has no identifier
// field on the wire and allows at most one outstanding request at a time.
type TransportMode int

const (
	ModeTCP TransportMode = iota
	ModeRTU
)

// pendingRequest is one in-flight request awaiting a matching frame, a
// timeout, a cancellation, or a disconnect - whichever comes first. Only
// one of those four ever completes resultCh.
type pendingRequest struct {
	unitID   uint8
	frame    []byte // fully-framed bytes to send, owned by the registry
	resultCh chan requestResult
	timer    Cancellable
	done     bool
}

type requestResult struct {
	pdu []byte
	err error
}

// Registry is the transaction registry: the single point that
// turns a caller's "send this PDU" into a matched response or a
// well-typed failure. It never touches PDU semantics - encoding,
// decoding, and exception translation are the caller's (Client's) job.
//
// All registry state is protected by mu and mutated only from the
// goroutine running pumpInbound or from sendRequest/cancel calls that
// take the same lock, so the registry behaves as a single logical
// executor: a frame, a timeout firing, and a new
// request are never processed concurrently with each other.
type Registry struct {
	mode      TransportMode
	transport Transport
	scheduler Scheduler
	logger    *SimpleLogger

	tcpFramer *TCPFramer
	rtuFramer *RTUFramer

	mu       sync.Mutex
	closed   bool
	closeErr error

	nextID  uint16
	pending map[uint16]*pendingRequest // ModeTCP

	rtuQueue  []*pendingRequest // ModeRTU, FIFO, not yet sent
	rtuActive *pendingRequest   // ModeRTU, currently awaiting a response

	group    run.Group
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewRegistry starts a registry driving transport in the given mode.
// baud is only consulted in ModeRTU, to size the RTU silence framer.
func NewRegistry(transport Transport, mode TransportMode, baud int, scheduler Scheduler, logger *SimpleLogger) *Registry {
	if scheduler == nil {
		scheduler = NewTimeScheduler()
	}
	if logger == nil {
		logger = discardLogger
	}
	r := &Registry{
		mode:      mode,
		transport: transport,
		scheduler: scheduler,
		logger:    logger,
		tcpFramer: NewTCPFramer(),
		rtuFramer: NewRTUFramer(baud),
		pending:   make(map[uint16]*pendingRequest),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	r.tcpFramer.SetLogger(logger)
	r.rtuFramer.SetLogger(logger)
	if ls, ok := transport.(interface{ SetLogger(*SimpleLogger) }); ok {
		ls.SetLogger(logger)
	}
	r.start()
	return r
}

func (r *Registry) start() {
	r.group.Add(func() error {
		return r.pumpInbound()
	}, func(error) {
		r.transport.Close()
	})
	r.group.Add(func() error {
		<-r.stop
		return nil
	}, func(error) {
		r.stopOnce.Do(func() { close(r.stop) })
	})
	go func() {
		r.group.Run()
		close(r.done)
	}()
}

func (r *Registry) pumpInbound() error {
	for chunk := range r.transport.Inbound() {
		r.mu.Lock()
		r.onFrame(chunk, time.Now())
		r.mu.Unlock()
	}
	err := <-r.transport.Disconnected()
	r.mu.Lock()
	r.onDisconnect(err)
	r.mu.Unlock()
	return err
}

// sendRequest frames pdu for unitID, sends it, and blocks until a
// matching response PDU arrives, the deadline passes, ctx is cancelled,
// or the transport disconnects - whichever is first.
// The returned []byte is the raw response PDU; decoding and exception
// translation are left to the caller.
func (r *Registry) sendRequest(ctx context.Context, unitID uint8, pdu []byte, timeout time.Duration) ([]byte, error) {
	r.mu.Lock()
	if r.closed {
		err := r.closeErr
		r.mu.Unlock()
		if err == nil {
			err = &NotConnectedError{}
		}
		return nil, err
	}

	req := &pendingRequest{unitID: unitID, resultCh: make(chan requestResult, 1)}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	switch r.mode {
	case ModeTCP:
		id, err := r.allocateID()
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		frame, err := EncodeMBAP(id, unitID, pdu)
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		req.frame = frame
		r.pending[id] = req
		if !deadline.IsZero() {
			req.timer = r.scheduler.Schedule(deadline, func() { r.timeoutTCP(id) })
		}
		if err := r.transport.Write(frame); err != nil {
			delete(r.pending, id)
			if req.timer != nil {
				req.timer.Cancel()
			}
			r.mu.Unlock()
			return nil, err
		}

	case ModeRTU:
		frame, err := EncodeRTU(unitID, pdu)
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		req.frame = frame
		r.rtuQueue = append(r.rtuQueue, req)
		// Broadcast (unitID 0) gets no response, ever; dispatchNextRTULocked
		// holds the bus idle for t3_5 after writing it instead of waiting
		// on rtuFramer to deliver one. A deadline timer would race that
		// t3_5 completion for no benefit, so only unicast requests get one.
		if unitID != 0 && !deadline.IsZero() {
			req.timer = r.scheduler.Schedule(deadline, func() { r.timeoutRTU(req) })
		}
		r.dispatchNextRTULocked()
	}
	r.mu.Unlock()

	select {
	case res := <-req.resultCh:
		return res.pdu, res.err
	case <-ctx.Done():
		r.cancel(req)
		return nil, &CancelledError{}
	}
}

// allocateID picks the next TCP transaction identifier, wrapping at
// 65535 and skipping any value still awaiting a response. Must be
// called with mu held.
func (r *Registry) allocateID() (uint16, error) {
	if len(r.pending) >= 1<<16 {
		return 0, &TooManyOutstandingError{}
	}
	for i := 0; i < 1<<16; i++ {
		r.nextID++
		if _, taken := r.pending[r.nextID]; !taken {
			return r.nextID, nil
		}
	}
	return 0, &TooManyOutstandingError{}
}

// dispatchNextRTULocked sends the head of rtuQueue over the wire if no
// request is currently outstanding. Must be called with mu held.
func (r *Registry) dispatchNextRTULocked() {
	if r.rtuActive != nil || len(r.rtuQueue) == 0 {
		return
	}
	req := r.rtuQueue[0]
	r.rtuQueue = r.rtuQueue[1:]
	r.rtuActive = req
	if err := r.transport.Write(req.frame); err != nil {
		r.completeLocked(req, nil, err)
		r.rtuActive = nil
		r.dispatchNextRTULocked()
		return
	}
	if req.unitID == 0 {
		// Broadcast: no response will ever arrive to close the frame out
		// through onFrame, so hold the bus idle for t3_5 ourselves before
		// freeing it for the next queued request.
		req.timer = r.scheduler.Schedule(time.Now().Add(r.rtuFramer.T3_5()), func() {
			r.mu.Lock()
			if r.rtuActive == req {
				r.rtuActive = nil
			}
			r.completeLocked(req, nil, nil)
			r.dispatchNextRTULocked()
			r.mu.Unlock()
		})
	}
}

// onFrame delivers newly-received bytes to the configured framer and
// completes whichever pending request each decoded frame answers. Must
// be called with mu held.
func (r *Registry) onFrame(data []byte, now time.Time) {
	switch r.mode {
	case ModeTCP:
		frames, err := r.tcpFramer.Feed(data)
		for _, f := range frames {
			if req, ok := r.pending[f.TransactionID]; ok {
				delete(r.pending, f.TransactionID)
				r.completeLocked(req, f.PDU, nil)
			}
		}
		if err != nil {
			// Desynchronized stream: every outstanding request can no
			// longer be trusted to match a future frame.
			r.failAllLocked(err)
			go r.transport.Close()
		}

	case ModeRTU:
		frame, err := r.rtuFramer.Advance(data, now)
		if frame == nil && err == nil {
			return
		}
		req := r.rtuActive
		if req == nil || req.unitID == 0 {
			// No response is ever sent for a broadcast; discard
			// whatever arrived during its post-transmit silence window.
			return
		}
		r.rtuActive = nil
		if err != nil {
			r.completeLocked(req, nil, err)
		} else {
			r.completeLocked(req, frame.PDU, nil)
		}
		r.dispatchNextRTULocked()
	}
}

func (r *Registry) timeoutTCP(id uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.pending[id]
	if !ok {
		return
	}
	delete(r.pending, id)
	r.completeLocked(req, nil, &TimeoutError{TransactionID: id})
}

func (r *Registry) timeoutRTU(req *pendingRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.done {
		return
	}
	if r.rtuActive == req {
		r.rtuActive = nil
		r.completeLocked(req, nil, &TimeoutError{})
		r.dispatchNextRTULocked()
		return
	}
	// Still queued, never sent: drop it from the queue.
	for i, q := range r.rtuQueue {
		if q == req {
			r.rtuQueue = append(r.rtuQueue[:i], r.rtuQueue[i+1:]...)
			break
		}
	}
	r.completeLocked(req, nil, &TimeoutError{})
}

// onDisconnect drains every pending request - TCP map, RTU queue, and
// any RTU request in flight - with a ConnectionLostError. Must be
// called with mu held.
func (r *Registry) onDisconnect(err error) {
	if r.closed {
		return
	}
	r.closed = true
	r.closeErr = &ConnectionLostError{Cause: err}
	r.failAllLocked(r.closeErr)
}

func (r *Registry) failAllLocked(err error) {
	for id, req := range r.pending {
		delete(r.pending, id)
		r.completeLocked(req, nil, err)
	}
	if r.rtuActive != nil {
		req := r.rtuActive
		r.rtuActive = nil
		r.completeLocked(req, nil, err)
	}
	for _, req := range r.rtuQueue {
		r.completeLocked(req, nil, err)
	}
	r.rtuQueue = nil
}

func (r *Registry) completeLocked(req *pendingRequest, pdu []byte, err error) {
	if req.done {
		return
	}
	req.done = true
	if req.timer != nil {
		req.timer.Cancel()
	}
	req.resultCh <- requestResult{pdu: pdu, err: err}
}

// cancel removes req from whichever structure still holds it and
// completes it with a CancelledError, if it hasn't already completed.
func (r *Registry) cancel(req *pendingRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.done {
		return
	}
	for id, p := range r.pending {
		if p == req {
			delete(r.pending, id)
			break
		}
	}
	if r.rtuActive == req {
		r.rtuActive = nil
		r.dispatchNextRTULocked()
	}
	for i, q := range r.rtuQueue {
		if q == req {
			r.rtuQueue = append(r.rtuQueue[:i], r.rtuQueue[i+1:]...)
			break
		}
	}
	r.completeLocked(req, nil, &CancelledError{})
}

// Close shuts the registry down: it stops the inbound pump, closes the
// transport, and fails every outstanding request with a
// ConnectionLostError.
func (r *Registry) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		r.closeErr = &ConnectionLostError{Cause: nil}
		r.failAllLocked(r.closeErr)
	}
	r.mu.Unlock()
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
	return nil
}
