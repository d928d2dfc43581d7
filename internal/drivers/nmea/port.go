// Package nmea feeds the estimator's GPS and height channels from an NMEA
// 0183 sentence stream, typically a serial GPS receiver.
package nmea

import (
	"bufio"
	"context"
	"io"

	"go.bug.st/serial"
)

// PortInterface is a line-oriented sentence source.
type PortInterface interface {
	Events() <-chan string
	Monitor(ctx context.Context) error
	Close() error
}

// MockPort replays sentences from an io.Reader. For tests and log playback.
type MockPort struct {
	Data       io.Reader
	EventsChan chan string
}

func (m *MockPort) Events() <-chan string {
	return m.EventsChan
}

// Monitor scans Data line by line into the events channel and closes the
// channel when the reader is exhausted.
func (m *MockPort) Monitor(ctx context.Context) error {
	defer close(m.EventsChan)

	scan := bufio.NewScanner(m.Data)
	for scan.Scan() {
		select {
		case m.EventsChan <- scan.Text():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scan.Err()
}

func (m *MockPort) Close() error {
	return nil
}

// Port reads sentences from a real serial port.
type Port struct {
	serial.Port
	events chan string
}

// NewPort opens the serial port at portName. NMEA receivers commonly run at
// 4800 or 9600 baud.
func NewPort(portName string, baudRate int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}

	return &Port{port, make(chan string)}, nil
}

// Events returns the channel of received sentences.
func (p *Port) Events() <-chan string {
	return p.events
}

// Monitor pumps sentences from the serial port into the events channel until
// the port is closed or ctx is cancelled. Closing the port unblocks a
// pending read.
func (p *Port) Monitor(ctx context.Context) error {
	defer close(p.events)

	scan := bufio.NewScanner(p.Port)
	for scan.Scan() {
		select {
		case p.events <- scan.Text():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return scan.Err()
}

// Close closes the serial port.
func (p *Port) Close() error {
	return p.Port.Close()
}
