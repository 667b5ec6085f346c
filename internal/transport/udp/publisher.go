// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"audiotools/internal/analysis"
	applog "audiotools/internal/log"
)

const (
	headerSize      = 4 + 8 + 2
	defaultInterval = 16 * time.Millisecond
)

var (
	ErrShortPacket = errors.New("udp: packet shorter than header")
	ErrPacketCount = errors.New("udp: magnitude count does not match payload")
)

var pubLog = applog.With("UDPPublisher")

// UDPPublisher periodically packs the provider's magnitude spectrum and sends it over UDP.
type UDPPublisher struct {
	sender   *UDPSender
	provider analysis.FFTResultProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32

	magnitudes   []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher defaults a non-positive interval to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender, provider analysis.FFTResultProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("UDPPublisher: FFT result provider cannot be nil")
	}

	if interval <= 0 {
		interval = defaultInterval
		pubLog.Warnf("Invalid interval provided, defaulting to %s", interval)
	}

	bins := provider.GetFFTSize() / 2
	pubLog.Infof("Initializing (Interval: %s, FFT Bins: %d)", interval, bins)

	return &UDPPublisher{
		sender:       sender,
		provider:     provider,
		interval:     interval,
		magnitudes:   make([]float32, bins),
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start launches the publishing goroutine. Calling it while running is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		pubLog.Warnf("Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		pubLog.Infof("Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				pubLog.Infof("Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it. Safe to call more than once.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		pubLog.Debugf("Stop called but not running.")
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	pubLog.Infof("Publisher goroutine finished.")
	return nil
}

/*
UDP packet layout, BigEndian:

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |   Magnitude   |       Magnitudes        |
|      (uint32)     |  (int64, ns, Unix)    |  Count (N)    |      (N * float32)      |
+-------------------+-----------------------+---------------+-------------------------+
*/

// Packet is a decoded magnitude datagram.
type Packet struct {
	Sequence   uint32
	Timestamp  time.Time
	Magnitudes []float32
}

// buildAndSendPacket runs on every tick. The magnitude buffer follows frame size changes.
func (p *UDPPublisher) buildAndSendPacket() {
	if bins := p.provider.GetFFTSize() / 2; len(p.magnitudes) != bins {
		pubLog.Debugf("Resizing magnitude buffer %d -> %d", len(p.magnitudes), bins)
		p.magnitudes = make([]float32, bins)
	}
	if err := p.provider.GetMagnitudesInto(p.magnitudes); err != nil {
		pubLog.Debugf("Skipping packet: %v", err)
		return
	}

	// Count is a uint16.
	mags := p.magnitudes[:min(len(p.magnitudes), math.MaxUint16)]

	p.sequenceNum++
	p.packetBuffer.Reset()
	if err := encodePacket(p.packetBuffer, p.sequenceNum, time.Now().UnixNano(), mags); err != nil {
		pubLog.Errorf("Error packing data into binary buffer: %v", err)
		return
	}

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err == nil {
		pubLog.Debugf("Sent packet %d (%d bytes)", p.sequenceNum, len(packetBytes))
	}
}

func encodePacket(buf *bytes.Buffer, seq uint32, timestamp int64, mags []float32) error {
	err := binary.Write(buf, binary.BigEndian, seq)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(len(mags)))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, mags)
	}
	return err
}

// DecodePacket parses a datagram produced by the publisher.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, ErrShortPacket
	}
	count := int(binary.BigEndian.Uint16(data[12:14]))
	if len(data)-headerSize != count*4 {
		return Packet{}, fmt.Errorf("%w: count %d, payload %d bytes", ErrPacketCount, count, len(data)-headerSize)
	}

	pkt := Packet{
		Sequence:   binary.BigEndian.Uint32(data[0:4]),
		Timestamp:  time.Unix(0, int64(binary.BigEndian.Uint64(data[4:12]))),
		Magnitudes: make([]float32, count),
	}
	for i := range pkt.Magnitudes {
		off := headerSize + 4*i
		pkt.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(data[off : off+4]))
	}
	return pkt, nil
}

// Close implements io.Closer.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
