// SPDX-License-Identifier: MIT
package analysis

import (
	"audiotools/internal/transport"
)

// BeatEvent is sent for every kick, snare or hi-hat detected in a frame.
type BeatEvent struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Frame uint64 `json:"frame"`
}

// BeatNotifier turns the pipeline's beat queries into transport events. A drum that stays
// detected over consecutive frames is reported once, on its rising edge.
type BeatNotifier struct {
	pipeline  *Pipeline
	transport transport.Transport
	frame     uint64
	last      [3]bool
}

var drumNames = [3]string{"kick", "snare", "hihat"}

func NewBeatNotifier(p *Pipeline, t transport.Transport) *BeatNotifier {
	logger.Infof("Initializing BeatNotifier")
	return &BeatNotifier{pipeline: p, transport: t}
}

// Process checks the latest frame and returns the names of newly detected drums.
func (n *BeatNotifier) Process() []string {
	n.frame++
	var now [3]bool
	now[0], now[1], now[2] = n.pipeline.Drums()

	var fired []string
	for i, hit := range now {
		if hit && !n.last[i] {
			fired = append(fired, drumNames[i])
		}
	}
	n.last = now

	if n.transport == nil {
		return fired
	}
	for _, name := range fired {
		if err := n.transport.Send(BeatEvent{Type: "event", Name: name, Frame: n.frame}); err != nil {
			logger.Errorf("BeatNotifier: error sending %s event: %v", name, err)
		}
	}
	return fired
}
