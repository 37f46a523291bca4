// Package sdptest provides an in-memory sdp.Transport double for exercising
// sdp.Client without real USB-HID hardware (spec §8 scenario 4).
package sdptest

import (
	"context"
	"fmt"
)

// Report is one recorded or queued HID report exchange.
type Report struct {
	ID   byte
	Data []byte
}

// Transport is a scripted sdp.Transport: SendReport appends to Sent,
// ReceiveReport pops the next entry from Replies in order.
type Transport struct {
	Sent    []Report
	Replies []Report
}

// Reply queues a report to be returned by the next ReceiveReport call.
func (t *Transport) Reply(id byte, data []byte) {
	t.Replies = append(t.Replies, Report{ID: id, Data: data})
}

func (t *Transport) SendReport(_ context.Context, reportID byte, data []byte) error {
	cp := append([]byte(nil), data...)
	t.Sent = append(t.Sent, Report{ID: reportID, Data: cp})
	return nil
}

func (t *Transport) ReceiveReport(_ context.Context) (byte, []byte, error) {
	if len(t.Replies) == 0 {
		return 0, nil, fmt.Errorf("sdptest: no queued reply")
	}
	r := t.Replies[0]
	t.Replies = t.Replies[1:]
	return r.ID, r.Data, nil
}
