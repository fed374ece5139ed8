package tcpinfo

import (
	"encoding/json"
	"fmt"
	"time"
)

// Info is the platform-independent view of a socket's kernel TCP_INFO,
// built by each platform's SysInfo.ToInfo(). Field names follow the
// Tx/Rx convention (matching the fuller Linux and Windows extraction
// paths); Darwin's extractor is adapted to populate the same fields
// rather than keeping its own Sender/Receiver naming.
type Info struct {
	State         string        `json:"state"`                   // Connection state
	Options       []Option      `json:"options,omitempty"`        // Requesting options
	PeerOptions   []Option      `json:"peerOptions,omitempty"`    // Options requested from peer
	TxMSS         uint64        `json:"txMSS"`                    // Maximum segment size for sender in bytes
	RxMSS         uint64        `json:"rxMSS"`                    // Maximum segment size for receiver in bytes
	RTT           time.Duration `json:"rtt"`                      // Round-trip time
	RTTVar        time.Duration `json:"rttVar"`                   // Round-trip time variation
	RTO           time.Duration `json:"rto"`                      // Retransmission timeout
	ATO           time.Duration `json:"ato"`                      // Delayed acknowledgement timeout [Linux only]
	LastTxAt      time.Duration `json:"lastTxAt"`                 // Since last data sent [Linux only]
	LastRxAt      time.Duration `json:"lastRxAt"`                 // Since last data received [FreeBSD and Linux]
	LastTxAckAt   time.Duration `json:"lastTxAckAt"`              // Since last ack sent
	LastRxAckAt   time.Duration `json:"lastRxAckAt"`              // Since last ack received [Linux only]
	RxWindow      uint64        `json:"rxWindow"`                 // advertised receiver window in bytes
	TxSSThreshold uint64        `json:"txSSThreshold"`            // slow start threshold for sender
	RxSSThreshold uint64        `json:"rxSSThreshold"`            // slow start threshold for receiver [Linux only]
	TxWindowBytes uint64        `json:"txWindowBytes,omitempty"`  // congestion window for sender in bytes [Darwin and FreeBSD]
	TxWindowSegs  uint64        `json:"txWindowSegs,omitempty"`   // congestion window for sender in # of segments [Linux, Windows, NetBSD]
	Retransmits   uint64        `json:"retransmits,omitempty"`    // retransmission count observed by the kernel
	Sys           *SysInfo      `json:"sys,omitempty"`            // Platform-specific information
}

type Option struct {
	Kind  string `json:"kind"`
	Value uint64 `json:"value"`
}

func (o *Option) String() string {
	if o.Value == 0 {
		return o.Kind
	}
	return fmt.Sprintf("%s:%.2x", o.Kind, o.Value)
}

// MarshalJSON implements the MarshalJSON method of json.Marshaler
// interface.
func (i *Info) MarshalJSON() ([]byte, error) {
	raw := make(map[string]interface{})
	raw["state"] = i.State
	if len(i.Options) > 0 {
		opts := make([]string, 0, len(i.Options))
		for _, opt := range i.Options {
			opts = append(opts, opt.String())
		}
		raw["options"] = opts
	}
	if len(i.PeerOptions) > 0 {
		opts := make([]string, 0, len(i.PeerOptions))
		for _, opt := range i.PeerOptions {
			opts = append(opts, opt.String())
		}
		raw["peerOptions"] = opts
	}
	raw["txMSS"] = i.TxMSS
	raw["rxMSS"] = i.RxMSS
	raw["rtt"] = i.RTT
	raw["rttVar"] = i.RTTVar
	raw["rto"] = i.RTO
	raw["ato"] = i.ATO
	raw["lastTxAt"] = i.LastTxAt
	raw["lastRxAt"] = i.LastRxAt
	raw["lastTxAckAt"] = i.LastTxAckAt
	raw["lastRxAckAt"] = i.LastRxAckAt
	raw["rxWindow"] = i.RxWindow
	raw["txSSThreshold"] = i.TxSSThreshold
	raw["rxSSThreshold"] = i.RxSSThreshold
	raw["txWindowBytes"] = i.TxWindowBytes
	raw["txWindowSegs"] = i.TxWindowSegs
	raw["retransmits"] = i.Retransmits
	if i.Sys != nil {
		raw["sys"] = i.Sys
	}
	return json.Marshal(&raw)
}

// ToMap renders a subset of Info as a plain key/value map, for places
// such as log lines where a full JSON struct would be noisier.
func (i *Info) ToMap() map[string]any {
	return map[string]any{
		"state":         i.State,
		"txMSS":         i.TxMSS,
		"rxMSS":         i.RxMSS,
		"rtt":           i.RTT.String(),
		"rttVar":        i.RTTVar.String(),
		"rto":           i.RTO.String(),
		"rxWindow":      i.RxWindow,
		"txSSThreshold": i.TxSSThreshold,
		"rxSSThreshold": i.RxSSThreshold,
		"retransmits":   i.Retransmits,
	}
}
