package vicp

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// realDescSize is REALDESCSIZE in the original driver: the fixed,
// padding-free on-wire length of a WAVEDESC block under the LECROY_2_3
// template. Byte offsets below are taken field-for-field from struct
// WAVEDESC in LeCroy_drv.h.
const realDescSize = 346

// WaveDescriptor is the decoded form of a scope's WAVEDESC block. Go
// doesn't guarantee struct layout matches a packed C struct the way
// RawTCPInfo in the teacher's tcp_info mirror relies on, so this is
// decoded field-by-field from the raw bytes with encoding/binary
// rather than cast over the buffer.
type WaveDescriptor struct {
	raw []byte

	DescriptorName string
	TemplateName   string
	CommType       int16
	CommOrder      int16

	WaveDescriptorLen int32
	UserTextLen       int32
	ResDesc1Len       int32
	TrigtimeArrayLen  int32
	RisTimeArrayLen   int32
	ResArray1Len      int32
	WaveArray1Len     int32
	WaveArray2Len     int32

	InstrumentName   string
	InstrumentNumber int32
	TraceLabel       string

	WaveArrayCount int32
	PointsPerScreen int32
	FirstValidPoint int32
	LastValidPoint  int32
	FirstPoint      int32
	SparsingFactor  int32
	SegmentIndex    int32
	SubarrayCount   int32
	SweepsPerAcq    int32

	VerticalGain   float32
	VerticalOffset float32
	MaxValue       float32
	MinValue       float32
	NominalBits    int16

	HorizInterval    float32
	HorizOffset      float64
	PixelOffset      float64
	VertUnitRaw      string
	HorUnitRaw       string

	TriggerTime TriggerTime

	WaveSource int16
}

// TriggerTime is the nested TIME_STAMP struct embedded in WAVEDESC at
// the TRIGGER_TIME field.
type TriggerTime struct {
	Seconds float64
	Minutes uint8
	Hours   uint8
	Days    uint8
	Months  uint8
	Year    int16
}

// HasTriggered reports whether this descriptor was captured after at
// least one trigger, matching LeCroy_Get_LastTrgTime's months==0 check
// for "never triggered".
func (t TriggerTime) HasTriggered() bool {
	return t.Months != 0
}

// String formats the trigger time the way LeCroy_Get_LastTrgTime does:
// "MM/DD/YYYY,HH:MM:SS.ffffffffff".
func (t TriggerTime) String() string {
	return fmt.Sprintf("%02d/%02d/%04d,%02d:%02d:%013.10f",
		t.Months, t.Days, t.Year, t.Hours, t.Minutes, t.Seconds)
}

// VertUnit returns the vertical axis unit string, trimmed of trailing
// NUL padding.
func (d *WaveDescriptor) VertUnit() string { return trimNulPad(d.VertUnitRaw) }

// HorUnit returns the horizontal axis unit string, trimmed of trailing
// NUL padding.
func (d *WaveDescriptor) HorUnit() string { return trimNulPad(d.HorUnitRaw) }

func trimNulPad(s string) string {
	return strings.TrimRight(s, "\x00")
}

// sampleDataOffset returns the byte offset, relative to the start of
// the WAVEDESC block, of the first waveform sample — the sum of the
// block's own length plus every variable-length region that precedes
// the sample array, exactly as LeCroy_Read computes
// "pWaveDesc + WAVE_DESCRIPTOR + USER_TEXT + RES_DESC1 +
// TRIGTIME_ARRAY + RIS_TIME_ARRAY + RES_ARRAY1".
func (d *WaveDescriptor) sampleDataOffset() int {
	return int(d.WaveDescriptorLen) + int(d.UserTextLen) + int(d.ResDesc1Len) +
		int(d.TrigtimeArrayLen) + int(d.RisTimeArrayLen) + int(d.ResArray1Len)
}

// decodeWaveDescriptor parses a raw WAVEDESC block. The block is
// assumed to be little-endian (CORD LO), per this module's choice to
// always negotiate that byte order at init time.
func decodeWaveDescriptor(buf []byte) (*WaveDescriptor, error) {
	if len(buf) < realDescSize {
		return nil, wrapErr(CodeDescriptorShort,
			fmt.Sprintf("WAVEDESC block is %d bytes, need %d", len(buf), realDescSize), nil)
	}

	le := binary.LittleEndian
	d := &WaveDescriptor{raw: append([]byte(nil), buf[:realDescSize]...)}

	d.DescriptorName = trimNulPad(string(buf[0:16]))
	d.TemplateName = trimNulPad(string(buf[16:32]))
	d.CommType = int16(le.Uint16(buf[32:34]))
	d.CommOrder = int16(le.Uint16(buf[34:36]))

	d.WaveDescriptorLen = int32(le.Uint32(buf[36:40]))
	d.UserTextLen = int32(le.Uint32(buf[40:44]))
	d.ResDesc1Len = int32(le.Uint32(buf[44:48]))
	d.TrigtimeArrayLen = int32(le.Uint32(buf[48:52]))
	d.RisTimeArrayLen = int32(le.Uint32(buf[52:56]))
	d.ResArray1Len = int32(le.Uint32(buf[56:60]))
	d.WaveArray1Len = int32(le.Uint32(buf[60:64]))
	d.WaveArray2Len = int32(le.Uint32(buf[64:68]))
	// RES_ARRAY2, RES_ARRAY3 at 68:76

	d.InstrumentName = trimNulPad(string(buf[76:92]))
	d.InstrumentNumber = int32(le.Uint32(buf[92:96]))
	d.TraceLabel = trimNulPad(string(buf[96:112]))
	// RESERVED1, RESERVED2 at 112:116

	d.WaveArrayCount = int32(le.Uint32(buf[116:120]))
	d.PointsPerScreen = int32(le.Uint32(buf[120:124]))
	d.FirstValidPoint = int32(le.Uint32(buf[124:128]))
	d.LastValidPoint = int32(le.Uint32(buf[128:132]))
	d.FirstPoint = int32(le.Uint32(buf[132:136]))
	d.SparsingFactor = int32(le.Uint32(buf[136:140]))
	d.SegmentIndex = int32(le.Uint32(buf[140:144]))
	d.SubarrayCount = int32(le.Uint32(buf[144:148]))
	d.SweepsPerAcq = int32(le.Uint32(buf[148:152]))
	// POINTS_PER_PAIR, PAIR_OFFSET at 152:156

	d.VerticalGain = math.Float32frombits(le.Uint32(buf[156:160]))
	d.VerticalOffset = math.Float32frombits(le.Uint32(buf[160:164]))
	d.MaxValue = math.Float32frombits(le.Uint32(buf[164:168]))
	d.MinValue = math.Float32frombits(le.Uint32(buf[168:172]))
	d.NominalBits = int16(le.Uint16(buf[172:174]))
	// NOM_SUBARRAY_COUNT at 174:176

	d.HorizInterval = math.Float32frombits(le.Uint32(buf[176:180]))
	d.HorizOffset = math.Float64frombits(le.Uint64(buf[180:188]))
	d.PixelOffset = math.Float64frombits(le.Uint64(buf[188:196]))
	d.VertUnitRaw = string(buf[196:244])
	d.HorUnitRaw = string(buf[244:292])
	// HORIZ_UNCERTAINTY at 292:296

	d.TriggerTime = TriggerTime{
		Seconds: math.Float64frombits(le.Uint64(buf[296:304])),
		Minutes: buf[304],
		Hours:   buf[305],
		Days:    buf[306],
		Months:  buf[307],
		Year:    int16(le.Uint16(buf[308:310])),
		// unused int16 at 310:312
	}

	d.WaveSource = int16(le.Uint16(buf[344:346]))

	return d, nil
}

// ReadWaveform fetches the WAVEDESC-prefixed waveform block for
// channel, decodes the descriptor, caches it under descriptorMu, and
// returns up to maxPoints samples converted to volts via
// sample*VerticalGain - VerticalOffset, matching LeCroy_Read exactly.
func (s *Session) ReadWaveform(channel int, maxPoints int) ([]float64, *WaveDescriptor, error) {
	if err := s.validateChannel(channel, true); err != nil {
		return nil, nil, err
	}

	cmd := channelNames[channel-1] + "WF?"
	resp, err := s.Operate(cmd, true)
	if err != nil {
		return nil, nil, err
	}

	idx := strings.Index(resp, "WAVEDESC")
	if idx < 0 {
		return nil, nil, newErr(CodeDescriptorShort, "response did not contain a WAVEDESC block")
	}
	block := []byte(resp[idx:])

	desc, err := decodeWaveDescriptor(block)
	if err != nil {
		return nil, nil, err
	}

	s.descriptorMu.Lock()
	s.channelDesc[channel-1] = *desc
	s.descriptorMu.Unlock()

	wflen := int(desc.LastValidPoint-desc.FirstValidPoint) + 1
	if wflen < 0 {
		wflen = 0
	}
	n := wflen
	if maxPoints < n {
		n = maxPoints
	}

	sampleOff := desc.sampleDataOffset()
	samples := make([]float64, 0, n)

	for i := 0; i < n; i++ {
		sampleIdx := i + int(desc.FirstValidPoint)
		var raw float64
		if desc.CommType == 0 {
			off := sampleOff + sampleIdx
			if off >= len(block) {
				break
			}
			raw = float64(int8(block[off]))
		} else {
			off := sampleOff + sampleIdx*2
			if off+2 > len(block) {
				break
			}
			raw = float64(int16(binary.LittleEndian.Uint16(block[off : off+2])))
		}
		samples = append(samples, raw*float64(desc.VerticalGain)-float64(desc.VerticalOffset))
	}

	return samples, desc, nil
}

// CachedDescriptor returns the last-decoded WAVEDESC for channel
// without touching the wire, or nil if no waveform has been read yet.
func (s *Session) CachedDescriptor(channel int) (*WaveDescriptor, error) {
	if err := s.validateChannel(channel, false); err != nil {
		return nil, err
	}
	s.descriptorMu.Lock()
	defer s.descriptorMu.Unlock()
	d := s.channelDesc[channel-1]
	if d.raw == nil {
		return nil, nil
	}
	cp := d
	return &cp, nil
}

// GetLastTrgTime returns the formatted last-trigger timestamp for
// channel from its cached WAVEDESC, matching LeCroy_Get_LastTrgTime. It
// errors if the channel has never triggered (Months == 0) or has no
// cached descriptor yet.
func (s *Session) GetLastTrgTime(channel int) (string, error) {
	desc, err := s.CachedDescriptor(channel)
	if err != nil {
		return "", err
	}
	if desc == nil || !desc.TriggerTime.HasTriggered() {
		return "", newErr(CodeNeverTriggered, fmt.Sprintf("channel %d has never triggered", channel))
	}
	return desc.TriggerTime.String(), nil
}
