package vicp

import (
	"encoding/binary"
	"math"
	"testing"
)

// buildDescriptorFixture assembles a realDescSize-byte WAVEDESC block with
// the given sample encoding, matching struct WAVEDESC's field offsets in
// original_source/LeCroy_drv.h.
func buildDescriptorFixture(commType int16, gain, offset float32, first, last int32) []byte {
	buf := make([]byte, realDescSize)
	le := binary.LittleEndian

	copy(buf[0:16], "WAVEDESC")
	copy(buf[16:32], "LECROY_2_3")
	le.PutUint16(buf[32:34], uint16(commType))
	le.PutUint16(buf[34:36], 0) // CommOrder, little-endian

	le.PutUint32(buf[36:40], realDescSize) // WaveDescriptorLen
	le.PutUint32(buf[40:44], 0)            // UserTextLen
	le.PutUint32(buf[44:48], 0)            // ResDesc1Len
	le.PutUint32(buf[48:52], 0)            // TrigtimeArrayLen
	le.PutUint32(buf[52:56], 0)            // RisTimeArrayLen
	le.PutUint32(buf[56:60], 0)            // ResArray1Len

	le.PutUint32(buf[116:120], uint32(last-first+1)) // WaveArrayCount
	le.PutUint32(buf[124:128], uint32(first))        // FirstValidPoint
	le.PutUint32(buf[128:132], uint32(last))         // LastValidPoint

	le.PutUint32(buf[156:160], math.Float32bits(gain))
	le.PutUint32(buf[160:164], math.Float32bits(offset))

	// Trigger time: never triggered (Months == 0).
	buf[307] = 0

	return buf
}

func TestDecodeWaveDescriptorTooShort(t *testing.T) {
	_, err := decodeWaveDescriptor(make([]byte, 10))
	if err == nil {
		t.Fatal("expected an error for a truncated WAVEDESC block")
	}
	verr, ok := err.(*Error)
	if !ok || verr.Code != CodeDescriptorShort {
		t.Errorf("err = %v, want CodeDescriptorShort", err)
	}
}

func TestDecodeWaveDescriptorFields(t *testing.T) {
	buf := buildDescriptorFixture(0, 0.04, -0.12, 0, 999)

	desc, err := decodeWaveDescriptor(buf)
	if err != nil {
		t.Fatalf("decodeWaveDescriptor: %v", err)
	}
	if desc.DescriptorName != "WAVEDESC" {
		t.Errorf("DescriptorName = %q, want WAVEDESC", desc.DescriptorName)
	}
	if desc.TemplateName != "LECROY_2_3" {
		t.Errorf("TemplateName = %q, want LECROY_2_3", desc.TemplateName)
	}
	if desc.FirstValidPoint != 0 || desc.LastValidPoint != 999 {
		t.Errorf("point range = [%d,%d], want [0,999]", desc.FirstValidPoint, desc.LastValidPoint)
	}
	if math.Abs(float64(desc.VerticalGain-0.04)) > 1e-9 {
		t.Errorf("VerticalGain = %v, want 0.04", desc.VerticalGain)
	}
	if desc.TriggerTime.HasTriggered() {
		t.Error("fixture sets Months=0, expected HasTriggered()=false")
	}
}

func TestWaveDescriptorSampleDataOffset(t *testing.T) {
	buf := buildDescriptorFixture(0, 1, 0, 0, 9)
	desc, err := decodeWaveDescriptor(buf)
	if err != nil {
		t.Fatalf("decodeWaveDescriptor: %v", err)
	}
	if got := desc.sampleDataOffset(); got != realDescSize {
		t.Errorf("sampleDataOffset = %d, want %d (no variable-length regions in this fixture)", got, realDescSize)
	}
}

func TestWaveDescriptorSampleDataOffsetIncludesResDesc1(t *testing.T) {
	buf := buildDescriptorFixture(0, 1, 0, 0, 9)
	le := binary.LittleEndian
	le.PutUint32(buf[44:48], 16) // ResDesc1Len, non-zero on some firmware

	desc, err := decodeWaveDescriptor(buf)
	if err != nil {
		t.Fatalf("decodeWaveDescriptor: %v", err)
	}
	if desc.ResDesc1Len != 16 {
		t.Fatalf("ResDesc1Len = %d, want 16", desc.ResDesc1Len)
	}
	if got, want := desc.sampleDataOffset(), realDescSize+16; got != int(want) {
		t.Errorf("sampleDataOffset = %d, want %d (must include RES_DESC1)", got, want)
	}
}

func TestTriggerTimeString(t *testing.T) {
	tt := TriggerTime{Seconds: 30.5, Minutes: 15, Hours: 9, Days: 4, Months: 7, Year: 2024}
	got := tt.String()
	want := "07/04/2024,09:15:30.5000000000"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestVertUnitTrimsNulPadding(t *testing.T) {
	d := &WaveDescriptor{VertUnitRaw: "V\x00\x00\x00"}
	if got := d.VertUnit(); got != "V" {
		t.Errorf("VertUnit() = %q, want %q", got, "V")
	}
}

func TestReadWaveformSampleDecode(t *testing.T) {
	// Build a full response: "WAVEDESC" marker + descriptor + raw samples,
	// matching the slice ReadWaveform hunts for via strings.Index.
	desc := buildDescriptorFixture(0, 2.0, 1.0, 0, 2)
	samples := []byte{10, 20, 30} // int8 samples, CommType == 0
	block := append(append([]byte{}, desc...), samples...)

	decoded, err := decodeWaveDescriptor(block)
	if err != nil {
		t.Fatalf("decodeWaveDescriptor: %v", err)
	}
	off := decoded.sampleDataOffset()
	if off != len(desc) {
		t.Fatalf("sampleDataOffset = %d, want %d", off, len(desc))
	}

	want := []float64{10*2.0 - 1.0, 20*2.0 - 1.0, 30*2.0 - 1.0}
	for i, raw := range samples {
		got := float64(int8(raw))*float64(decoded.VerticalGain) - float64(decoded.VerticalOffset)
		if got != want[i] {
			t.Errorf("sample[%d] = %v, want %v", i, got, want[i])
		}
	}
}
