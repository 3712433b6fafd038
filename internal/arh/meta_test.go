package arh

import "testing"

func TestMetaTableSetGetClear(t *testing.T) {
	m := NewMetaTable()
	m.Set(MetaRecord{ID: 0, DataOffset: 512, CompressedSize: 10, UncompressedSize: 10})
	m.Set(MetaRecord{ID: 3, DataOffset: 1024, CompressedSize: 20, UncompressedSize: 40})

	if got := m.Len(); got != 4 {
		t.Fatalf("Len() = %d, want 4 (ids 0-3)", got)
	}
	for _, id := range []uint32{1, 2} {
		rec, ok := m.Get(id)
		if !ok {
			t.Fatalf("Get(%d) not found", id)
		}
		if rec.ID != id || rec.DataOffset != 0 {
			t.Errorf("Get(%d) = %+v, want zero-filled skipped slot", id, rec)
		}
	}

	rec, ok := m.Get(3)
	if !ok || rec.DataOffset != 1024 || !rec.Compressed() {
		t.Errorf("Get(3) = %+v, ok=%v, want compressed record at 1024", rec, ok)
	}

	m.Clear(3)
	rec, ok = m.Get(3)
	if !ok || rec.ID != 3 || rec.DataOffset != 0 {
		t.Errorf("Get(3) after Clear = %+v, want zeroed record with ID preserved", rec)
	}
}

func TestMetaTableEncodeDecodeRoundTrip(t *testing.T) {
	m := NewMetaTable()
	m.Set(MetaRecord{ID: 0, DataOffset: 100, CompressedSize: 5, UncompressedSize: 5})
	m.Set(MetaRecord{ID: 1, DataOffset: 200, CompressedSize: 30, UncompressedSize: 60, Reserved: 0xdeadbeef})

	encoded := m.Encode()
	decoded, err := DecodeMetaTable(encoded, uint32(m.Len()))
	if err != nil {
		t.Fatal(err)
	}
	for id := uint32(0); id < uint32(m.Len()); id++ {
		want, _ := m.Get(id)
		got, ok := decoded.Get(id)
		if !ok || got != want {
			t.Errorf("decoded.Get(%d) = %+v, ok=%v, want %+v", id, got, ok, want)
		}
	}
}

func TestMetaTableGetOutOfRange(t *testing.T) {
	m := NewMetaTable()
	if _, ok := m.Get(0); ok {
		t.Error("Get(0) on empty table succeeded, want false")
	}
}
